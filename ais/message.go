package ais

import (
	"crypto"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindOther Kind = iota
	KindStatic
	KindDynamic
	KindAtoN
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindDynamic:
		return "dynamic"
	case KindAtoN:
		return "aton"
	}
	return "other"
}

// Report is the kind specific content of a message. It is implemented by
// *StaticReport, *DynamicReport and *AtoNReport only.
type Report interface {
	kind() Kind
}

// Dimension is the reference point position in metres. Zero means unknown.
type Dimension struct {
	ToBow       int
	ToStern     int
	ToPort      int
	ToStarboard int
}

func (d Dimension) IsZero() bool {
	return d == Dimension{}
}

// StaticReport carries voyage independent vessel data. Empty fields are not
// available.
type StaticReport struct {
	CallSign  string
	Name      string
	ShipType  int
	Dimension Dimension
}

func (*StaticReport) kind() Kind { return KindStatic }

// Merge returns a copy of r with every field r lacks taken from prev.
// Class B vessels send name and the rest of the static data in two parts.
func (r *StaticReport) Merge(prev *StaticReport) *StaticReport {
	out := *r
	if prev == nil {
		return &out
	}
	if out.CallSign == "" {
		out.CallSign = prev.CallSign
	}
	if out.Name == "" {
		out.Name = prev.Name
	}
	if out.ShipType == 0 {
		out.ShipType = prev.ShipType
	}
	if out.Dimension.IsZero() {
		out.Dimension = prev.Dimension
	}
	return &out
}

// DynamicReport carries position and motion. TrueHeading and Second are only
// meaningful when Extended is set.
type DynamicReport struct {
	Latitude         float64
	Longitude        float64
	SpeedOverGround  float64
	CourseOverGround float64
	TrueHeading      int
	Second           int
	Extended         bool
}

func (*DynamicReport) kind() Kind { return KindDynamic }

// AtoNReport describes an aid to navigation.
type AtoNReport struct {
	Name      string
	AtoNType  int
	Latitude  float64
	Longitude float64
	Dimension Dimension
	Second    int
}

func (*AtoNReport) kind() Kind { return KindAtoN }

type Metadata struct {
	Received time.Time
	Source   string
}

type Message struct {
	MMSI  MMSI
	Type  int
	Class TransponderClass
	// Nil for message types that carry neither static nor dynamic data
	Report   Report
	Metadata *Metadata
	// Armoured payload, when decoded from NMEA
	Payload string
}

func (m *Message) Kind() Kind {
	if m == nil || m.Report == nil {
		return KindOther
	}
	return m.Report.kind()
}

func (m *Message) Static() (*StaticReport, bool) {
	r, ok := m.Report.(*StaticReport)
	return r, ok && r != nil
}

func (m *Message) Dynamic() (*DynamicReport, bool) {
	r, ok := m.Report.(*DynamicReport)
	return r, ok && r != nil
}

func (m *Message) AtoN() (*AtoNReport, bool) {
	r, ok := m.Report.(*AtoNReport)
	return r, ok && r != nil
}

// Timestamp is the reception time, zero when the message has no metadata.
func (m *Message) Timestamp() time.Time {
	if m.Metadata == nil {
		return time.Time{}
	}
	return m.Metadata.Received
}

// Digest hashes the message content. Metadata is left out so the same
// message relayed by two receivers has the same digest.
func (m *Message) Digest(hash crypto.Hash) ([]byte, error) {
	if !hash.Available() {
		return nil, errors.Wrapf(ErrUnsupportedDigest, "hash %v", hash)
	}
	h := hash.New()
	if m.Payload != "" {
		fmt.Fprintf(h, "%d|%s", m.Type, m.Payload)
	} else {
		fmt.Fprintf(h, "%d|%d|%d|%#v", m.Type, m.MMSI, m.Class, m.Report)
	}
	return h.Sum(nil), nil
}

func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("msg%d{%v %v %+v}", m.Type, m.MMSI, m.Kind(), m.Report)
}
