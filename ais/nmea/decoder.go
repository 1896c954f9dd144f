package nmea

import (
	"strconv"
	"strings"

	"aistrack/ais"
	"aistrack/ais/log"
	"aistrack/ais/util/clock"

	goais "github.com/BertoldVdb/go-ais"
	"github.com/BertoldVdb/go-ais/aisnmea"
	"github.com/armon/go-metrics"
	"github.com/pkg/errors"
)

var tracer = log.GetTracer("nmea")

// Field positions of a VDM/VDO sentence
const (
	vdmFragCount = iota
	vdmFragNum
	vdmSeqID
	vdmChannel
	vdmPayload
	vdmFillBits
	vdmFields
)

// Decoder turns NMEA lines into messages. Multi-sentence messages are
// reassembled across calls, so a Decoder must not be shared between
// goroutines or between interleaved feeds.
type Decoder struct {
	// Source is used when a sentence has no s: tag block field
	Source string
	// Clock timestamps sentences without a c: tag block field
	Clock clock.C

	codec     *aisnmea.NMEACodec
	fragments map[string][]string
}

func NewDecoder(source string, clk clock.C) *Decoder {
	if clk == nil {
		clk = &clock.Real{}
	}
	return &Decoder{
		Source:    source,
		Clock:     clk,
		codec:     aisnmea.NMEACodecNew(goais.CodecNew(false, false)),
		fragments: make(map[string][]string),
	}
}

// Decode parses one line. It returns nil and no error for a fragment of a
// message still incomplete, and ErrNotAIS for valid sentences of other
// formats.
func (d *Decoder) Decode(line string) (*ais.Message, error) {
	s, err := Parse(line)
	if err != nil {
		metrics.IncrCounter([]string{"nmea", "malformed"}, 1)
		return nil, err
	}
	if !s.IsAIS() {
		return nil, errors.Wrapf(ErrNotAIS, "%s%s", s.Talker, s.Format)
	}
	if len(s.Fields) < vdmFields {
		return nil, errors.Wrapf(ErrMalformed, "%d fields in %s", len(s.Fields), s.Format)
	}

	payload, complete := d.assemble(s.Fields)

	vdm, err := d.codec.ParseSentence(s.Raw)
	if err != nil {
		metrics.IncrCounter([]string{"nmea", "undecodable"}, 1)
		return nil, errors.Wrapf(ErrMalformed, "decode %q: %v", s.Raw, err)
	}
	if vdm == nil || vdm.Packet == nil {
		if complete {
			return nil, errors.Wrapf(ErrMalformed, "no packet in %q", payload)
		}
		tracer.Logf("fragment %s/%s of %s", s.Fields[vdmFragNum], s.Fields[vdmFragCount], s.Fields[vdmSeqID])
		return nil, nil
	}

	msg := convert(vdm.Packet)
	msg.Payload = payload
	msg.Metadata = &ais.Metadata{
		Received: s.TagBlock.Time,
		Source:   s.TagBlock.Source,
	}
	if msg.Metadata.Received.IsZero() {
		msg.Metadata.Received = d.Clock.Now()
	}
	if msg.Metadata.Source == "" {
		msg.Metadata.Source = d.Source
	}
	metrics.IncrCounter([]string{"nmea", "decoded"}, 1)
	return msg, nil
}

// assemble collects the armoured payload of multi-sentence messages. The
// joined payload is returned once the last fragment arrives.
func (d *Decoder) assemble(fields []string) (string, bool) {
	count, _ := strconv.Atoi(fields[vdmFragCount])
	num, _ := strconv.Atoi(fields[vdmFragNum])
	if count <= 1 {
		return fields[vdmPayload], true
	}

	key := fields[vdmSeqID] + "/" + fields[vdmChannel]
	if num == 1 {
		d.fragments[key] = nil
	}
	parts := append(d.fragments[key], fields[vdmPayload])
	if num < count {
		d.fragments[key] = parts
		return "", false
	}
	delete(d.fragments, key)
	return strings.Join(parts, ""), true
}

// convert maps a go-ais packet onto the message model. Packet types without
// static or dynamic content become messages without a report.
func convert(p goais.Packet) *ais.Message {
	h := p.GetHeader()
	msg := &ais.Message{
		MMSI:  ais.MMSI(h.UserID),
		Type:  int(h.MessageID),
		Class: ais.ClassOf(int(h.MessageID)),
	}

	switch r := p.(type) {
	case goais.PositionReport:
		msg.Report = &ais.DynamicReport{
			Latitude:         float64(r.Latitude),
			Longitude:        float64(r.Longitude),
			SpeedOverGround:  float64(r.Sog),
			CourseOverGround: float64(r.Cog),
			TrueHeading:      int(r.TrueHeading),
			Second:           int(r.Timestamp),
			Extended:         true,
		}
	case goais.StandardClassBPositionReport:
		msg.Report = &ais.DynamicReport{
			Latitude:         float64(r.Latitude),
			Longitude:        float64(r.Longitude),
			SpeedOverGround:  float64(r.Sog),
			CourseOverGround: float64(r.Cog),
			TrueHeading:      int(r.TrueHeading),
			Second:           int(r.Timestamp),
			Extended:         true,
		}
	case goais.ExtendedClassBPositionReport:
		msg.Report = &ais.DynamicReport{
			Latitude:         float64(r.Latitude),
			Longitude:        float64(r.Longitude),
			SpeedOverGround:  float64(r.Sog),
			CourseOverGround: float64(r.Cog),
			TrueHeading:      int(r.TrueHeading),
			Second:           int(r.Timestamp),
			Extended:         true,
		}
	case goais.LongRangeAisBroadcastMessage:
		msg.Report = &ais.DynamicReport{
			Latitude:         float64(r.Latitude),
			Longitude:        float64(r.Longitude),
			SpeedOverGround:  float64(r.Sog),
			CourseOverGround: float64(r.Cog),
		}
	case goais.ShipStaticData:
		msg.Report = &ais.StaticReport{
			CallSign:  clean(r.CallSign),
			Name:      clean(r.Name),
			ShipType:  int(r.Type),
			Dimension: dimension(r.Dimension),
		}
	case goais.StaticDataReport:
		sr := &ais.StaticReport{}
		if r.ReportA.Valid {
			sr.Name = clean(r.ReportA.Name)
		}
		if r.ReportB.Valid {
			sr.CallSign = clean(r.ReportB.CallSign)
			sr.ShipType = int(r.ReportB.ShipType)
			sr.Dimension = dimension(r.ReportB.Dimension)
		}
		msg.Report = sr
	case goais.AidsToNavigationReport:
		msg.Report = &ais.AtoNReport{
			Name:      clean(r.Name + r.NameExtension),
			AtoNType:  int(r.Type),
			Latitude:  float64(r.Latitude),
			Longitude: float64(r.Longitude),
			Dimension: dimension(r.Dimension),
			Second:    int(r.Timestamp),
		}
	}
	return msg
}

func dimension(d goais.FieldDimension) ais.Dimension {
	return ais.Dimension{
		ToBow:       int(d.A),
		ToStern:     int(d.B),
		ToPort:      int(d.C),
		ToStarboard: int(d.D),
	}
}

// clean strips the '@' padding and blanks of six-bit text fields.
func clean(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "@"))
}
