package ws

import (
	"time"

	"aistrack/ais"
	"aistrack/ais/track"
	"aistrack/ais/tracker"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TrackView is the JSON rendering of a track. Fields the vessel has not
// reported are left out.
type TrackView struct {
	MMSI             string     `json:"mmsi"`
	Class            string     `json:"class"`
	LastUpdate       time.Time  `json:"lastUpdate"`
	StaticUpdate     *time.Time `json:"staticUpdate,omitempty"`
	DynamicUpdate    *time.Time `json:"dynamicUpdate,omitempty"`
	AtoNUpdate       *time.Time `json:"atonUpdate,omitempty"`
	Source           string     `json:"source,omitempty"`
	CallSign         string     `json:"callSign,omitempty"`
	Name             string     `json:"name,omitempty"`
	ShipType         *int       `json:"shipType,omitempty"`
	ToBow            *int       `json:"toBow,omitempty"`
	ToStern          *int       `json:"toStern,omitempty"`
	ToPort           *int       `json:"toPort,omitempty"`
	ToStarboard      *int       `json:"toStarboard,omitempty"`
	Latitude         *float64   `json:"lat,omitempty"`
	Longitude        *float64   `json:"lng,omitempty"`
	SpeedOverGround  *float64   `json:"sog,omitempty"`
	CourseOverGround *float64   `json:"cog,omitempty"`
	TrueHeading      *int       `json:"heading,omitempty"`
	Second           *int       `json:"second,omitempty"`
	History          []Position `json:"history,omitempty"`
}

type Position struct {
	At        time.Time `json:"at"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
}

func intp(v int, ok bool) *int {
	if !ok {
		return nil
	}
	return &v
}

func floatp(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func timep(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// source is the receiver of the most recently received report.
func source(t *track.Track) string {
	var latest *ais.Message
	for _, m := range []*ais.Message{t.StaticMessage(), t.DynamicMessage(), t.AtoNMessage()} {
		if m == nil || m.Metadata == nil {
			continue
		}
		if latest == nil || m.Timestamp().After(latest.Timestamp()) {
			latest = m
		}
	}
	if latest == nil {
		return ""
	}
	return latest.Metadata.Source
}

// View renders t. History is included when withHistory is set.
func View(t *track.Track, withHistory bool) TrackView {
	v := TrackView{
		MMSI:             t.MMSI().String(),
		Class:            t.TransponderClass().String(),
		LastUpdate:       t.TimeOfLastUpdate(),
		StaticUpdate:     timep(t.TimeOfStaticUpdate()),
		DynamicUpdate:    timep(t.TimeOfDynamicUpdate()),
		AtoNUpdate:       timep(t.TimeOfAtoNUpdate()),
		Source:           source(t),
		ShipType:         intp(t.ShipType()),
		ToBow:            intp(t.ToBow()),
		ToStern:          intp(t.ToStern()),
		ToPort:           intp(t.ToPort()),
		ToStarboard:      intp(t.ToStarboard()),
		Latitude:         floatp(t.Latitude()),
		Longitude:        floatp(t.Longitude()),
		SpeedOverGround:  floatp(t.SpeedOverGround()),
		CourseOverGround: floatp(t.CourseOverGround()),
		TrueHeading:      intp(t.TrueHeading()),
		Second:           intp(t.Second()),
	}
	v.CallSign, _ = t.CallSign()
	v.Name, _ = t.ShipName()
	if withHistory {
		for _, h := range t.History() {
			v.History = append(v.History, Position{
				At:        h.At,
				Latitude:  h.Report.Latitude,
				Longitude: h.Report.Longitude,
			})
		}
	}
	return v
}

type eventView struct {
	Event     string     `json:"event"`
	Wallclock *time.Time `json:"wallclock,omitempty"`
	Track     *TrackView `json:"track,omitempty"`
}

// Marshal renders an event for the websocket stream.
func Marshal(e tracker.Event) ([]byte, error) {
	v := eventView{Event: e.Name()}
	switch e := e.(type) {
	case tracker.WallclockChanged:
		v.Wallclock = &e.Wallclock
	case tracker.TrackCreated:
		tv := View(e.Track, false)
		v.Track = &tv
	case tracker.TrackUpdated:
		tv := View(e.Track, false)
		v.Track = &tv
	case tracker.TrackDynamicsUpdated:
		tv := View(e.Track, false)
		v.Track = &tv
	case tracker.TrackDeleted:
		tv := View(e.Track, false)
		v.Track = &tv
	}
	return json.Marshal(v)
}
