package track

import (
	"aistrack/ais"
)

// Static attributes come from the static report. Dimensions fall back to the
// aid to navigation report.

func (t *Track) CallSign() (string, bool) {
	if r := t.StaticReport(); r != nil && r.CallSign != "" {
		return r.CallSign, true
	}
	return "", false
}

func (t *Track) ShipName() (string, bool) {
	if r := t.StaticReport(); r != nil && r.Name != "" {
		return r.Name, true
	}
	return "", false
}

// ShipType 0 is "not available".
func (t *Track) ShipType() (int, bool) {
	if r := t.StaticReport(); r != nil && r.ShipType != 0 {
		return r.ShipType, true
	}
	return 0, false
}

func (t *Track) dimension() (ais.Dimension, bool) {
	if r := t.StaticReport(); r != nil {
		return r.Dimension, true
	}
	if r := t.AtoNReport(); r != nil {
		return r.Dimension, true
	}
	return ais.Dimension{}, false
}

func (t *Track) ToBow() (int, bool) {
	d, ok := t.dimension()
	return d.ToBow, ok
}

func (t *Track) ToStern() (int, bool) {
	d, ok := t.dimension()
	return d.ToStern, ok
}

func (t *Track) ToPort() (int, bool) {
	d, ok := t.dimension()
	return d.ToPort, ok
}

func (t *Track) ToStarboard() (int, bool) {
	d, ok := t.dimension()
	return d.ToStarboard, ok
}

// Kinematic attributes come from the dynamic report. Position and second
// fall back to the aid to navigation report.

func (t *Track) Latitude() (float64, bool) {
	if r := t.DynamicReport(); r != nil {
		return r.Latitude, true
	}
	if r := t.AtoNReport(); r != nil {
		return r.Latitude, true
	}
	return 0, false
}

func (t *Track) Longitude() (float64, bool) {
	if r := t.DynamicReport(); r != nil {
		return r.Longitude, true
	}
	if r := t.AtoNReport(); r != nil {
		return r.Longitude, true
	}
	return 0, false
}

func (t *Track) SpeedOverGround() (float64, bool) {
	if r := t.DynamicReport(); r != nil {
		return r.SpeedOverGround, true
	}
	return 0, false
}

func (t *Track) CourseOverGround() (float64, bool) {
	if r := t.DynamicReport(); r != nil {
		return r.CourseOverGround, true
	}
	return 0, false
}

func (t *Track) TrueHeading() (int, bool) {
	if r := t.DynamicReport(); r != nil && r.Extended {
		return r.TrueHeading, true
	}
	return 0, false
}

func (t *Track) Second() (int, bool) {
	if r := t.DynamicReport(); r != nil && r.Extended {
		return r.Second, true
	}
	if r := t.AtoNReport(); r != nil {
		return r.Second, true
	}
	return 0, false
}
