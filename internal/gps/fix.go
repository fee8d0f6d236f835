package gps

import (
	nmea "github.com/adrianmo/go-nmea"
)

// Fix is one position report, attached to detections so a remote operator
// can find the device.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "23/03/94"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)
}

// FromRMC copies the position fields of an RMC sentence.
func FromRMC(m nmea.RMC) Fix {
	return Fix{
		Time:       m.Time.String(),
		Date:       m.Date.String(),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
		Validity:   string(m.Validity),
	}
}

// Valid reports whether the receiver had a position lock.
func (f Fix) Valid() bool {
	return f.Validity == nmea.ValidRMC
}
