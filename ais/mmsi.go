// Package ais holds the decoded AIS message model shared by the tracker,
// the filter engine and the decoders.
package ais

import "fmt"

// MMSI identifies a vessel or station. Values <= 0 are invalid.
type MMSI int

func (m MMSI) Valid() bool {
	return m > 0
}

func (m MMSI) String() string {
	return FormatMMSI(int(m))
}

func FormatMMSI(mmsi int) string {
	return fmt.Sprintf("%09d", mmsi)
}

type TransponderClass int

const (
	ClassUnknown TransponderClass = iota
	ClassA
	ClassB
)

func (c TransponderClass) String() string {
	switch c {
	case ClassA:
		return "A"
	case ClassB:
		return "B"
	}
	return "unknown"
}

// ClassOf derives the transponder class from the message type.
func ClassOf(msgType int) TransponderClass {
	switch msgType {
	case 1, 2, 3, 5:
		return ClassA
	case 18, 19, 24:
		return ClassB
	}
	return ClassUnknown
}
