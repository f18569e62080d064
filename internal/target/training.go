package target

import (
	"bytes"
	"strconv"
)

// CK line widths, excluding the line terminator.
const (
	SlopeLineLen = 92
	FlatLineLen  = 47
)

// Sanity bounds. Source files occasionally carry garbage timings; values
// outside these windows are reported as absent.
const (
	minF4Time  = 40.0
	maxF4Time  = 80.0
	minLapTime = 10.0
	maxLapTime = 20.0
)

// parseTenths decodes an ASCII digit field holding tenths of a second.
// All-zero and malformed fields are absent, never 0.0.
func parseTenths(b []byte) *float64 {
	s := string(bytes.TrimSpace(b))
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v == 0 {
		return nil
	}
	return fptr(float64(v) / 10)
}

func boundF4(v *float64) *float64 {
	if v == nil || *v < minF4Time || *v > maxF4Time {
		return nil
	}
	return v
}

func boundLap(v *float64) *float64 {
	if v == nil || *v < minLapTime || *v > maxLapTime {
		return nil
	}
	return v
}

// locationFor maps the discriminator byte to a training centre.
// The second return is false for any byte that is not a training record.
func locationFor(b byte) (string, bool) {
	switch b {
	case '0':
		return LocationMiho, true
	case '1':
		return LocationRitto, true
	default:
		return "", false
	}
}

// DecodeTrainingLine decodes one CK line. The boolean is false when the
// line is not a training record (bad width or discriminator); callers
// skip such lines, they are expected in mixed files.
func DecodeTrainingLine(line []byte) (*TrainingSession, bool) {
	line = bytes.TrimRight(line, "\r\n")
	switch len(line) {
	case SlopeLineLen:
		return decodeSlope(line)
	case FlatLineLen:
		return decodeFlat(line)
	default:
		return nil, false
	}
}

// decodeSlope decodes a 92-byte woodchip slope record. Split and lap
// fields sit at fixed distances from the end of the line.
func decodeSlope(line []byte) (*TrainingSession, bool) {
	loc, ok := locationFor(line[0])
	if !ok {
		return nil, false
	}
	n := len(line)
	s := &TrainingSession{
		Kind:      KindSlope,
		Location:  loc,
		Date:      string(bytes.TrimSpace(line[1:9])),
		TimeOfDay: string(bytes.TrimSpace(line[9:13])),
		RegNum:    string(bytes.TrimSpace(line[13:23])),

		F4:   boundF4(parseTenths(line[n-24 : n-20])),
		Lap4: boundLap(parseTenths(line[n-20 : n-17])),
		F3:   parseTenths(line[n-17 : n-13]),
		Lap3: boundLap(parseTenths(line[n-13 : n-10])),
		F2:   parseTenths(line[n-10 : n-6]),
		Lap2: boundLap(parseTenths(line[n-6 : n-3])),
		Lap1: boundLap(parseTenths(line[n-3:])),
	}
	return s, true
}

// decodeFlat decodes a 47-byte flat course record. There is no direct 4F
// field; one is synthesized from the 5F and 3F splits when both are
// present and consistent.
func decodeFlat(line []byte) (*TrainingSession, bool) {
	loc, ok := locationFor(line[0])
	if !ok {
		return nil, false
	}
	s := &TrainingSession{
		Kind:      KindFlat,
		Location:  loc,
		Date:      string(bytes.TrimSpace(line[1:9])),
		TimeOfDay: string(bytes.TrimSpace(line[9:13])),
		RegNum:    string(bytes.TrimSpace(line[13:23])),

		F5:   parseTenths(line[23:27]),
		F3:   parseTenths(line[30:34]),
		F2:   parseTenths(line[37:41]),
		Lap2: boundLap(parseTenths(line[41:44])),
		Lap1: boundLap(parseTenths(line[44:47])),
	}
	if s.F5 != nil && s.F3 != nil && *s.F5 > *s.F3 {
		s.F4 = boundF4(fptr((*s.F5 + *s.F3) / 2))
	}
	return s, true
}

// DecodeTrainingFile decodes every training record in a CK file buffer.
// Non-matching lines are skipped, never fatal.
func DecodeTrainingFile(data []byte) []*TrainingSession {
	var out []*TrainingSession
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		if s, ok := DecodeTrainingLine(line); ok {
			out = append(out, s)
		}
	}
	return out
}
