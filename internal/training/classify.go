// Package training classifies decoded workout sessions into rank labels
// and builds the per-date training summary document.
package training

import (
	"fmt"
	"strings"

	"github.com/keibalab/umadata/internal/target"
)

// Rank is a workout quality label: SS, or S/A/B/C/D suffixed with
// +/=/- for accelerating, even, or decelerating pace.
type Rank string

// Split thresholds for the letter classes, in seconds.
const (
	sharpLap  = 12.0
	steadyLap = 13.0
)

// Good-time thresholds on the 4F aggregate, in seconds. Domain
// heuristics inherited from the upstream tooling; slope courses differ
// by training centre, flat courses do not.
const (
	GoodTimeSlopeMiho  = 52.9
	GoodTimeSlopeRitto = 53.9
	GoodTimeFlat       = 52.2
)

// accelSuffix compares the final two furlongs. lap1 is the final
// furlong, lap2 the one before it.
func accelSuffix(lap1, lap2 float64) byte {
	switch {
	case lap2 > lap1:
		return '+'
	case lap2 < lap1:
		return '-'
	default:
		return '='
	}
}

// GoodTime reports whether a 4F aggregate beats the context threshold.
func GoodTime(f4 float64, kind target.SessionKind, location string) bool {
	switch {
	case kind == target.KindFlat:
		return f4 <= GoodTimeFlat
	case location == target.LocationRitto:
		return f4 <= GoodTimeSlopeRitto
	default:
		return f4 <= GoodTimeSlopeMiho
	}
}

// Classify produces a rank label from the final two furlong laps, with
// the optional 4F aggregate and session context deciding SS promotion.
func Classify(lap1, lap2 float64, f4 *float64, kind target.SessionKind, location string) Rank {
	suffix := accelSuffix(lap1, lap2)

	var class byte
	switch {
	case lap1 < sharpLap && lap2 < sharpLap:
		class = 'S'
	case lap1 < sharpLap:
		class = 'A'
	case lap1 < steadyLap && lap2 < steadyLap:
		class = 'B'
	case lap1 < steadyLap:
		class = 'C'
	default:
		class = 'D'
	}

	if class == 'S' && suffix != '-' && f4 != nil && GoodTime(*f4, kind, location) {
		return "SS"
	}
	return Rank([]byte{class, suffix})
}

// ClassifySession ranks a decoded session. The boolean is false when the
// session lacks the two laps needed to classify at all.
func ClassifySession(s *target.TrainingSession) (Rank, bool) {
	if s.Lap1 == nil || s.Lap2 == nil {
		return "", false
	}
	return Classify(*s.Lap1, *s.Lap2, s.F4, s.Kind, s.Location), true
}

// Score maps rank labels onto a comparable scale: SS is 16, then three
// steps per letter class down to D- at 1.
func Score(r Rank) int {
	if r == "SS" {
		return 16
	}
	if len(r) != 2 {
		return 0
	}
	var base int
	switch r[0] {
	case 'S':
		base = 13
	case 'A':
		base = 10
	case 'B':
		base = 7
	case 'C':
		base = 4
	case 'D':
		base = 1
	default:
		return 0
	}
	switch r[1] {
	case '+':
		return base + 2
	case '=':
		return base + 1
	case '-':
		return base
	}
	return 0
}

// Day labels summarizing which course kinds produced a good time.
const (
	DaySlope = "坂"
	DayFlat  = "コ"
	DayBoth  = "両"
)

// DayLabel reports which course kinds in a session set met their
// good-time threshold: slope-only, flat-only, both, or none (empty).
func DayLabel(sessions []*target.TrainingSession) string {
	var slope, flat bool
	for _, s := range sessions {
		if s.F4 == nil || !GoodTime(*s.F4, s.Kind, s.Location) {
			continue
		}
		if s.Kind == target.KindSlope {
			slope = true
		} else {
			flat = true
		}
	}
	switch {
	case slope && flat:
		return DayBoth
	case slope:
		return DaySlope
	case flat:
		return DayFlat
	default:
		return ""
	}
}

// FormatSession renders a session as the compact detail string used in
// summary documents, e.g. "坂路 52.9-38.5-25.0-12.1 (S+)".
func FormatSession(s *target.TrainingSession) string {
	course := "坂路"
	if s.Kind == target.KindFlat {
		course = "コース"
	}
	var parts []string
	for _, f := range []*float64{s.F4, s.F3, s.F2, s.Lap1} {
		if f == nil {
			parts = append(parts, "-")
		} else {
			parts = append(parts, fmt.Sprintf("%.1f", *f))
		}
	}
	out := course + " " + strings.Join(parts, "-")
	if r, ok := ClassifySession(s); ok {
		out += " (" + string(r) + ")"
	}
	return out
}
