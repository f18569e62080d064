// Package link fuses authoritative race results with supplementary
// scraped annotations. The authoritative side is the base; the
// supplementary side only fills blanks and contributes its own fields.
package link

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/keibalab/umadata/internal/target"
	"github.com/keibalab/umadata/internal/training"
)

// Supplementary is one scraped annotation for a horse's run, collected
// from the race documents the reverse index pointed at.
type Supplementary struct {
	RaceID     string
	Date       string // YYYYMMDD digits
	Track      string
	RaceNumber int
	RaceName   string
	Course     string
	Distance   int
	Going      string
	FieldSize  int
	HorseName  string
	Comment    string
	Mark       string
}

// Linked is the merge product: an authoritative record plus whatever
// the supplementary source filled in.
type Linked struct {
	target.RaceResult

	Venue     string `json:"venue"`
	RaceName  string `json:"race_name,omitempty"`
	Course    string `json:"course,omitempty"`
	Distance  int    `json:"distance,omitempty"`
	Going     string `json:"going,omitempty"`
	FieldSize int    `json:"field_size,omitempty"`
	Comment   string `json:"comment,omitempty"`
	Mark      string `json:"mark,omitempty"`
	RaceID    string `json:"race_id,omitempty"`
	Matched   bool   `json:"matched"`

	// Training is attached by the query layer from the race date's
	// summary document.
	Training *training.HorseSummary `json:"training,omitempty"`
}

// MatchKey is the canonical bridge between the two ID schemes:
// digits-only date, bare track name, race number.
func MatchKey(dateDigits, track string, raceNumber int) string {
	return fmt.Sprintf("%s|%s|%d", dateDigits, track, raceNumber)
}

// SupMap indexes supplementary records by MatchKey, with the scraped
// race ID as fallback bridge.
type SupMap struct {
	byKey    map[string]*Supplementary
	byRaceID map[string]*Supplementary
	all      []Supplementary
}

// BuildSupMap indexes supplementary records. A duplicate MatchKey means
// the single-race-per-number assumption broke; it is logged and the
// first record wins rather than being silently replaced.
func BuildSupMap(sups []Supplementary, log zerolog.Logger) *SupMap {
	m := &SupMap{
		byKey:    make(map[string]*Supplementary, len(sups)),
		byRaceID: make(map[string]*Supplementary, len(sups)),
		all:      sups,
	}
	for i := range sups {
		s := &m.all[i]
		key := MatchKey(s.Date, s.Track, s.RaceNumber)
		if _, dup := m.byKey[key]; dup {
			log.Warn().Str("match_key", key).Str("race_id", s.RaceID).
				Msg("ambiguous supplementary match key, keeping first")
		} else {
			m.byKey[key] = s
		}
		if s.RaceID != "" {
			if _, dup := m.byRaceID[s.RaceID]; !dup {
				m.byRaceID[s.RaceID] = s
			}
		}
	}
	return m
}

// Len returns the number of supplementary records indexed.
func (m *SupMap) Len() int { return len(m.all) }

// Rate is the linker's match rate, exposed so callers can detect
// systematic scheme drift instead of silently degrading.
type Rate struct {
	Matched int `json:"matched"`
	Total   int `json:"total"`
}

func (r Rate) Value() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Matched) / float64(r.Total)
}

// Merge links every authoritative record against the supplementary map,
// preserving authoritative order and count. Lookup is MatchKey first,
// raw race ID second. Supplementary values land only where the
// authoritative side is empty.
func Merge(auth []*target.RaceResult, sup *SupMap, log zerolog.Logger) ([]Linked, Rate) {
	out := make([]Linked, 0, len(auth))
	rate := Rate{Total: len(auth)}

	for _, a := range auth {
		l := Linked{
			RaceResult: *a,
			Venue:      target.VenueName(a.VenueCode),
		}
		s := sup.byKey[MatchKey(a.Date, l.Venue, a.RaceNumber)]
		if s == nil {
			s = sup.byRaceID[a.RaceKey]
		}
		if s != nil {
			fillFrom(&l, s)
			rate.Matched++
		}
		out = append(out, l)
	}

	if rate.Total >= 5 && rate.Value() < 0.5 {
		log.Warn().
			Int("matched", rate.Matched).
			Int("total", rate.Total).
			Msg("low supplementary match rate, possible scheme drift")
	}
	return out, rate
}

// fillFrom applies the merge rule: shared fields fill only when the
// base value is empty; supplementary-only fields always copy.
func fillFrom(l *Linked, s *Supplementary) {
	if l.Venue == "" {
		l.Venue = s.Track
	}
	if l.RaceName == "" {
		l.RaceName = s.RaceName
	}
	if l.Course == "" {
		l.Course = s.Course
	}
	if l.Distance == 0 {
		l.Distance = s.Distance
	}
	if l.Going == "" {
		l.Going = s.Going
	}
	if l.FieldSize == 0 {
		l.FieldSize = s.FieldSize
	}
	l.Comment = s.Comment
	l.Mark = s.Mark
	l.RaceID = s.RaceID
	l.Matched = true
}

// SupplementaryOnly is the degraded fallback when the authoritative
// source has nothing for a horse: the supplementary records alone,
// newest first.
func SupplementaryOnly(sup *SupMap) []Linked {
	out := make([]Linked, 0, len(sup.all))
	for i := range sup.all {
		s := &sup.all[i]
		l := Linked{}
		l.Date = s.Date
		l.RaceNumber = s.RaceNumber
		l.HorseName = s.HorseName
		fillFrom(&l, s)
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}
