package lookup

import (
	"strings"

	"github.com/keibalab/umadata/internal/index"
)

// Query is one race lookup request. Track may carry a meeting prefix
// ("4東京11"); either RaceName or RaceNumber identifies the race, with
// DistanceHint as tiebreaker.
type Query struct {
	Track        string
	RaceName     string
	RaceNumber   int
	DistanceHint string
}

// Resolve finds the single race matching a query within a day's
// schedule. Matching runs in strictly ordered passes, stopping at the
// first pass yielding exactly one candidate; a pass with several
// candidates consults the distance hint before falling through.
func Resolve(byTrack map[string][]index.RaceSummary, q Query) (*index.RaceSummary, bool) {
	kai, track, nichi, hasKaisai := ParseKaisaiToken(q.Track)
	races := byTrack[track]
	if len(races) == 0 {
		return nil, false
	}

	// A parsed meeting prefix narrows to that meeting when the schedule
	// carries kaisai strings.
	if hasKaisai {
		key := KaisaiKey(kai, track, nichi)
		var narrowed []index.RaceSummary
		for _, r := range races {
			if r.Kaisai == "" || r.Kaisai == key {
				narrowed = append(narrowed, r)
			}
		}
		if len(narrowed) > 0 {
			races = narrowed
		}
	}

	hint := NormalizeCourse(q.DistanceHint)

	// Pass 1: race number is authoritative when supplied.
	if q.RaceNumber > 0 {
		if r, ok := settle(filter(races, func(r *index.RaceSummary) bool {
			return r.Number == q.RaceNumber
		}), hint); ok {
			return r, true
		}
	}
	if q.RaceName == "" {
		return nil, false
	}

	want := NormalizeRaceName(q.RaceName)
	wantBase := BaseName(q.RaceName)

	// Pass 2: exact normalized equality.
	if r, ok := settle(filter(races, func(r *index.RaceSummary) bool {
		return NormalizeRaceName(r.Name) == want
	}), hint); ok {
		return r, true
	}

	// Pass 3: substring containment either direction, or base-name
	// equality with qualifiers stripped.
	if r, ok := settle(filter(races, func(r *index.RaceSummary) bool {
		have := NormalizeRaceName(r.Name)
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return true
		}
		return wantBase != "" && BaseName(r.Name) == wantBase
	}), hint); ok {
		return r, true
	}

	// Pass 4: loose leading keyword.
	if term := leadingKeyword(q.RaceName); term != "" {
		if r, ok := settle(filter(races, func(r *index.RaceSummary) bool {
			return strings.Contains(NormalizeRaceName(r.Name), term)
		}), hint); ok {
			return r, true
		}
	}
	return nil, false
}

func filter(races []index.RaceSummary, keep func(*index.RaceSummary) bool) []*index.RaceSummary {
	var out []*index.RaceSummary
	for i := range races {
		if keep(&races[i]) {
			out = append(out, &races[i])
		}
	}
	return out
}

// settle reduces a pass's candidates to a single race. With several
// candidates the distance hint decides; still-ambiguous passes fall
// through rather than guessing.
func settle(cands []*index.RaceSummary, hint string) (*index.RaceSummary, bool) {
	switch len(cands) {
	case 0:
		return nil, false
	case 1:
		return cands[0], true
	}
	if hint == "" {
		return nil, false
	}
	var narrowed []*index.RaceSummary
	for _, c := range cands {
		if NormalizeCourse(c.Course) == hint {
			narrowed = append(narrowed, c)
		}
	}
	if len(narrowed) == 1 {
		return narrowed[0], true
	}
	return nil, false
}
