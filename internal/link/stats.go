package link

import "strings"

// Record is a win/place tally: finishes 1st / 2nd / 3rd / other.
type Record struct {
	Starts  int `json:"starts"`
	Wins    int `json:"wins"`
	Seconds int `json:"seconds"`
	Thirds  int `json:"thirds"`
}

func (r *Record) add(finishPos int) {
	r.Starts++
	switch finishPos {
	case 1:
		r.Wins++
	case 2:
		r.Seconds++
	case 3:
		r.Thirds++
	}
}

// Stats aggregates a horse's linked results by surface, distance band,
// going, frame and field-size band.
type Stats struct {
	Total       Record            `json:"total"`
	BySurface   map[string]Record `json:"by_surface"`
	ByDistance  map[string]Record `json:"by_distance"`
	ByGoing     map[string]Record `json:"by_going"`
	ByFrame     map[int]Record    `json:"by_frame"`
	ByFieldSize map[string]Record `json:"by_field_size"`
}

// distanceBand buckets metres the way form guides do.
func distanceBand(m int) string {
	switch {
	case m == 0:
		return "不明"
	case m <= 1400:
		return "短距離"
	case m <= 1800:
		return "マイル"
	case m <= 2200:
		return "中距離"
	default:
		return "長距離"
	}
}

// fieldSizeBand buckets head counts: small fields race differently from
// full gates.
func fieldSizeBand(n int) string {
	switch {
	case n == 0:
		return "不明"
	case n <= 8:
		return "少頭数"
	case n <= 13:
		return "中頭数"
	default:
		return "多頭数"
	}
}

func going(g string) string {
	if g == "" {
		return "不明"
	}
	return g
}

// surface reduces a course string to its surface marker.
func surface(course string) string {
	switch {
	case strings.HasPrefix(course, "芝"):
		return "芝"
	case strings.HasPrefix(course, "ダ"):
		return "ダ"
	case strings.HasPrefix(course, "障"):
		return "障"
	default:
		return "不明"
	}
}

// Aggregate computes per-horse statistics over linked results. Races
// without a recorded finish position are skipped.
func Aggregate(results []Linked) Stats {
	st := Stats{
		BySurface:   make(map[string]Record),
		ByDistance:  make(map[string]Record),
		ByGoing:     make(map[string]Record),
		ByFrame:     make(map[int]Record),
		ByFieldSize: make(map[string]Record),
	}
	for i := range results {
		r := &results[i]
		if r.FinishPos == 0 {
			continue
		}
		st.Total.add(r.FinishPos)

		s := st.BySurface[surface(r.Course)]
		s.add(r.FinishPos)
		st.BySurface[surface(r.Course)] = s

		d := st.ByDistance[distanceBand(r.Distance)]
		d.add(r.FinishPos)
		st.ByDistance[distanceBand(r.Distance)] = d

		g := st.ByGoing[going(r.Going)]
		g.add(r.FinishPos)
		st.ByGoing[going(r.Going)] = g

		fs := st.ByFieldSize[fieldSizeBand(r.FieldSize)]
		fs.add(r.FinishPos)
		st.ByFieldSize[fieldSizeBand(r.FieldSize)] = fs

		if r.Wakuban > 0 {
			f := st.ByFrame[r.Wakuban]
			f.add(r.FinishPos)
			st.ByFrame[r.Wakuban] = f
		}
	}
	return st
}
