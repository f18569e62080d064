package target

import (
	"bytes"
	"strconv"

	"github.com/keibalab/umadata/internal/jptext"
)

// SELineLen is the width of one SE race-result record.
const SELineLen = 555

func atoiField(b []byte) (int, bool) {
	s := string(bytes.TrimSpace(b))
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseRaceTime decodes the packed finish time "Msst" (minute, seconds,
// tenths) into seconds. Zero means the horse did not finish.
func parseRaceTime(b []byte) *float64 {
	v, ok := atoiField(b)
	if !ok || v == 0 {
		return nil
	}
	min := v / 1000
	sec := (v % 1000) / 10
	tenth := v % 10
	return fptr(float64(min*60+sec) + float64(tenth)/10)
}

// sexName maps the single-byte sex code used by both UM and SE records.
func sexName(b byte) string {
	switch b {
	case '1':
		return "牡"
	case '2':
		return "牝"
	case '3':
		return "セン"
	default:
		return ""
	}
}

// DecodeResultLine decodes one SE record. The boolean is false for lines
// of the wrong width or record type.
func DecodeResultLine(line []byte) (*RaceResult, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) != SELineLen || string(line[0:2]) != "SE" {
		return nil, false
	}

	r := &RaceResult{
		Date:      string(line[11:19]),
		VenueCode: string(line[19:21]),
		RegNum:    string(bytes.TrimSpace(line[30:40])),
		HorseName: jptext.Field(line[40:76]),
		Sex:       sexName(line[78]),
		Trainer:   jptext.Field(line[90:98]),
		Jockey:    jptext.Field(line[306:314]),
	}
	r.RaceKey = string(line[11:27])
	r.Kai, _ = atoiField(line[21:23])
	r.Nichi, _ = atoiField(line[23:25])
	r.RaceNumber, _ = atoiField(line[25:27])
	r.Wakuban, _ = atoiField(line[27:28])
	r.Umaban, _ = atoiField(line[28:30])
	r.Age, _ = atoiField(line[82:84])

	if v, ok := atoiField(line[288:291]); ok && v > 0 {
		r.Weight = fptr(float64(v) / 10)
	}
	if v, ok := atoiField(line[324:327]); ok && v > 0 {
		r.HorseWeight = iptr(v)
	}
	if v, ok := atoiField(line[328:331]); ok && v > 0 {
		if line[327] == '-' {
			v = -v
		}
		r.WeightChange = iptr(v)
	}

	r.FinishPos, _ = atoiField(line[334:336])
	r.Time = parseRaceTime(line[338:342])
	for i, off := range [4]int{351, 353, 355, 357} {
		r.Corners[i], _ = atoiField(line[off : off+2])
	}
	if v, ok := atoiField(line[359:363]); ok && v > 0 {
		r.Odds = fptr(float64(v) / 10)
	}
	if v, ok := atoiField(line[363:365]); ok && v > 0 {
		r.Ninki = iptr(v)
	}
	r.Last3F = parseTenths(line[390:393])

	return r, true
}

// DecodeResultFile decodes every SE record in a file buffer, skipping
// anything that does not look like one.
func DecodeResultFile(data []byte) []*RaceResult {
	var out []*RaceResult
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		if r, ok := DecodeResultLine(line); ok {
			out = append(out, r)
		}
	}
	return out
}
