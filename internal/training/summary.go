package training

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/keibalab/umadata/internal/target"
)

// Window names inside a summary document. The final window is the race
// week's Wednesday/Thursday, weekAgo the pair seven days earlier, and
// weekend the Saturday/Sunday in between.
const (
	WindowFinal   = "final"
	WindowWeekAgo = "week_ago"
	WindowWeekend = "weekend"
)

// DateRange is one inclusive window of workout days.
type DateRange struct {
	From string `json:"from"` // YYYYMMDD
	To   string `json:"to"`
}

// Entry is the best session of one horse within one window.
type Entry struct {
	Date     string   `json:"date"`
	Rank     Rank     `json:"rank,omitempty"`
	Score    int      `json:"score,omitempty"`
	Detail   string   `json:"detail"`
	F4       *float64 `json:"f4,omitempty"`
	Location string   `json:"location"`
	Course   string   `json:"course"`
}

// HorseSummary groups a horse's window entries plus the day label over
// every session seen.
type HorseSummary struct {
	RegNum   string            `json:"reg_num"`
	DayLabel string            `json:"day_label,omitempty"`
	Windows  map[string]*Entry `json:"windows"`
}

// Meta describes how and when a summary document was generated.
type Meta struct {
	Date      string               `json:"date"`
	CreatedAt time.Time            `json:"created_at"`
	Ranges    map[string]DateRange `json:"ranges"`
	Count     int                  `json:"count"`
}

// Summary is the persisted per-date training summary document,
// keyed by horse name.
type Summary struct {
	Meta   Meta                     `json:"meta"`
	Horses map[string]*HorseSummary `json:"summaries"`
}

// NameResolver maps a registration number to a horse name. Empty means
// unknown; such horses are keyed by registration number instead.
type NameResolver func(regNum string) string

// Generator builds and caches training summary documents.
type Generator struct {
	reader    *target.Reader
	racesRoot string
	resolve   NameResolver
	log       zerolog.Logger
}

// NewGenerator creates a summary generator. racesRoot is the scraped
// tree root; summaries persist under its per-day temp directory.
func NewGenerator(reader *target.Reader, racesRoot string, resolve NameResolver, log zerolog.Logger) *Generator {
	if resolve == nil {
		resolve = func(string) string { return "" }
	}
	return &Generator{reader: reader, racesRoot: racesRoot, resolve: resolve, log: log}
}

// summaryPath is races/<y>/<m>/<d>/temp/training_summary.json.
func (g *Generator) summaryPath(date string) string {
	return filepath.Join(g.racesRoot, date[:4], date[4:6], date[6:8], "temp", "training_summary.json")
}

// Summary returns the cached document for a date, generating and
// persisting one when absent. date is YYYYMMDD.
func (g *Generator) Summary(ctx context.Context, date string) (*Summary, error) {
	if len(date) != 8 {
		return nil, fmt.Errorf("bad date %q", date)
	}
	if cached, err := g.loadCached(date); err == nil {
		return cached, nil
	}

	sum, err := g.generate(ctx, date)
	if err != nil {
		return nil, err
	}

	// Best effort: a persist failure costs the next caller a regenerate,
	// never the current result.
	if err := g.persist(date, sum); err != nil {
		g.log.Warn().Err(err).Str("date", date).Msg("persist training summary failed")
	}
	return sum, nil
}

// Cached returns the persisted summary for a date without generating.
func (g *Generator) Cached(date string) (*Summary, bool) {
	if len(date) != 8 {
		return nil, false
	}
	sum, err := g.loadCached(date)
	if err != nil {
		return nil, false
	}
	return sum, true
}

func (g *Generator) loadCached(date string) (*Summary, error) {
	data, err := os.ReadFile(g.summaryPath(date))
	if err != nil {
		return nil, err
	}
	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (g *Generator) persist(date string, sum *Summary) error {
	path := g.summaryPath(date)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Ranges computes the three workout windows backing a race date.
func Ranges(raceDate time.Time) map[string]DateRange {
	// Walk back to the race week's Wednesday.
	wed := raceDate
	for wed.Weekday() != time.Wednesday {
		wed = wed.AddDate(0, 0, -1)
	}
	day := func(t time.Time) string { return t.Format("20060102") }
	return map[string]DateRange{
		WindowFinal:   {From: day(wed), To: day(wed.AddDate(0, 0, 1))},
		WindowWeekAgo: {From: day(wed.AddDate(0, 0, -7)), To: day(wed.AddDate(0, 0, -6))},
		WindowWeekend: {From: day(wed.AddDate(0, 0, -4)), To: day(wed.AddDate(0, 0, -3))},
	}
}

func (g *Generator) generate(ctx context.Context, date string) (*Summary, error) {
	raceDate, err := time.Parse("20060102", date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	ranges := Ranges(raceDate)

	start := time.Now()
	perHorse := make(map[string][]*target.TrainingSession)
	windowBest := make(map[string]map[string]*target.TrainingSession)

	for name, rng := range ranges {
		for d := rng.From; d <= rng.To; d = nextDay(d) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for _, s := range g.reader.TrainingForDate(d) {
				perHorse[s.RegNum] = append(perHorse[s.RegNum], s)
				byWindow := windowBest[s.RegNum]
				if byWindow == nil {
					byWindow = make(map[string]*target.TrainingSession)
					windowBest[s.RegNum] = byWindow
				}
				if faster(s, byWindow[name]) {
					byWindow[name] = s
				}
			}
		}
	}

	sum := &Summary{
		Meta: Meta{
			Date:      date,
			CreatedAt: time.Now(),
			Ranges:    ranges,
		},
		Horses: make(map[string]*HorseSummary, len(perHorse)),
	}
	for regNum, sessions := range perHorse {
		key := g.resolve(regNum)
		if key == "" {
			key = regNum
		}
		hs := &HorseSummary{
			RegNum:   regNum,
			DayLabel: DayLabel(sessions),
			Windows:  make(map[string]*Entry),
		}
		for window, s := range windowBest[regNum] {
			e := &Entry{
				Date:     s.Date,
				Detail:   FormatSession(s),
				F4:       s.F4,
				Location: s.Location,
				Course:   s.Kind.String(),
			}
			if r, ok := ClassifySession(s); ok {
				e.Rank = r
				e.Score = Score(r)
			}
			hs.Windows[window] = e
		}
		sum.Horses[key] = hs
	}
	sum.Meta.Count = len(sum.Horses)

	g.log.Info().
		Str("date", date).
		Int("horses", sum.Meta.Count).
		Dur("elapsed", time.Since(start)).
		Msg("generated training summary")
	return sum, nil
}

// faster prefers the session with the lower 4F time; a session with a 4F
// beats one without, and ties keep the earlier arrival.
func faster(s, best *target.TrainingSession) bool {
	if best == nil {
		return true
	}
	if s.F4 == nil {
		return false
	}
	if best.F4 == nil {
		return true
	}
	return *s.F4 < *best.F4
}

func nextDay(d string) string {
	t, err := time.Parse("20060102", d)
	if err != nil {
		return "99999999"
	}
	return t.AddDate(0, 0, 1).Format("20060102")
}
