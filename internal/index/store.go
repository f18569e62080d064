// Package index maintains the reverse indices over the scraped race
// tree: horse key to referencing files, and date to per-track race
// summaries. Both are built in one walk, persisted compressed, and
// reloaded on restart.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/keibalab/umadata/internal/scrape"
)

// SchemaVersion is bumped whenever the persisted structure changes.
// A persisted artifact with any other version is treated as absent.
const SchemaVersion = 4

const (
	payloadFileName = "reverse.idx.zst"
	metaFileName    = "reverse.meta.json"

	// DefaultHorizonYears caps the horse index to recent seasons; the
	// date index always covers the full tree.
	DefaultHorizonYears = 3
)

var (
	ErrVersionMismatch = errors.New("index: schema version mismatch")
	ErrNoArtifact      = errors.New("index: no persisted artifact")
)

// PaceSummary is the derived pace figure for a finished race.
// RPCI compares the opening and closing 3 furlongs; high values mean a
// fast-early race.
type PaceSummary struct {
	RPCI float64 `json:"rpci"`
	Bias string  `json:"bias"` // 前傾, 後傾 or 平均
}

// RaceSummary is one race's entry in the date index.
type RaceSummary struct {
	RaceID    string       `json:"race_id"`
	RaceKey   string       `json:"race_key,omitempty"`
	Number    int          `json:"number"`
	Name      string       `json:"name"`
	Kaisai    string       `json:"kaisai"`
	Course    string       `json:"course,omitempty"`
	Distance  int          `json:"distance,omitempty"`
	StartTime string       `json:"start_time,omitempty"`
	FieldSize int          `json:"field_size"`
	Pace      *PaceSummary `json:"pace,omitempty"`
	File      string       `json:"file"`
}

// Meta is the persisted sidecar describing an index artifact.
type Meta struct {
	Version int       `json:"version"`
	BuiltAt time.Time `json:"built_at"`
	Files   int       `json:"files"`
	Horses  int       `json:"horses"`
	Dates   int       `json:"dates"`
	Races   int       `json:"races"`
}

// payload is the compressed on-disk form of both maps.
type payload struct {
	Horse map[string][]string                 `json:"horse"`
	Date  map[string]map[string][]RaceSummary `json:"date"`
}

// Stats reports the state of a store.
type Stats struct {
	Loaded  bool
	Version int
	BuiltAt time.Time
	Files   int
	Horses  int
	Dates   int
	Races   int
}

// Store owns the in-memory maps and their persisted artifacts. All
// query methods load lazily; concurrent builds collapse to one.
type Store struct {
	racesRoot string
	stateDir  string
	horizon   int

	mu     sync.RWMutex
	loaded bool
	horse  map[string][]string
	date   map[string]map[string][]RaceSummary
	meta   Meta

	flight singleflight.Group
	enc    *zstd.Encoder
	dec    *zstd.Decoder

	log func(format string, args ...any)
}

// NewStore creates a store over a scraped race tree. stateDir holds the
// persisted artifacts. horizonYears <= 0 uses DefaultHorizonYears.
func NewStore(racesRoot, stateDir string, horizonYears int) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if horizonYears <= 0 {
		horizonYears = DefaultHorizonYears
	}
	return &Store{
		racesRoot: racesRoot,
		stateDir:  stateDir,
		horizon:   horizonYears,
		horse:     make(map[string][]string),
		date:      make(map[string]map[string][]RaceSummary),
		enc:       enc,
		dec:       dec,
		log:       func(format string, args ...any) {},
	}, nil
}

// SetLogger sets a logging function.
func (s *Store) SetLogger(log func(format string, args ...any)) {
	s.log = log
}

// Close releases the compression codecs.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return nil
}

func (s *Store) payloadPath() string { return filepath.Join(s.stateDir, payloadFileName) }
func (s *Store) metaPath() string    { return filepath.Join(s.stateDir, metaFileName) }

// Stats returns a snapshot of the store state.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Loaded:  s.loaded,
		Version: s.meta.Version,
		BuiltAt: s.meta.BuiltAt,
		Files:   s.meta.Files,
		Horses:  s.meta.Horses,
		Dates:   s.meta.Dates,
		Races:   s.meta.Races,
	}
}

// HorseFiles returns the ordered file paths referencing a horse key
// (registration number or scraped ID). A missing key is (nil, false),
// not an error.
func (s *Store) HorseFiles(id string) ([]string, bool, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	files, ok := s.horse[id]
	return files, ok, nil
}

// RacesForDate returns the per-track race summaries for a YYYYMMDD date.
func (s *Store) RacesForDate(date string) (map[string][]RaceSummary, bool, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	byTrack, ok := s.date[date]
	return byTrack, ok, nil
}

// ensureLoaded makes a query transparently Load (never Build directly),
// so the first read after restart pays deserialization, not a full walk.
func (s *Store) ensureLoaded() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Load()
}

// Load deserializes the persisted artifact, falling back to Build when
// it is absent or carries the wrong schema version. Concurrent loads
// collapse.
func (s *Store) Load() error {
	_, err, _ := s.flight.Do("load", func() (any, error) {
		s.mu.RLock()
		loaded := s.loaded
		s.mu.RUnlock()
		if loaded {
			return nil, nil
		}
		err := s.loadArtifact()
		switch {
		case err == nil:
			return nil, nil
		case errors.Is(err, ErrVersionMismatch):
			s.log("index schema drift, rebuilding: %v", err)
		case errors.Is(err, os.ErrNotExist), errors.Is(err, ErrNoArtifact):
			s.log("no persisted index, building")
		default:
			s.log("index load failed, rebuilding: %v", err)
		}
		return nil, s.Build()
	})
	return err
}

func (s *Store) loadArtifact() error {
	metaBytes, err := os.ReadFile(s.metaPath())
	if err != nil {
		return err
	}
	var meta Meta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("decode index meta: %w", err)
	}
	if meta.Version != SchemaVersion {
		return fmt.Errorf("%w: have %d, want %d", ErrVersionMismatch, meta.Version, SchemaVersion)
	}

	compressed, err := os.ReadFile(s.payloadPath())
	if err != nil {
		return err
	}
	raw, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("decompress index: %w", err)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode index payload: %w", err)
	}

	s.mu.Lock()
	s.horse = p.Horse
	s.date = p.Date
	s.meta = meta
	s.loaded = true
	s.mu.Unlock()

	s.log("loaded index: %d horses, %d dates (built %s)",
		meta.Horses, meta.Dates, meta.BuiltAt.Format(time.RFC3339))
	return nil
}

// Build walks the whole race tree once and replaces the in-memory maps.
// Concurrent invocations collapse into a single in-flight build; late
// arrivals share its result. Persisting the artifact is best effort.
func (s *Store) Build() error {
	_, err, _ := s.flight.Do("build", func() (any, error) {
		start := time.Now()
		p, files, races, err := s.walk()
		if err != nil {
			return nil, err
		}

		meta := Meta{
			Version: SchemaVersion,
			BuiltAt: time.Now(),
			Files:   files,
			Horses:  len(p.Horse),
			Dates:   len(p.Date),
			Races:   races,
		}

		s.mu.Lock()
		s.horse = p.Horse
		s.date = p.Date
		s.meta = meta
		s.loaded = true
		s.mu.Unlock()

		s.log("built index in %s: %d files, %d horses, %d dates, %d races",
			time.Since(start).Round(time.Millisecond), files, meta.Horses, meta.Dates, races)

		if err := s.persist(p, meta); err != nil {
			s.log("persist index failed (kept in memory): %v", err)
		}
		return nil, nil
	})
	return err
}

func (s *Store) persist(p *payload, meta Meta) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	compressed := s.enc.EncodeAll(raw, nil)
	if err := os.WriteFile(s.payloadPath(), compressed, 0644); err != nil {
		return err
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(), metaBytes, 0644)
}

// Clear drops the in-memory maps and deletes the persisted artifacts,
// forcing the next Build to start cold. Operator use only.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.horse = make(map[string][]string)
	s.date = make(map[string]map[string][]RaceSummary)
	s.meta = Meta{}
	s.loaded = false
	s.mu.Unlock()

	var firstErr error
	for _, path := range []string{s.payloadPath(), s.metaPath()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	s.log("cleared index")
	return firstErr
}

// yearResult is one year's partial maps from the parallel walk.
type yearResult struct {
	horse map[string][]string
	date  map[string]map[string][]RaceSummary
	files int
	races int
}

// walk scans races/<year>/<month>/<day>/race_*.json. Years run in
// parallel; the horse map only covers the horizon years, the date map
// covers everything.
func (s *Store) walk() (*payload, int, int, error) {
	entries, err := os.ReadDir(s.racesRoot)
	if err != nil {
		// An absent tree builds an empty, valid index.
		if errors.Is(err, os.ErrNotExist) {
			return &payload{
				Horse: make(map[string][]string),
				Date:  make(map[string]map[string][]RaceSummary),
			}, 0, 0, nil
		}
		return nil, 0, 0, fmt.Errorf("read races root: %w", err)
	}

	var years []string
	for _, e := range entries {
		if e.IsDir() && len(e.Name()) == 4 {
			if _, err := strconv.Atoi(e.Name()); err == nil {
				years = append(years, e.Name())
			}
		}
	}
	sort.Strings(years)

	horizonFloor := ""
	if len(years) > s.horizon {
		horizonFloor = years[len(years)-s.horizon]
	}

	results := make([]*yearResult, len(years))
	var g errgroup.Group
	g.SetLimit(4)
	for i, year := range years {
		i, year := i, year
		g.Go(func() error {
			r, err := s.walkYear(year, year >= horizonFloor)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}

	// Merge in year order so file lists keep walk order.
	p := &payload{
		Horse: make(map[string][]string),
		Date:  make(map[string]map[string][]RaceSummary),
	}
	files, races := 0, 0
	for _, r := range results {
		if r == nil {
			continue
		}
		for id, fs := range r.horse {
			p.Horse[id] = append(p.Horse[id], fs...)
		}
		for date, byTrack := range r.date {
			p.Date[date] = byTrack
		}
		files += r.files
		races += r.races
	}
	return p, files, races, nil
}

func (s *Store) walkYear(year string, inHorizon bool) (*yearResult, error) {
	r := &yearResult{
		horse: make(map[string][]string),
		date:  make(map[string]map[string][]RaceSummary),
	}
	yearDir := filepath.Join(s.racesRoot, year)
	months, err := os.ReadDir(yearDir)
	if err != nil {
		return r, nil
	}
	for _, m := range months {
		if !m.IsDir() {
			continue
		}
		monthDir := filepath.Join(yearDir, m.Name())
		days, err := os.ReadDir(monthDir)
		if err != nil {
			continue
		}
		for _, d := range days {
			if !d.IsDir() {
				continue
			}
			date := year + pad2(m.Name()) + pad2(d.Name())
			dayDir := filepath.Join(monthDir, d.Name())
			names, err := os.ReadDir(dayDir)
			if err != nil {
				continue
			}
			for _, f := range names {
				name := f.Name()
				if !strings.HasPrefix(name, "race_") || !strings.HasSuffix(name, ".json") {
					continue
				}
				path := filepath.Join(dayDir, name)
				doc, err := scrape.Read(path)
				if err != nil {
					s.log("skip unreadable race doc %s: %v", path, err)
					continue
				}
				r.files++
				r.races++
				s.addDoc(r, doc, date, path, inHorizon)
			}
		}
	}
	return r, nil
}

func (s *Store) addDoc(r *yearResult, doc *scrape.Doc, date, path string, inHorizon bool) {
	if inHorizon {
		seen := make(map[string]bool, len(doc.Entries)*2)
		for _, e := range doc.Entries {
			for _, id := range []string{e.RegNum, e.HorseID} {
				if id == "" || seen[id] {
					continue
				}
				seen[id] = true
				r.horse[id] = append(r.horse[id], path)
			}
		}
	}

	track := doc.Track()
	if track == "" {
		track = "不明"
	}
	sum := RaceSummary{
		RaceID:    doc.RaceID,
		RaceKey:   doc.RaceKey,
		Number:    doc.RaceNumber,
		Name:      doc.RaceName,
		Kaisai:    doc.Kaisai,
		Course:    doc.Course,
		Distance:  doc.Distance(),
		StartTime: doc.StartTime,
		FieldSize: len(doc.Entries),
		Pace:      derivePace(doc.Pace),
		File:      path,
	}
	byTrack := r.date[date]
	if byTrack == nil {
		byTrack = make(map[string][]RaceSummary)
		r.date[date] = byTrack
	}
	byTrack[track] = insertByNumber(byTrack[track], sum)
}

// insertByNumber keeps a track's races ordered by race number.
func insertByNumber(list []RaceSummary, sum RaceSummary) []RaceSummary {
	list = append(list, sum)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Number < list[j].Number })
	return list
}

// derivePace computes the RPCI pace figure when both sectionals exist.
func derivePace(p *scrape.Pace) *PaceSummary {
	if p == nil || p.First3F == nil || p.Last3F == nil || *p.Last3F == 0 {
		return nil
	}
	rpci := *p.First3F / *p.Last3F * 50
	bias := "平均"
	switch {
	case rpci >= 51:
		bias = "前傾"
	case rpci <= 48:
		bias = "後傾"
	}
	return &PaceSummary{RPCI: rpci, Bias: bias}
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
