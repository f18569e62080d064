// Package query is the surface the presentation layer calls: horse
// resolution, linked past races, per-date schedules, race lookup and
// training summaries.
package query

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/keibalab/umadata/internal/index"
	"github.com/keibalab/umadata/internal/jptext"
	"github.com/keibalab/umadata/internal/link"
	"github.com/keibalab/umadata/internal/lookup"
	"github.com/keibalab/umadata/internal/scrape"
	"github.com/keibalab/umadata/internal/target"
	"github.com/keibalab/umadata/internal/training"
)

// ErrNotFound is the explicit absence answer for every lookup here.
var ErrNotFound = errors.New("query: not found")

// HorseIdentity reconciles the two ID schemes a horse is known under.
type HorseIdentity struct {
	RegNum    string `json:"reg_num,omitempty"`    // 10-digit registration number
	ScrapedID string `json:"scraped_id,omitempty"` // 7-digit commentary-source ID
	Name      string `json:"name"`
	Sex       string `json:"sex,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
	Trainer   string `json:"trainer,omitempty"`
}

// Service wires the index store, the export reader, the linker and the
// training generator into the query surface.
type Service struct {
	idx    *index.Store
	reader *target.Reader
	gen    *training.Generator
	log    zerolog.Logger

	// Identities are cached for the process lifetime; they are
	// discovered lazily on first query and never change.
	idMu       sync.RWMutex
	identities map[string]HorseIdentity
}

// New creates the query service.
func New(idx *index.Store, reader *target.Reader, gen *training.Generator, log zerolog.Logger) *Service {
	return &Service{
		idx:        idx,
		reader:     reader,
		gen:        gen,
		log:        log,
		identities: make(map[string]HorseIdentity),
	}
}

// ResolveHorse turns a raw ID (10-digit registration number or 7-digit
// scraped ID) and an optional known name into a HorseIdentity.
func (s *Service) ResolveHorse(ctx context.Context, rawID, knownName string) (HorseIdentity, error) {
	cacheKey := rawID + "|" + knownName
	s.idMu.RLock()
	id, ok := s.identities[cacheKey]
	s.idMu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := s.resolve(ctx, rawID, knownName)
	if err != nil {
		return HorseIdentity{}, err
	}

	s.idMu.Lock()
	s.identities[cacheKey] = id
	s.idMu.Unlock()
	return id, nil
}

func (s *Service) resolve(ctx context.Context, rawID, knownName string) (HorseIdentity, error) {
	if err := ctx.Err(); err != nil {
		return HorseIdentity{}, err
	}

	switch len(rawID) {
	case 10:
		if h, ok := s.reader.FindHorse(rawID); ok {
			return identityFromMaster(h, ""), nil
		}
		// Master gap: the index may still know the horse by files.
		if name, ok := s.nameFromIndex(rawID); ok {
			return HorseIdentity{RegNum: rawID, Name: name}, nil
		}
	case 7:
		if id, ok := s.resolveScraped(rawID); ok {
			return id, nil
		}
	}

	if knownName != "" {
		if h, ok := s.reader.FindHorseByName(knownName); ok {
			return identityFromMaster(h, scrapedIDIf(rawID)), nil
		}
	}
	return HorseIdentity{}, ErrNotFound
}

// resolveScraped bridges a 7-digit ID through file co-occurrence: any
// race document mentioning the ID also carries the horse's name, and
// usually its registration number.
func (s *Service) resolveScraped(scrapedID string) (HorseIdentity, bool) {
	files, ok, err := s.idx.HorseFiles(scrapedID)
	if err != nil || !ok {
		return HorseIdentity{}, false
	}
	for _, path := range files {
		doc, err := scrape.Read(path)
		if err != nil {
			continue
		}
		for _, e := range doc.Entries {
			if e.HorseID != scrapedID {
				continue
			}
			if e.RegNum != "" {
				if h, ok := s.reader.FindHorse(e.RegNum); ok {
					return identityFromMaster(h, scrapedID), true
				}
				return HorseIdentity{RegNum: e.RegNum, ScrapedID: scrapedID, Name: e.HorseName}, true
			}
			if e.HorseName != "" {
				if h, ok := s.reader.FindHorseByName(e.HorseName); ok {
					return identityFromMaster(h, scrapedID), true
				}
				return HorseIdentity{ScrapedID: scrapedID, Name: e.HorseName}, true
			}
		}
	}
	return HorseIdentity{}, false
}

func (s *Service) nameFromIndex(regNum string) (string, bool) {
	files, ok, err := s.idx.HorseFiles(regNum)
	if err != nil || !ok {
		return "", false
	}
	for _, path := range files {
		doc, err := scrape.Read(path)
		if err != nil {
			continue
		}
		for _, e := range doc.Entries {
			if e.RegNum == regNum && e.HorseName != "" {
				return e.HorseName, true
			}
		}
	}
	return "", false
}

func identityFromMaster(h *target.Horse, scrapedID string) HorseIdentity {
	return HorseIdentity{
		RegNum:    h.RegNum,
		ScrapedID: scrapedID,
		Name:      h.Name,
		Sex:       h.Sex,
		BirthDate: h.BirthDate,
		Trainer:   h.Trainer,
	}
}

func scrapedIDIf(rawID string) string {
	if len(rawID) == 7 {
		return rawID
	}
	return ""
}

// PastRaces returns a horse's linked race history, newest first, capped
// at max. The match rate is exposed so callers can detect scheme drift.
func (s *Service) PastRaces(ctx context.Context, id HorseIdentity, max int) ([]link.Linked, link.Rate, error) {
	if err := ctx.Err(); err != nil {
		return nil, link.Rate{}, err
	}

	var auth []*target.RaceResult
	if id.RegNum != "" {
		auth = s.reader.ResultsForHorse(id.RegNum)
	}
	sort.SliceStable(auth, func(i, j int) bool { return auth[i].Date > auth[j].Date })

	sup := link.BuildSupMap(s.collectSupplementary(id), s.log)

	var linked []link.Linked
	var rate link.Rate
	if len(auth) == 0 {
		if sup.Len() == 0 {
			return nil, link.Rate{}, nil
		}
		linked = link.SupplementaryOnly(sup)
	} else {
		linked, rate = link.Merge(auth, sup, s.log)
	}

	if max > 0 && len(linked) > max {
		linked = linked[:max]
	}
	s.attachTraining(linked, id)
	return linked, rate, nil
}

// collectSupplementary reads every race document the index associates
// with either of the horse's keys and extracts its row.
func (s *Service) collectSupplementary(id HorseIdentity) []link.Supplementary {
	seen := make(map[string]bool)
	var paths []string
	for _, key := range []string{id.RegNum, id.ScrapedID} {
		if key == "" {
			continue
		}
		files, ok, err := s.idx.HorseFiles(key)
		if err != nil || !ok {
			continue
		}
		for _, p := range files {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}

	var sups []link.Supplementary
	for _, path := range paths {
		doc, err := scrape.Read(path)
		if err != nil {
			s.log.Debug().Err(err).Str("path", path).Msg("skip unreadable race doc")
			continue
		}
		for _, e := range doc.Entries {
			if !entryMatches(&e, id) {
				continue
			}
			sups = append(sups, link.Supplementary{
				RaceID:     doc.RaceID,
				Date:       jptext.DigitsOnly(doc.Date),
				Track:      doc.Track(),
				RaceNumber: doc.RaceNumber,
				RaceName:   doc.RaceName,
				Course:     doc.Course,
				Distance:   doc.Distance(),
				Going:      doc.Condition,
				FieldSize:  len(doc.Entries),
				HorseName:  e.HorseName,
				Comment:    e.Comment,
				Mark:       e.Mark,
			})
			break
		}
	}
	return sups
}

func entryMatches(e *scrape.Entry, id HorseIdentity) bool {
	if id.RegNum != "" && e.RegNum == id.RegNum {
		return true
	}
	if id.ScrapedID != "" && e.HorseID == id.ScrapedID {
		return true
	}
	return id.Name != "" && e.HorseName == id.Name
}

// attachTraining adds the race-week workout summary to each linked
// race, but only from already-persisted documents; history queries do
// not trigger summary generation.
func (s *Service) attachTraining(linked []link.Linked, id HorseIdentity) {
	for i := range linked {
		sum, ok := s.gen.Cached(linked[i].Date)
		if !ok {
			continue
		}
		name := linked[i].HorseName
		if name == "" {
			name = id.Name
		}
		if hs, ok := sum.Horses[name]; ok {
			linked[i].Training = hs
		}
	}
}

// RacesForDate returns the per-track schedule for a date in any common
// format ("2025/06/21", "20250621"). An unknown date is ErrNotFound.
func (s *Service) RacesForDate(ctx context.Context, date string) (map[string][]index.RaceSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byTrack, ok, err := s.idx.RacesForDate(jptext.DigitsOnly(date))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return byTrack, nil
}

// LookupRace resolves a free-text race query against a day's schedule.
func (s *Service) LookupRace(ctx context.Context, date string, q lookup.Query) (*index.RaceSummary, error) {
	byTrack, err := s.RacesForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	r, ok := lookup.Resolve(byTrack, q)
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// TrainingSummary returns the per-horse workout summary for a date,
// generating and persisting it when no cached document exists.
func (s *Service) TrainingSummary(ctx context.Context, date string) (*training.Summary, error) {
	return s.gen.Summary(ctx, jptext.DigitsOnly(date))
}
