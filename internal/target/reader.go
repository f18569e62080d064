package target

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Buffer cache capacities. Masters are few and huge, results are many and
// mid-sized, training files are small and read in bursts.
const (
	horseCacheFiles    = 5
	resultCacheFiles   = 20
	trainingCacheFiles = 50
)

// Reader provides cached access to the fixed-width export tree rooted at
// <root>/{UM,SE,CK}/<year>/... . All lookups treat I/O failure as absence;
// the export tree is owned by an upstream job and gaps are normal.
type Reader struct {
	root string
	log  zerolog.Logger

	dirs *DirCache
	um   *BufferCache[[]*Horse]
	se   *BufferCache[[]*RaceResult]
	ck   *BufferCache[[]*TrainingSession]

	// ScanYears bounds how many recent years a full SE or UM scan visits.
	ScanYears int
}

// NewReader creates a reader over an export tree.
func NewReader(root string, log zerolog.Logger) *Reader {
	return &Reader{
		root:      root,
		log:       log,
		dirs:      NewDirCache(0),
		um:        NewBufferCache[[]*Horse](horseCacheFiles),
		se:        NewBufferCache[[]*RaceResult](resultCacheFiles),
		ck:        NewBufferCache[[]*TrainingSession](trainingCacheFiles),
		ScanYears: 3,
	}
}

// Dirs exposes the directory cache for external invalidation.
func (r *Reader) Dirs() *DirCache { return r.dirs }

// SetDirTTL replaces the directory cache with one using the given TTL.
// Call before the reader is shared across goroutines.
func (r *Reader) SetDirTTL(ttl time.Duration) {
	r.dirs = NewDirCache(ttl)
}

// DropFile removes a changed file from the decoded caches.
func (r *Reader) DropFile(path string) {
	r.um.Drop(path)
	r.se.Drop(path)
	r.ck.Drop(path)
}

// HorseFile decodes a UM master file through the buffer cache.
func (r *Reader) HorseFile(path string) []*Horse {
	if v, ok := r.um.Get(path); ok {
		return v
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	v := DecodeHorseFile(data)
	r.um.Put(path, v)
	return v
}

// ResultFile decodes an SE result file through the buffer cache.
func (r *Reader) ResultFile(path string) []*RaceResult {
	if v, ok := r.se.Get(path); ok {
		return v
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	v := DecodeResultFile(data)
	r.se.Put(path, v)
	return v
}

// TrainingFile decodes a CK training file through the buffer cache.
func (r *Reader) TrainingFile(path string) []*TrainingSession {
	if v, ok := r.ck.Get(path); ok {
		return v
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	v := DecodeTrainingFile(data)
	r.ck.Put(path, v)
	return v
}

// recentYears lists year directories under a category, newest first,
// capped to ScanYears.
func (r *Reader) recentYears(category string) []string {
	names, err := r.dirs.List(filepath.Join(r.root, category))
	if err != nil {
		return nil
	}
	var years []string
	for _, n := range names {
		if len(n) == 4 {
			if _, err := strconv.Atoi(n); err == nil {
				years = append(years, n)
			}
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	if len(years) > r.ScanYears {
		years = years[:r.ScanYears]
	}
	return years
}

// FindHorse resolves a 10-digit registration number against the UM
// masters. The first four digits encode the birth year, so the targeted
// files UM<year>2.DAT then UM<year>1.DAT are tried before a scan of
// recent masters.
func (r *Reader) FindHorse(regNum string) (*Horse, bool) {
	if len(regNum) != 10 {
		return nil, false
	}
	birthYear := regNum[:4]
	for _, half := range []string{"2", "1"} {
		path := filepath.Join(r.root, "UM", birthYear, "UM"+birthYear+half+".DAT")
		for _, h := range r.HorseFile(path) {
			if h.RegNum == regNum {
				return h, true
			}
		}
	}
	return r.scanHorses(func(h *Horse) bool { return h.RegNum == regNum })
}

// FindHorseByName resolves a horse by exact name over recent masters.
func (r *Reader) FindHorseByName(name string) (*Horse, bool) {
	if name == "" {
		return nil, false
	}
	return r.scanHorses(func(h *Horse) bool { return h.Name == name })
}

func (r *Reader) scanHorses(match func(*Horse) bool) (*Horse, bool) {
	for _, year := range r.recentYears("UM") {
		dir := filepath.Join(r.root, "UM", year)
		names, err := r.dirs.List(dir)
		if err != nil {
			continue
		}
		for _, n := range names {
			if !strings.HasPrefix(n, "UM") || !strings.HasSuffix(n, ".DAT") {
				continue
			}
			for _, h := range r.HorseFile(filepath.Join(dir, n)) {
				if match(h) {
					return h, true
				}
			}
		}
	}
	return nil, false
}

// ResultsForHorse scans recent SE files for a horse's runs, newest file
// first. An empty result is a normal answer, not an error.
func (r *Reader) ResultsForHorse(regNum string) []*RaceResult {
	start := time.Now()
	var out []*RaceResult
	files := 0
	for _, year := range r.recentYears("SE") {
		yearDir := filepath.Join(r.root, "SE", year)
		months, err := r.dirs.List(yearDir)
		if err != nil {
			continue
		}
		sort.Sort(sort.Reverse(sort.StringSlice(months)))
		for _, m := range months {
			dir := filepath.Join(yearDir, m)
			names, err := r.dirs.List(dir)
			if err != nil {
				continue
			}
			for _, n := range names {
				if !strings.HasPrefix(n, "SE") || !strings.HasSuffix(n, ".DAT") {
					continue
				}
				files++
				for _, res := range r.ResultFile(filepath.Join(dir, n)) {
					if res.RegNum == regNum {
						out = append(out, res)
					}
				}
			}
		}
	}
	r.log.Debug().
		Str("reg_num", regNum).
		Int("files", files).
		Int("results", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("scanned results")
	return out
}

// TrainingForDate decodes all CK records for one YYYYMMDD date.
func (r *Reader) TrainingForDate(date string) []*TrainingSession {
	if len(date) != 8 {
		return nil
	}
	dir := filepath.Join(r.root, "CK", date[:4], date[:6])
	names, err := r.dirs.List(dir)
	if err != nil {
		return nil
	}
	yymmdd := date[2:]
	var out []*TrainingSession
	for _, n := range names {
		if !strings.HasPrefix(n, "CK") || !strings.HasSuffix(n, ".DAT") {
			continue
		}
		if !strings.Contains(n, yymmdd) && !strings.Contains(n, date) {
			continue
		}
		for _, s := range r.TrainingFile(filepath.Join(dir, n)) {
			if s.Date == date {
				out = append(out, s)
			}
		}
	}
	return out
}
