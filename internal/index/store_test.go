package index_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/keibalab/umadata/internal/index"
	"github.com/keibalab/umadata/internal/scrape"
)

func writeDoc(t *testing.T, root, year, month, day string, doc scrape.Doc) string {
	t.Helper()
	dir := filepath.Join(root, year, month, day)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, fmt.Sprintf("race_%d.json", doc.RaceNumber))
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func f(v float64) *float64 { return &v }

func seedTree(t *testing.T, root string) {
	t.Helper()
	writeDoc(t, root, "2025", "06", "21", scrape.Doc{
		RaceID:     "202506210511",
		Date:       "2025/06/21",
		Kaisai:     "3回東京7日目",
		RaceNumber: 11,
		RaceName:   "日本ダービー",
		Course:     "芝2400",
		StartTime:  "15:40",
		Pace:       &scrape.Pace{First3F: f(35.0), Last3F: f(34.0)},
		Entries: []scrape.Entry{
			{HorseID: "1104567", RegNum: "2022104567", HorseName: "TOKYOSTAR", Comment: "好位から抜け出す"},
			{HorseID: "1104568", HorseName: "NAKAYAMAQUEEN"},
		},
	})
	writeDoc(t, root, "2025", "06", "21", scrape.Doc{
		RaceID:     "202506210510",
		Date:       "2025/06/21",
		Kaisai:     "3回東京7日目",
		RaceNumber: 10,
		RaceName:   "青嵐賞",
		Course:     "ダ1600",
		Entries:    []scrape.Entry{{RegNum: "2022104567", HorseName: "TOKYOSTAR"}},
	})
	writeDoc(t, root, "2024", "12", "1", scrape.Doc{
		RaceID:     "202412010601",
		Date:       "2024/12/01",
		Kaisai:     "5回中山1日目",
		RaceNumber: 1,
		RaceName:   "2歳未勝利",
		Course:     "芝1600",
		Entries:    []scrape.Entry{{RegNum: "2022104567", HorseName: "TOKYOSTAR"}},
	})
}

func newStore(t *testing.T, root string) *index.Store {
	t.Helper()
	s, err := index.NewStore(root, t.TempDir(), 3)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuildAndQuery(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	s := newStore(t, root)

	if err := s.Build(); err != nil {
		t.Fatal(err)
	}

	files, ok, err := s.HorseFiles("2022104567")
	if err != nil || !ok {
		t.Fatalf("HorseFiles: ok=%v err=%v", ok, err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3: %v", len(files), files)
	}
	// Walk order: older year first.
	if !strings.Contains(files[0], filepath.Join("2024", "12")) {
		t.Errorf("first file should be 2024 doc, got %s", files[0])
	}

	// Scraped 7-digit ID resolves to the same files it appears in.
	files, ok, _ = s.HorseFiles("1104567")
	if !ok || len(files) != 1 {
		t.Fatalf("scraped id files = %v ok=%v", files, ok)
	}

	// Absent key is a valid empty answer.
	if _, ok, err := s.HorseFiles("9999999999"); ok || err != nil {
		t.Errorf("absent key: ok=%v err=%v", ok, err)
	}

	byTrack, ok, err := s.RacesForDate("20250621")
	if err != nil || !ok {
		t.Fatalf("RacesForDate: ok=%v err=%v", ok, err)
	}
	races := byTrack["東京"]
	if len(races) != 2 {
		t.Fatalf("got %d races, want 2", len(races))
	}
	if races[0].Number != 10 || races[1].Number != 11 {
		t.Errorf("races not ordered by number: %d %d", races[0].Number, races[1].Number)
	}
	r11 := races[1]
	if r11.Name != "日本ダービー" || r11.Distance != 2400 || r11.FieldSize != 2 {
		t.Errorf("race 11 = %+v", r11)
	}
	if r11.Pace == nil || r11.Pace.Bias != "前傾" {
		t.Errorf("pace = %+v", r11.Pace)
	}

	// Single-digit day directory normalizes to a padded date key.
	if _, ok, _ := s.RacesForDate("20241201"); !ok {
		t.Error("padded date key missing")
	}
}

func TestLoadFromArtifact(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	stateDir := t.TempDir()

	s1, err := index.NewStore(root, stateDir, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Build(); err != nil {
		t.Fatal(err)
	}
	built := s1.Stats()
	s1.Close()

	// A fresh store over the same state dir loads without walking; even
	// with the tree gone, the artifact answers.
	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	s2, err := index.NewStore(root, stateDir, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	files, ok, err := s2.HorseFiles("2022104567")
	if err != nil || !ok || len(files) != 3 {
		t.Fatalf("after reload: files=%v ok=%v err=%v", files, ok, err)
	}
	if got := s2.Stats(); got.Horses != built.Horses || got.Races != built.Races {
		t.Errorf("stats drifted across reload: %+v vs %+v", got, built)
	}
}

func TestVersionMismatchForcesRebuild(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	stateDir := t.TempDir()

	s1, err := index.NewStore(root, stateDir, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Build(); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	// Corrupt the schema version in place.
	metaPath := filepath.Join(stateDir, "reverse.meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatal(err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatal(err)
	}
	meta["version"] = 1
	data, _ = json.Marshal(meta)
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	s2, err := index.NewStore(root, stateDir, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	var rebuilt atomic.Bool
	s2.SetLogger(func(format string, args ...any) {
		if strings.Contains(format, "schema drift") {
			rebuilt.Store(true)
		}
	})

	if _, ok, err := s2.HorseFiles("2022104567"); !ok || err != nil {
		t.Fatalf("query after drift: ok=%v err=%v", ok, err)
	}
	if !rebuilt.Load() {
		t.Error("expected a logged rebuild on schema drift")
	}
	if got := s2.Stats(); got.Version != index.SchemaVersion {
		t.Errorf("Version = %d", got.Version)
	}
}

func TestRebuildIdempotent(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	s := newStore(t, root)

	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	first := s.Stats()
	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	second := s.Stats()
	if first.Horses != second.Horses || first.Races != second.Races || first.Files != second.Files {
		t.Errorf("rebuild not idempotent: %+v vs %+v", first, second)
	}
}

func TestClear(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	stateDir := t.TempDir()
	s, err := index.NewStore(root, stateDir, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if s.Stats().Loaded {
		t.Error("store still loaded after clear")
	}
	if _, err := os.Stat(filepath.Join(stateDir, "reverse.idx.zst")); !os.IsNotExist(err) {
		t.Error("payload artifact survived clear")
	}
	if _, err := os.Stat(filepath.Join(stateDir, "reverse.meta.json")); !os.IsNotExist(err) {
		t.Error("meta artifact survived clear")
	}

	// Clearing an already-cold store is fine.
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
}

func TestConcurrentBuildsCollapse(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	s := newStore(t, root)

	var builds atomic.Int64
	s.SetLogger(func(format string, args ...any) {
		if strings.Contains(format, "built index") {
			builds.Add(1)
		}
	})

	const callers = 32
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			if err := s.Build(); err != nil {
				t.Error(err)
			}
		}()
	}
	start.Done()
	done.Wait()

	if n := builds.Load(); n == 0 || n >= callers {
		t.Errorf("builds = %d, want collapsed (>0, <%d)", n, callers)
	}
	if got := s.Stats(); got.Horses == 0 {
		t.Errorf("stats after concurrent builds = %+v", got)
	}
}

func TestEmptyTreeBuildsEmptyIndex(t *testing.T) {
	s := newStore(t, filepath.Join(t.TempDir(), "missing"))
	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	if got := s.Stats(); !got.Loaded || got.Races != 0 {
		t.Errorf("stats = %+v", got)
	}
	if _, ok, err := s.HorseFiles("any"); ok || err != nil {
		t.Errorf("empty index query: ok=%v err=%v", ok, err)
	}
}
