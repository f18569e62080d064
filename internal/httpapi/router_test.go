package httpapi_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/keibalab/umadata/internal/httpapi"
	"github.com/keibalab/umadata/internal/index"
	"github.com/keibalab/umadata/internal/query"
	"github.com/keibalab/umadata/internal/scrape"
	"github.com/keibalab/umadata/internal/target"
	"github.com/keibalab/umadata/internal/training"
)

func seedRaces(t *testing.T, racesRoot string) {
	t.Helper()
	doc := scrape.Doc{
		RaceID:     "202506210511",
		Date:       "2025/06/21",
		Kaisai:     "3回東京7日目",
		RaceNumber: 11,
		RaceName:   "日本ダービー(G1)",
		Course:     "芝2400",
		Entries: []scrape.Entry{
			{HorseID: "1104567", HorseName: "TOKYOSTAR", Comment: "好位から抜け出す"},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(racesRoot, "2025", "06", "21")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, fmt.Sprintf("race_%d.json", doc.RaceNumber))
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	racesRoot := t.TempDir()
	seedRaces(t, racesRoot)

	idx, err := index.NewStore(racesRoot, t.TempDir(), 3)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	log := zerolog.Nop()
	reader := target.NewReader(t.TempDir(), log)
	gen := training.NewGenerator(reader, racesRoot, nil, log)
	svc := query.New(idx, reader, gen, log)

	srv := httptest.NewServer(httpapi.NewRouter(log, svc, idx))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func TestHealthAndReady(t *testing.T) {
	srv := newServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, body := get(t, srv, path)
		if resp.StatusCode != http.StatusOK || string(body) != "ok" {
			t.Errorf("%s: status %d body %q", path, resp.StatusCode, body)
		}
	}
}

func TestRacesForDateEndpoint(t *testing.T) {
	srv := newServer(t)
	resp, body := get(t, srv, "/v1/races/20250621")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var byTrack map[string][]index.RaceSummary
	if err := json.Unmarshal(body, &byTrack); err != nil {
		t.Fatal(err)
	}
	if len(byTrack["東京"]) != 1 || byTrack["東京"][0].Number != 11 {
		t.Errorf("schedule = %+v", byTrack)
	}

	if resp, _ := get(t, srv, "/v1/races/19990101"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown date status = %d", resp.StatusCode)
	}
}

func TestLookupEndpoint(t *testing.T) {
	srv := newServer(t)
	resp, body := get(t, srv, "/v1/races/20250621/lookup?track=東京&name=日本ダービー")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var race index.RaceSummary
	if err := json.Unmarshal(body, &race); err != nil {
		t.Fatal(err)
	}
	if race.Number != 11 {
		t.Errorf("resolved race %d", race.Number)
	}

	if resp, _ := get(t, srv, "/v1/races/20250621/lookup?name=x"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing track status = %d", resp.StatusCode)
	}
	if resp, _ := get(t, srv, "/v1/races/20250621/lookup?track=東京&name=存在しない記念"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("miss status = %d", resp.StatusCode)
	}
}

func TestHorseEndpoint(t *testing.T) {
	srv := newServer(t)
	resp, body := get(t, srv, "/v1/horse/1104567")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var id query.HorseIdentity
	if err := json.Unmarshal(body, &id); err != nil {
		t.Fatal(err)
	}
	if id.Name != "TOKYOSTAR" || id.ScrapedID != "1104567" {
		t.Errorf("identity = %+v", id)
	}

	resp, body = get(t, srv, "/v1/horse/1104567/races")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("races status %d: %s", resp.StatusCode, body)
	}
	var hr httpapi.HorseRacesResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		t.Fatal(err)
	}
	if len(hr.Races) != 1 || hr.Races[0].RaceName != "日本ダービー(G1)" {
		t.Errorf("races = %+v", hr.Races)
	}

	if resp, _ := get(t, srv, "/v1/horse/0000000000"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown horse status = %d", resp.StatusCode)
	}
}

func TestIndexStatsAndRebuild(t *testing.T) {
	srv := newServer(t)
	resp, body := get(t, srv, "/v1/index/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}

	if resp, _ := get(t, srv, "/v1/index/rebuild"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET rebuild status = %d", resp.StatusCode)
	}
	post, err := srv.Client().Post(srv.URL+"/v1/index/rebuild", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer post.Body.Close()
	if post.StatusCode != http.StatusOK {
		t.Errorf("POST rebuild status = %d", post.StatusCode)
	}
	var stats index.Stats
	if err := json.NewDecoder(post.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Races != 1 {
		t.Errorf("stats after rebuild = %+v", stats)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newServer(t)
	resp, _ := get(t, srv, "/healthz")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "abc12345")
	resp2, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if got := resp2.Header.Get("X-Request-ID"); got != "abc12345" {
		t.Errorf("X-Request-ID = %q, want echoed", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v1/races/20250621", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}
