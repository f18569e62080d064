package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keibalab/umadata/internal/index"
	"github.com/keibalab/umadata/internal/link"
	"github.com/keibalab/umadata/internal/lookup"
	"github.com/keibalab/umadata/internal/query"
)

// Handler serves the query surface over HTTP.
type Handler struct {
	svc *query.Service
	idx *index.Store
	log zerolog.Logger
}

// NewRouter builds the HTTP handler with the full middleware chain.
func NewRouter(log zerolog.Logger, svc *query.Service, idx *index.Store) http.Handler {
	h := &Handler{svc: svc, idx: idx, log: log}

	mux := http.NewServeMux()
	mux.Handle("/healthz", http.HandlerFunc(h.health))
	mux.Handle("/readyz", http.HandlerFunc(h.ready))
	mux.Handle("/v1/horse/", http.HandlerFunc(h.horse))
	mux.Handle("/v1/races/", http.HandlerFunc(h.races))
	mux.Handle("/v1/training/", http.HandlerFunc(h.training))
	mux.Handle("/v1/index/stats", http.HandlerFunc(h.indexStats))
	mux.Handle("/v1/index/rebuild", http.HandlerFunc(h.indexRebuild))

	// pprof endpoints
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return CORS(RequestID(AccessLog(log, mux)))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ready reports 503 until the index can answer queries.
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.idx.HorseFiles("readiness-probe"); err != nil {
		http.Error(w, "index not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// horse serves /v1/horse/{id} and /v1/horse/{id}/races. The id is a
// 10-digit registration number or a 7-digit scraped ID; ?name= helps
// when neither resolves on its own.
func (h *Handler) horse(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	if len(parts) < 3 {
		http.Error(w, "missing horse id", http.StatusBadRequest)
		return
	}
	id, err := h.svc.ResolveHorse(r.Context(), parts[2], r.URL.Query().Get("name"))
	if err != nil {
		h.writeError(w, r, err, "resolve horse")
		return
	}

	if len(parts) == 3 {
		writeJSON(w, id)
		return
	}
	if parts[3] != "races" {
		http.Error(w, "unknown horse resource", http.StatusNotFound)
		return
	}

	max := 0
	if m := r.URL.Query().Get("max"); m != "" {
		if v, err := strconv.Atoi(m); err == nil && v > 0 {
			max = v
		}
	}
	linked, rate, err := h.svc.PastRaces(r.Context(), id, max)
	if err != nil {
		h.writeError(w, r, err, "past races")
		return
	}
	writeJSON(w, HorseRacesResponse{
		Horse:     id,
		Races:     linked,
		Stats:     link.Aggregate(linked),
		MatchRate: rate,
	})
}

// races serves /v1/races/{date} and /v1/races/{date}/lookup.
func (h *Handler) races(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	if len(parts) < 3 {
		http.Error(w, "missing date", http.StatusBadRequest)
		return
	}
	date := parts[2]

	if len(parts) == 3 {
		byTrack, err := h.svc.RacesForDate(r.Context(), date)
		if err != nil {
			h.writeError(w, r, err, "races for date")
			return
		}
		writeJSON(w, byTrack)
		return
	}
	if parts[3] != "lookup" {
		http.Error(w, "unknown races resource", http.StatusNotFound)
		return
	}

	q := lookup.Query{
		Track:        r.URL.Query().Get("track"),
		RaceName:     r.URL.Query().Get("name"),
		DistanceHint: r.URL.Query().Get("distance"),
	}
	if n := r.URL.Query().Get("number"); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil {
			http.Error(w, "invalid number parameter", http.StatusBadRequest)
			return
		}
		q.RaceNumber = v
	}
	if q.Track == "" {
		http.Error(w, "missing track parameter", http.StatusBadRequest)
		return
	}
	race, err := h.svc.LookupRace(r.Context(), date, q)
	if err != nil {
		h.writeError(w, r, err, "lookup race")
		return
	}
	writeJSON(w, race)
}

// training serves /v1/training/{date}: the per-horse workout summary,
// generated on first request and cached on disk afterwards.
func (h *Handler) training(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	if len(parts) < 3 {
		http.Error(w, "missing date", http.StatusBadRequest)
		return
	}
	sum, err := h.svc.TrainingSummary(r.Context(), parts[2])
	if err != nil {
		h.writeError(w, r, err, "training summary")
		return
	}
	writeJSON(w, sum)
}

func (h *Handler) indexStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.idx.Stats())
}

func (h *Handler) indexRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.idx.Build(); err != nil {
		h.writeError(w, r, err, "rebuild index")
		return
	}
	writeJSON(w, h.idx.Stats())
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	if errors.Is(err, query.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Msg(op)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
	// Don't call http.Error after setting headers - it causes "superfluous WriteHeader"
}

// splitPath splits a URL path into parts
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
