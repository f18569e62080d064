package httpapi

import (
	"github.com/keibalab/umadata/internal/link"
	"github.com/keibalab/umadata/internal/query"
)

// HorseRacesResponse is the payload for /v1/horse/{id}/races: the
// resolved identity, the linked history and the supplementary match
// rate so clients can surface degraded linking.
type HorseRacesResponse struct {
	Horse     query.HorseIdentity `json:"horse"`
	Races     []link.Linked       `json:"races"`
	Stats     link.Stats          `json:"stats"`
	MatchRate link.Rate           `json:"match_rate"`
}
