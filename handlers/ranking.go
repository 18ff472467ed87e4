package handlers

import (
	"net/http"

	"resolvarr/models"
	"resolvarr/services/failover"
	"resolvarr/services/ranking"
)

// RankingHandler exposes the pure ranking and failover planning functions.
type RankingHandler struct {
	Defaults ranking.Preferences
}

func NewRankingHandler(defaults ranking.Preferences) *RankingHandler {
	return &RankingHandler{Defaults: defaults}
}

// Rank orders candidates best first. Empty quality fields are filled from
// the release title before scoring.
func (h *RankingHandler) Rank(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Candidates  []models.TorrentResult `json:"candidates"`
		Preferences *ranking.Preferences   `json:"preferences,omitempty"`
		Parallel    bool                   `json:"parallel,omitempty"`
	}
	if err := decodeBody(r, &request); err != nil {
		badRequest(w, err.Error())
		return
	}

	prefs := h.Defaults
	if request.Preferences != nil {
		prefs = *request.Preferences
	}
	candidates := ranking.Enrich(request.Candidates)

	var ranked []models.TorrentResult
	if request.Parallel {
		ranked = ranking.RankParallel(candidates, prefs)
	} else {
		ranked = ranking.Rank(candidates, prefs)
	}
	writeJSON(w, http.StatusOK, ranked)
}

// Failover builds the ordered stream queue for a primary and its alternates.
func (h *RankingHandler) Failover(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Primary    models.StreamInfo   `json:"primary"`
		Alternates []models.StreamInfo `json:"alternates"`
	}
	if err := decodeBody(r, &request); err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, failover.BuildQueue(request.Primary, request.Alternates))
}

// NextStream answers 204 when the queue holds nothing after the given stream.
func (h *RankingHandler) NextStream(w http.ResponseWriter, r *http.Request) {
	var request struct {
		After models.StreamInfo   `json:"after"`
		Queue []models.StreamInfo `json:"queue"`
	}
	if err := decodeBody(r, &request); err != nil {
		badRequest(w, err.Error())
		return
	}
	next, ok := failover.NextStream(request.After, request.Queue)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, next)
}
