package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tesfaldet/haven/internal/status"
	"github.com/tesfaldet/haven/pkg/model"
)

// snapshotResponse pairs the filtered rows with their per-state counts.
type snapshotResponse struct {
	Rows    []status.Row   `json:"rows"`
	Summary status.Summary `json:"summary"`
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	filter, apiErr := parseFilter(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	rows, err := s.aggregator.Snapshot(r.Context(), s.ids, filter)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	respondOK(w, reqID, snapshotResponse{Rows: rows, Summary: status.Summarize(rows)})
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if !s.tracked(id) {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("experiment", id))
		return
	}

	rows, err := s.aggregator.Snapshot(r.Context(), []string{id}, status.Filter{})
	if err != nil || len(rows) == 0 {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: "snapshot failed"})
		return
	}
	respondOK(w, reqID, rows[0])
}

func (s *Server) tracked(id string) bool {
	for _, known := range s.ids {
		if known == id {
			return true
		}
	}
	return false
}

// parseFilter builds a snapshot filter from query parameters: "state" is a
// comma-separated state list, "where" a JSON object matched as a spec subset.
func parseFilter(r *http.Request) (status.Filter, *model.APIError) {
	var filter status.Filter

	if raw := r.URL.Query().Get("state"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := model.ParseState(part)
			if err != nil {
				return status.Filter{}, model.NewBadRequestError("state filter: %v", err)
			}
			filter.States = append(filter.States, st)
		}
	}

	if raw := r.URL.Query().Get("where"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter.SpecSubset); err != nil {
			return status.Filter{}, model.NewBadRequestError("where filter: not a JSON object: %v", err)
		}
	}

	return filter, nil
}
