package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tesfaldet/haven/pkg/model"
)

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	rows, err := s.results.Read(r.Context(), s.ids)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	respondOK(w, reqID, rows)
}

func (s *Server) handleGetExperimentResults(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if !s.tracked(id) {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("experiment", id))
		return
	}

	rows, err := s.results.Read(r.Context(), []string{id})
	if err != nil || len(rows) == 0 {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: "result read failed"})
		return
	}
	respondOK(w, reqID, rows[0])
}
