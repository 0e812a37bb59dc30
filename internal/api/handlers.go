// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/contentrelease/internal/errortracker"
	"github.com/ManuGH/contentrelease/internal/log"
	"github.com/ManuGH/contentrelease/internal/model"
)

// ReleaseView is the JSON shape of GET /api/v1/releases/{releaseID}.
type ReleaseView struct {
	ReleaseID           model.ReleaseID `json:"releaseId"`
	Status              string          `json:"status"`
	EnumeratedNodes     int64           `json:"enumeratedNodes"`
	Documents           int64           `json:"documents"`
	QueuedJobs          int64           `json:"queuedJobs"`
	RenderingsInFlight  int64           `json:"renderingsInProgress"`
	RemainingJobs       int64           `json:"remainingJobs"`
	TotalJobs           int64           `json:"totalJobs"`
	RenderingsPerSecond []float64       `json:"renderingsPerSecond"`
	Errors              int64           `json:"errors"`
}

type errorsView struct {
	ReleaseID model.ReleaseID               `json:"releaseId"`
	Errors    []errortracker.RenderingError `json:"errors"`
}

type documentsView struct {
	ReleaseID model.ReleaseID `json:"releaseId"`
	URLs      []string        `json:"urls"`
}

const statusRunning = "running"

// statusName renders the unset status explicitly.
func statusName(s model.CompletionStatus) string {
	if s == model.CompletionUnset {
		return statusRunning
	}
	return string(s)
}

// releaseID parses the path parameter and writes 400 when it is invalid.
func releaseID(w http.ResponseWriter, r *http.Request) (model.ReleaseID, bool) {
	id, err := model.ParseReleaseID(chi.URLParam(r, "releaseID"))
	if err != nil {
		writeBadRequest(w, err)
		return "", false
	}
	return id, true
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := releaseID(w, r)
	if !ok {
		return
	}
	r = r.WithContext(log.ContextWithReleaseID(r.Context(), string(id)))

	view, err := s.deps.Describe(r.Context(), id)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if view.Status == statusRunning && view.EnumeratedNodes == 0 && view.Documents == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "release not found"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := releaseID(w, r)
	if !ok {
		return
	}
	list, err := s.deps.Errors.List(r.Context(), id)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if list == nil {
		list = []errortracker.RenderingError{}
	}
	writeJSON(w, http.StatusOK, errorsView{ReleaseID: id, Errors: list})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := releaseID(w, r)
	if !ok {
		return
	}
	urls, err := s.deps.Releases.URLs(r.Context(), id)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, documentsView{ReleaseID: id, URLs: urls})
}
