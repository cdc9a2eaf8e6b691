package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/lands"
)

// APIHandler serves the job and land management endpoints plus the system
// surface (health, version).
type APIHandler struct {
	jobs   interfaces.JobService
	lands  *lands.Service
	logger arbor.ILogger
}

// NewAPIHandler creates the handler.
func NewAPIHandler(jobs interfaces.JobService, landService *lands.Service, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		jobs:   jobs,
		lands:  landService,
		logger: logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": common.GetVersion(),
	})
}

// VersionHandler reports the build version.
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": common.GetFullVersion()})
}

// Jobs collection: POST creates, GET lists.
func (h *APIHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createJob(w, r)
	case http.MethodGet:
		h.listJobs(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *APIHandler) createJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind   string                 `json:"kind"`
		LandID string                 `json:"land_id"`
		Params map[string]interface{} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := models.ParseJobKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), kind, req.LandID, req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *APIHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	landID := r.URL.Query().Get("land_id")
	status := models.JobStatus(r.URL.Query().Get("status"))

	jobs, err := h.jobs.ListJobs(r.Context(), landID, status, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// JobRoutes serves /api/jobs/{id} and /api/jobs/{id}/cancel.
func (h *APIHandler) JobRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method == http.MethodPost && strings.HasSuffix(rest, "/cancel") {
		jobID := strings.TrimSuffix(rest, "/cancel")
		if err := h.jobs.CancelJob(r.Context(), jobID); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancel_requested"})
		return
	}

	if r.Method == http.MethodGet {
		job, err := h.jobs.GetJob(r.Context(), rest)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, job)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// Lands collection: POST creates, GET lists.
func (h *APIHandler) LandsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createLand(w, r)
	case http.MethodGet:
		result, err := h.lands.List(r.Context(), r.URL.Query().Get("owner"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *APIHandler) createLand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Owner       string   `json:"owner"`
		Languages   []string `json:"languages"`
		SeedURLs    []string `json:"seed_urls"`
		Keywords    []string `json:"keywords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	land, err := h.lands.Create(r.Context(), req.Name, req.Description, req.Owner, req.Languages)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Keywords) > 0 {
		if land, err = h.lands.AddKeywords(r.Context(), land.ID, req.Keywords); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if len(req.SeedURLs) > 0 {
		if _, err = h.lands.AddSeeds(r.Context(), land.ID, req.SeedURLs); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusCreated, land)
}

// LandRoutes serves /api/lands/{id} and its sub-resources.
func (h *APIHandler) LandRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/lands/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	landID := parts[0]
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case r.Method == http.MethodGet && sub == "":
		land, err := h.lands.Get(r.Context(), landID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, land)

	case r.Method == http.MethodGet && sub == "stats":
		stats, err := h.lands.Stats(r.Context(), landID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, stats)

	case r.Method == http.MethodDelete && sub == "":
		if err := h.lands.Delete(r.Context(), landID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	case r.Method == http.MethodPost && sub == "seeds":
		var req struct {
			URLs []string `json:"urls"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		added, err := h.lands.AddSeeds(r.Context(), landID, req.URLs)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"added": added})

	case r.Method == http.MethodPost && sub == "keywords":
		var req struct {
			Terms []string `json:"terms"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		land, err := h.lands.AddKeywords(r.Context(), landID, req.Terms)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, land)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// NotFoundHandler is the API catch-all.
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}
