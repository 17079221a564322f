package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/3leaps/hy3d/internal/errors"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
)

// JobReader is the read side of the job registry.
type JobReader interface {
	List() ([]jobregistry.JobRecord, error)
	Get(jobID string) (*jobregistry.JobRecord, error)
	Events(jobID string) ([]jobregistry.Event, error)
}

// JobListResponse is the /jobs payload.
type JobListResponse struct {
	Jobs  []jobregistry.JobRecord `json:"jobs"`
	Count int                     `json:"count"`
}

// JobResponse is the /jobs/{id} payload.
type JobResponse struct {
	Job    *jobregistry.JobRecord `json:"job"`
	Events []jobregistry.Event    `json:"events"`
}

// Jobs serves the job registry read-only.
type Jobs struct {
	Store JobReader
}

// List handles GET /jobs. Optional query filters: state, kind, limit.
func (h *Jobs) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var kind job.Kind
	if s := strings.TrimSpace(q.Get("kind")); s != "" {
		k, err := job.ParseKind(s)
		if err != nil {
			respondWithError(w, r, apperrors.BadRequest(err.Error()))
			return
		}
		kind = k
	}
	limit := 0
	if s := strings.TrimSpace(q.Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondWithError(w, r, apperrors.BadRequest("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	state := jobregistry.JobState(strings.TrimSpace(q.Get("state")))

	all, err := h.Store.List()
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	out := make([]jobregistry.JobRecord, 0, len(all))
	for _, rec := range all {
		if state != "" && rec.State != state {
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	apperrors.WriteJSON(w, http.StatusOK, JobListResponse{Jobs: out, Count: len(out)})
}

// Get handles GET /jobs/{id}.
func (h *Jobs) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.Store.Get(id)
	if err != nil {
		if errors.Is(err, jobregistry.ErrNotFound) {
			respondWithError(w, r, apperrors.NotFound("job "+id+" not found"))
			return
		}
		respondWithError(w, r, apperrors.BadRequest(err.Error()))
		return
	}
	events, err := h.Store.Events(id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if events == nil {
		events = []jobregistry.Event{}
	}
	apperrors.WriteJSON(w, http.StatusOK, JobResponse{Job: rec, Events: events})
}
