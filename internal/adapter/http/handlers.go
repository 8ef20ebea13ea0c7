package http

import (
	"net/http"
	"time"

	"github.com/backline-io/backline/internal/domain/audit"
	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/backline-io/backline/internal/domain/event"
	"github.com/backline-io/backline/internal/domain/restock"
	"github.com/backline-io/backline/internal/domain/review"
	"github.com/backline-io/backline/internal/service"
)

// Handlers bundles all HTTP handlers with their service dependencies.
type Handlers struct {
	Pipeline *service.PipelineService
	Reviews  *service.ReviewService
}

// IngestReturn accepts a return event and runs it through the pipeline.
func (h *Handlers) IngestReturn(w http.ResponseWriter, r *http.Request) {
	ev, ok := readJSON[event.ReturnEvent](w, r)
	if !ok {
		return
	}

	res, err := h.Pipeline.ProcessReturn(r.Context(), &ev)
	if err != nil {
		writeDomainError(w, err, "return event rejected")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// IngestQuery accepts a customer query event and runs it through the pipeline.
func (h *Handlers) IngestQuery(w http.ResponseWriter, r *http.Request) {
	ev, ok := readJSON[event.QueryEvent](w, r)
	if !ok {
		return
	}

	res, err := h.Pipeline.ProcessQuery(r.Context(), &ev)
	if err != nil {
		writeDomainError(w, err, "query event rejected")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListReviews returns queue items, optionally filtered with ?status=.
func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	status := review.Status(r.URL.Query().Get("status"))
	if status != "" && status != review.StatusPending && !status.Terminal() {
		writeError(w, http.StatusBadRequest, "unknown status "+string(status))
		return
	}

	items, err := h.Reviews.List(r.Context(), status)
	if err != nil {
		writeDomainError(w, err, "failed to list reviews")
		return
	}
	if items == nil {
		items = []review.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetReview returns a single review item.
func (h *Handlers) GetReview(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	item, err := h.Reviews.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "review item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type resolveResponse struct {
	Item    *review.Item     `json:"item"`
	Restock *restock.Request `json:"restock,omitempty"`
}

// ResolveReview applies a reviewer verdict to a pending item.
func (h *Handlers) ResolveReview(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	req, ok := readJSON[review.ResolveRequest](w, r)
	if !ok {
		return
	}

	item, produced, err := h.Reviews.Resolve(r.Context(), id, &req)
	if err != nil {
		writeDomainError(w, err, "review item not found")
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Item: item, Restock: produced})
}

// ReviewStats returns aggregate queue statistics.
func (h *Handlers) ReviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Reviews.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListAudit returns audit records in write order, filtered by query params.
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	filter, ok := auditFilterFromQuery(w, r)
	if !ok {
		return
	}

	records, err := h.Pipeline.Audit(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err, "failed to list audit records")
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// ReplayAudit folds the audit log into the final state of every decision.
func (h *Handlers) ReplayAudit(w http.ResponseWriter, r *http.Request) {
	filter, ok := auditFilterFromQuery(w, r)
	if !ok {
		return
	}

	records, err := h.Pipeline.Audit(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err, "failed to list audit records")
		return
	}
	writeJSON(w, http.StatusOK, audit.Replay(records))
}

func auditFilterFromQuery(w http.ResponseWriter, r *http.Request) (audit.Filter, bool) {
	q := r.URL.Query()
	filter := audit.Filter{
		SubjectID:  q.Get("subject_id"),
		DecisionID: q.Get("decision_id"),
		Kind:       decision.Kind(q.Get("kind")),
		Action:     audit.Action(q.Get("action")),
	}
	for name, dst := range map[string]**time.Time{"after": &filter.After, "before": &filter.Before} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, name+" must be RFC 3339")
			return audit.Filter{}, false
		}
		*dst = &at
	}
	return filter, true
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
