package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lorebase/lore/internal/knowledge"
)

// resourcesHandler serves the knowledge-base administration endpoints.
//
//   - GET    /api/resources      - list stored resources
//   - DELETE /api/resources/{id} - delete a resource and its embeddings
type resourcesHandler struct {
	knowledge *knowledge.Service
	logger    *slog.Logger
}

type resourceBody struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type resourceListBody struct {
	Resources []resourceBody `json:"resources"`
}

func (h *resourcesHandler) list(w http.ResponseWriter, r *http.Request) {
	resources, err := h.knowledge.ListResources(r.Context())
	if err != nil {
		h.logger.Error("list resources", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list resources", h.logger)
		return
	}

	body := resourceListBody{Resources: make([]resourceBody, len(resources))}
	for i, res := range resources {
		body.Resources[i] = resourceBody{
			ID:        res.ID.String(),
			Content:   res.Content,
			CreatedAt: res.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, body, h.logger)
}

func (h *resourcesHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "resource id must be a UUID", h.logger)
		return
	}

	if err := h.knowledge.DeleteResource(r.Context(), id); err != nil {
		if errors.Is(err, knowledge.ErrResourceNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "resource not found", h.logger)
			return
		}
		h.logger.Error("delete resource", "resource_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete resource", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
