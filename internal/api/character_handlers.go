package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/charrank/internal/catalog"
	"github.com/onnwee/charrank/internal/image"
	"github.com/onnwee/charrank/internal/middleware"
	"github.com/onnwee/charrank/internal/notify"
)

// CharacterInfo is one entry of the character list.
type CharacterInfo struct {
	Name  string `json:"name"`
	IsNew bool   `json:"is_new"`
}

// CharacterListResponse is the response body for GET /characters.
type CharacterListResponse struct {
	Characters []CharacterInfo `json:"characters"`
	Count      int             `json:"count"`
}

// ReloadResponse is the response body for POST /characters/reload.
type ReloadResponse struct {
	Count int      `json:"count"`
	New   []string `json:"new,omitempty"`
}

// CharacterHandlers holds dependencies for character catalog HTTP handlers.
type CharacterHandlers struct {
	catalog     *catalog.Service
	renderer    *image.Renderer
	tracker     *notify.Tracker
	broadcaster *notify.Broadcaster
}

// NewCharacterHandlers creates a new CharacterHandlers instance.
func NewCharacterHandlers(cat *catalog.Service, renderer *image.Renderer, tracker *notify.Tracker, broadcaster *notify.Broadcaster) *CharacterHandlers {
	return &CharacterHandlers{
		catalog:     cat,
		renderer:    renderer,
		tracker:     tracker,
		broadcaster: broadcaster,
	}
}

// List handles GET /characters. Characters the tracker knows as fresh are
// flagged so the frontend can badge them.
func (h *CharacterHandlers) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	fresh := make(map[string]struct{})
	for _, n := range h.tracker.All() {
		fresh[n] = struct{}{}
	}

	names := h.catalog.Names()
	infos := make([]CharacterInfo, len(names))
	for i, n := range names {
		_, isNew := fresh[n]
		infos[i] = CharacterInfo{Name: n, IsNew: isNew}
	}

	writeJSON(w, http.StatusOK, CharacterListResponse{Characters: infos, Count: len(infos)})
}

// Image handles GET /characters/{name}/image, serving the rendered portrait.
func (h *CharacterHandlers) Image(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/characters/"), "/")
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] != "image" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Character name is required")
		return
	}
	name := pathParts[0]

	idx, ok := h.catalog.IndexByName(name)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeCharacterNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeCharacterNotFound, "Character not found")
		return
	}
	char, _ := h.catalog.ByIndex(idx)

	data, mime, err := h.renderer.RenderFile(char.ImagePath)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to render portrait",
			"error", err, "character", name)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Portrait unavailable")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(r.Context(), "failed to write portrait", "error", err)
	}
}

// Reload handles POST /characters/reload. The catalog re-scans the portrait
// directory; any characters it did not know before are tracked as fresh and
// announced on the live feed.
func (h *CharacterHandlers) Reload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	before := make(map[string]struct{})
	for _, n := range h.catalog.Names() {
		before[n] = struct{}{}
	}

	count := h.catalog.Reload()

	var added []string
	for _, n := range h.catalog.Names() {
		if _, ok := before[n]; !ok {
			added = append(added, n)
		}
	}

	if len(added) > 0 {
		h.tracker.Add(added)
		h.broadcaster.Broadcast(notify.Event{
			Type:       notify.EventNewCharacters,
			Characters: added,
		})
		slog.InfoContext(r.Context(), "new characters discovered",
			"count", len(added))
	}

	writeJSON(w, http.StatusOK, ReloadResponse{Count: count, New: added})
}
