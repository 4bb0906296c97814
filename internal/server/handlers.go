package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nbserver/internal/database"
	"nbserver/internal/enrich"
	"nbserver/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": "error", "message": message})
}

// itemID parses the route parameter. A non-integer id is treated the same
// as an unknown one.
func itemID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	return id, err == nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	s.listItems(w, r, database.FilterAll)
}

func (s *Server) handleListUnqualified(w http.ResponseWriter, r *http.Request) {
	s.listItems(w, r, database.FilterUnqualified)
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request, filter database.ListFilter) {
	items, err := s.store.ListItems(r.Context(), filter)
	if err != nil {
		s.log.Error("list items", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list items")
		return
	}
	s.pipeline.Annotate(items)

	if r.URL.Query().Get("dearrow") == "true" && s.dearrow != nil {
		s.applyDearrowTitles(r, items)
	}

	if items == nil {
		items = []model.Item{}
	}
	writeData(w, items)
}

// applyDearrowTitles swaps in DeArrow titles for the list response. Lookup
// failures, including an aggregate timeout, degrade to whatever branding
// was gathered; the list itself never fails because of the upstream.
func (s *Server) applyDearrowTitles(r *http.Request, items []model.Item) {
	var ids []string
	seen := make(map[string]bool)
	for i := range items {
		id := items[i].YouTubeID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}
	brandings, err := s.dearrow.FetchBatch(r.Context(), ids)
	if err != nil {
		s.log.Warn("dearrow enrichment degraded", "error", err)
	}
	s.pipeline.Apply(items, brandings)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	item, err := s.store.GetItem(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		s.log.Error("get item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get item")
		return
	}
	origin, videoID, _ := enrich.Derive(item.URL)
	item.Origin = origin
	item.YouTubeID = videoID
	writeData(w, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Item not found or already deleted")
		return
	}
	err := s.store.MarkDeleted(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Item not found or already deleted")
		return
	}
	if err != nil {
		s.log.Error("delete item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Item deleted successfully",
	})
}

func (s *Server) handleToggleUnread(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Item not found or failed to update")
		return
	}
	state, err := s.store.ToggleUnread(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Item not found or failed to update")
		return
	}
	if err != nil {
		s.log.Error("toggle unread", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Unread status updated successfully",
		"data":    state,
	})
}

func (s *Server) handleStar(w http.ResponseWriter, r *http.Request) {
	s.setStarred(w, r, true)
}

func (s *Server) handleUnstar(w http.ResponseWriter, r *http.Request) {
	s.setStarred(w, r, false)
}

func (s *Server) setStarred(w http.ResponseWriter, r *http.Request, starred bool) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	state, err := s.store.SetStarred(r.Context(), id, starred)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		s.log.Error("set starred", "id", id, "starred", starred, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update item")
		return
	}
	writeData(w, state)
}

func (s *Server) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemIDs *[]int64 `json:"item_ids"`
	}
	// A non-integer anywhere in the array fails the decode, so a malformed
	// request never reaches the store.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "All item IDs must be integers")
		return
	}
	if req.ItemIDs == nil {
		writeError(w, http.StatusBadRequest, "Request must include item_ids array")
		return
	}
	if len(*req.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "item_ids must not be empty")
		return
	}
	err := s.store.MarkDeletedBatch(r.Context(), *req.ItemIDs)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to delete items")
		return
	}
	if err != nil {
		s.log.Error("batch delete", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete items")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Successfully deleted %d items", len(*req.ItemIDs)),
	})
}

func (s *Server) handleDearrowBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoIDs *[]string `json:"video_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "All video IDs must be strings")
		return
	}
	if req.VideoIDs == nil {
		writeError(w, http.StatusBadRequest, "Request must include video_ids array")
		return
	}
	if s.dearrow == nil {
		writeError(w, http.StatusServiceUnavailable, "DeArrow lookups are disabled")
		return
	}

	ids := *req.VideoIDs
	brandings, err := s.dearrow.FetchBatch(r.Context(), ids)
	if errors.Is(err, enrich.ErrBatchTimeout) {
		writeJSON(w, http.StatusRequestTimeout, map[string]any{
			"status":     "error",
			"message":    "Batch processing timed out",
			"processed":  len(ids),
			"successful": len(brandings),
		})
		return
	}
	if err != nil {
		s.log.Error("dearrow batch", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch video metadata")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"data":       brandings,
		"processed":  len(ids),
		"successful": len(brandings),
	})
}
