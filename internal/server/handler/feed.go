package handler

import (
	"context"
	"net/http"

	"github.com/preyanshu/verdict/internal/service"
)

// FeedLister lists the oracle catalog with last observed prices.
type FeedLister interface {
	List(ctx context.Context) []service.FeedView
}

// FeedHandler serves the oracle feed catalog.
type FeedHandler struct {
	feeds FeedLister
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(feeds FeedLister) *FeedHandler {
	return &FeedHandler{feeds: feeds}
}

// ListFeeds returns every registered feed in catalog order.
// GET /api/feeds
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"feeds": h.feeds.List(r.Context())})
}
