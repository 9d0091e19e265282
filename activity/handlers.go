package activity

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Listing limits for the recent-activity endpoint.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handler serves the audit trail to admins.
type Handler struct {
	store *Store
}

// NewHandler creates a new activity handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// ListResponse is the body returned by List.
type ListResponse struct {
	Entries []Entry `json:"entries"`
	Limit   int     `json:"limit"`
}

// List returns recent entries, newest first. Query parameters: resource
// (homepage_section or homepage_item) and limit.
func (h *Handler) List(c echo.Context) error {
	limit := parseLimit(c.QueryParam("limit"))
	entries, err := h.store.Recent(c.Request().Context(), c.QueryParam("resource"), limit)
	if err != nil {
		c.Logger().Errorf("Failed to list activity: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, ListResponse{Entries: entries, Limit: limit})
}

// RegisterRoutes registers the activity endpoints on an admin group that
// already carries authentication.
func (h *Handler) RegisterRoutes(admin *echo.Group) {
	admin.GET("/api/activity", h.List)
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
