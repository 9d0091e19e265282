package printshop

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/printshop/homepage"
)

// handlePublicHomepage serves the active sections as stored. The admin cache
// may hold an unsaved optimistic order, so it is not used here.
func (a *App) handlePublicHomepage(c echo.Context) error {
	sections, err := a.Service.ListActiveSections(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"sections": sections,
	})
}

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error    string                  `json:"error"`
	Message  string                  `json:"message"`
	Problems []homepage.FieldProblem `json:"problems,omitempty"`
	Resource string                  `json:"resource,omitempty"`
	ID       string                  `json:"id,omitempty"`
	Reason   string                  `json:"reason,omitempty"`
	Existing string                  `json:"existing,omitempty"`
}

// domainErrorResponse maps homepage errors onto HTTP statuses. ok is false
// for errors it does not know.
func domainErrorResponse(err error) (code int, body ErrorResponse, ok bool) {
	var (
		ve     *homepage.ValidationError
		nf     *homepage.NotFoundError
		ce     *homepage.ConflictError
		capErr *homepage.CapabilityError
		ge     *homepage.GatewayError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error: "validation_failed", Message: "Some fields are invalid", Problems: ve.Problems,
		}, true
	case errors.As(err, &nf):
		return http.StatusNotFound, ErrorResponse{
			Error: "not_found", Message: nf.Error(), Resource: nf.Resource, ID: nf.ID,
		}, true
	case errors.As(err, &ce):
		return http.StatusConflict, ErrorResponse{
			Error: "conflict", Message: ce.Error(), Resource: ce.Resource, Reason: ce.Reason, Existing: ce.ID,
		}, true
	case errors.As(err, &capErr):
		return http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: capErr.Error()}, true
	case errors.As(err, &ge):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error: "storage_unavailable", Message: "Storage is temporarily unavailable",
		}, true
	}
	return 0, ErrorResponse{}, false
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/admin/api/")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if code, body, ok := domainErrorResponse(err); ok {
		if code >= 500 {
			c.Logger().Errorf("server error: %v", err)
		}
		_ = c.JSON(code, body)
		return
	}
	he, ok := err.(*echo.HTTPError)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if isAPIPath(c.Request().URL.Path) {
		if code >= 500 {
			c.Logger().Errorf("server error: %v", err)
		}
		a.Echo.DefaultHTTPErrorHandler(err, c)
		return
	}
	if code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
