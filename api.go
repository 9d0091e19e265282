package printshop

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/printshop/homepage"
	"github.com/eringen/printshop/ordering"
	"github.com/eringen/printshop/sectioncache"
)

// SectionsResponse is the cache view as sent to admin clients.
type SectionsResponse struct {
	Sections   []homepage.Section `json:"sections"`
	IsLoading  bool               `json:"isLoading"`
	IsFetching bool               `json:"isFetching"`
	Error      string             `json:"error,omitempty"`
}

func sectionsResponse(v sectioncache.View) SectionsResponse {
	resp := SectionsResponse{
		Sections:   v.Sections,
		IsLoading:  v.IsLoading,
		IsFetching: v.IsFetching,
	}
	if v.Err != nil {
		resp.Error = v.Err.Error()
	}
	return resp
}

type reorderRequest struct {
	Moves []ordering.Move[string] `json:"moves"`
}

type moveRequest struct {
	TargetPosition *int `json:"targetPosition"`
}

func (r moveRequest) target() (int, error) {
	if r.TargetPosition == nil {
		return 0, homepage.NewValidationError(homepage.FieldProblem{
			Field: "targetPosition", Message: "This field is required",
		})
	}
	return *r.TargetPosition, nil
}

func (a *App) handleListSections(c echo.Context) error {
	ctx := c.Request().Context()
	if c.QueryParam("refresh") == "1" {
		a.Cache.Revalidate(ctx)
	} else {
		a.Cache.Fetch(ctx, false)
	}
	return c.JSON(http.StatusOK, sectionsResponse(a.Cache.View()))
}

func (a *App) handleGetSection(c echo.Context) error {
	sec, err := a.Service.GetSection(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sec)
}

func (a *App) handleCreateSection(c echo.Context) error {
	var in homepage.SectionInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	sec, err := a.Service.CreateSection(ctx, in)
	if err != nil {
		return err
	}
	a.Cache.Mutate(func(prev []homepage.Section) []homepage.Section {
		if prev == nil {
			return nil
		}
		return append(prev, sec)
	})
	a.announce(ctx)
	return c.JSON(http.StatusCreated, sec)
}

func (a *App) handleUpdateSection(c echo.Context) error {
	var in homepage.SectionInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	sec, err := a.Service.UpdateSection(ctx, c.Param("id"), in)
	if err != nil {
		return err
	}
	a.Cache.Mutate(func(prev []homepage.Section) []homepage.Section {
		for i := range prev {
			if prev[i].ID == sec.ID {
				prev[i] = sec
			}
		}
		return prev
	})
	a.announce(ctx)
	return c.JSON(http.StatusOK, sec)
}

func (a *App) handleDeleteSection(c echo.Context) error {
	ctx := c.Request().Context()
	if err := a.Service.DeleteSection(ctx, c.Param("id")); err != nil {
		return err
	}
	a.announce(ctx)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleReorderSections(c echo.Context) error {
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	return a.reorderSections(c, req.Moves)
}

func (a *App) handleMoveSection(c echo.Context) error {
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	target, err := req.target()
	if err != nil {
		return err
	}
	return a.reorderSections(c, []ordering.Move[string]{{ID: c.Param("id"), TargetPosition: target}})
}

// reorderSections shows the new order right away. When the write fails the
// optimistic order stays and the error is recorded for the banner.
func (a *App) reorderSections(c echo.Context, moves []ordering.Move[string]) error {
	ctx := c.Request().Context()
	a.Cache.Mutate(func(prev []homepage.Section) []homepage.Section {
		return applySectionMoves(prev, moves)
	})
	sections, err := a.Service.ReorderSections(ctx, moves)
	if err != nil {
		a.Cache.ReportError(err)
		return err
	}
	a.announce(ctx)
	return c.JSON(http.StatusOK, sections)
}

func (a *App) handleAddItem(c echo.Context) error {
	var in homepage.ItemInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	it, err := a.Service.AddItem(ctx, c.Param("id"), in)
	if err != nil {
		return err
	}
	a.announce(ctx)
	return c.JSON(http.StatusCreated, it)
}

func (a *App) handleUpdateItem(c echo.Context) error {
	var in homepage.ItemUpdate
	if err := c.Bind(&in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	it, err := a.Service.UpdateItem(ctx, c.Param("id"), c.Param("itemId"), in)
	if err != nil {
		return err
	}
	a.announce(ctx)
	return c.JSON(http.StatusOK, it)
}

func (a *App) handleRemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	if err := a.Service.RemoveItem(ctx, c.Param("id"), c.Param("itemId")); err != nil {
		return err
	}
	a.announce(ctx)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleReorderItems(c echo.Context) error {
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	return a.reorderItems(c, req.Moves)
}

func (a *App) handleMoveItem(c echo.Context) error {
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	target, err := req.target()
	if err != nil {
		return err
	}
	return a.reorderItems(c, []ordering.Move[string]{{ID: c.Param("itemId"), TargetPosition: target}})
}

func (a *App) reorderItems(c echo.Context, moves []ordering.Move[string]) error {
	ctx := c.Request().Context()
	sectionID := c.Param("id")
	a.Cache.Mutate(func(prev []homepage.Section) []homepage.Section {
		for i := range prev {
			if prev[i].ID == sectionID {
				prev[i].Items = applyItemMoves(prev[i].Items, moves)
			}
		}
		return prev
	})
	items, err := a.Service.ReorderItems(ctx, sectionID, moves)
	if err != nil {
		a.Cache.ReportError(err)
		return err
	}
	a.announce(ctx)
	return c.JSON(http.StatusOK, items)
}

func (a *App) handleListProducts(c echo.Context) error {
	products, err := a.Store.ListProducts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}

func (a *App) handleDismissError(c echo.Context) error {
	a.Cache.DismissError()
	return c.NoContent(http.StatusNoContent)
}

// announce refreshes the shared cache from storage and tells other
// processes to do the same.
func (a *App) announce(ctx context.Context) {
	a.Cache.Revalidate(ctx)
	if a.Relay != nil {
		if err := a.Relay.Publish(ctx); err != nil {
			a.Echo.Logger.Errorf("publish invalidation: %v", err)
		}
	}
}

// applySectionMoves reorders a cached list. Invalid moves leave it as is.
func applySectionMoves(prev []homepage.Section, moves []ordering.Move[string]) []homepage.Section {
	if prev == nil {
		return nil
	}
	order, err := ordering.Reorder(homepage.SectionIDs(prev), moves)
	if err != nil {
		return prev
	}
	byID := make(map[string]homepage.Section, len(prev))
	for _, s := range prev {
		byID[s.ID] = s
	}
	out := make([]homepage.Section, len(order))
	for i, id := range order {
		s := byID[id]
		s.Position = i + 1
		out[i] = s
	}
	return out
}

func applyItemMoves(prev []homepage.Item, moves []ordering.Move[string]) []homepage.Item {
	order, err := ordering.Reorder(homepage.ItemIDs(prev), moves)
	if err != nil {
		return prev
	}
	byID := make(map[string]homepage.Item, len(prev))
	for _, it := range prev {
		byID[it.ID] = it
	}
	out := make([]homepage.Item, len(order))
	for i, id := range order {
		it := byID[id]
		it.Position = i + 1
		out[i] = it
	}
	return out
}
