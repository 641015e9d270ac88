package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
)

type treeApi struct {
	deps ServerDeps
}

func registerTreeAPI(g *echo.Group, deps ServerDeps) {
	api := treeApi{deps: deps}
	edit := instructorMiddleware()

	g.GET("/subjects/:subjectID/tree", api.treeQuery)
	g.POST("/subjects/:subjectID/sections", api.sectionCreate, edit)
	g.PUT("/subjects/:subjectID/sections/order", api.sectionReorder, edit)
	g.PUT("/sections/:id", api.sectionUpdate, edit)
	g.DELETE("/sections/:id", api.sectionDelete, edit)
	g.POST("/sections/:id/items", api.itemCreate, edit)
	g.PUT("/sections/:id/items/order", api.itemReorder, edit)
	g.GET("/items/:id", api.itemQuery)
	g.PUT("/items/:id", api.itemUpdate, edit)
	g.DELETE("/items/:id", api.itemDelete, edit)
}

func (api treeApi) treeQuery(ctx echo.Context) error {
	subjectID := ctx.Param("subjectID")
	sections, err := api.deps.Repo.GetTree(subjectID)
	if err != nil {
		return err
	}

	viewer := getContextViewer(ctx)
	if !viewer.IsInstructor() {
		sections = scopeSections(sections, viewer.Role)
	}
	return ctx.JSON(http.StatusOK, content.Tree{SubjectID: subjectID, Sections: sections})
}

func (api treeApi) sectionCreate(ctx echo.Context) error {
	var ns content.NewSection
	if err := ctx.Bind(&ns); err != nil {
		return err
	}
	if err := ns.Validate(api.deps.Validate); err != nil {
		return err
	}

	sec, err := api.deps.Repo.CreateSection(ctx.Param("subjectID"), content.Section{
		Title:    ns.Title,
		Order:    ns.Order,
		Audience: ns.Audience,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sec)
}

func (api treeApi) sectionUpdate(ctx echo.Context) error {
	var us content.UpdateSection
	if err := ctx.Bind(&us); err != nil {
		return err
	}
	if err := us.Validate(); err != nil {
		return err
	}

	sec, err := api.deps.Repo.UpdateSection(ctx.Param("id"), us)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api treeApi) sectionDelete(ctx echo.Context) error {
	if err := api.deps.Repo.DeleteSection(ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api treeApi) sectionReorder(ctx echo.Context) error {
	var in orderRequest
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	if err := api.deps.Repo.ReorderSections(ctx.Param("subjectID"), in.IDs); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api treeApi) itemCreate(ctx echo.Context) error {
	var ni content.NewItem
	if err := ctx.Bind(&ni); err != nil {
		return err
	}
	if err := ni.Validate(api.deps.Validate); err != nil {
		return err
	}

	newIt := content.Item{
		Order:    ni.Order,
		Audience: ni.Audience,
		Kind:     ni.Kind,
		Label:    ni.Label,
		Content:  ni.Content,
		Window:   ni.Window,
		File:     ni.File,
	}
	newIt.Sanitize()

	it, err := api.deps.Repo.CreateItem(ctx.Param("id"), newIt)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, it)
}

func (api treeApi) itemQuery(ctx echo.Context) error {
	viewer := getContextViewer(ctx)
	it, err := visibleItem(api.deps, ctx.Param("id"), viewer)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, itemResponse{Item: it, CanEdit: viewer.IsInstructor()})
}

// visibleItem loads the item, scoped to the viewer: non-instructors only reach
// an item when its own audience and its parent section's audience both include
// them. Out-of-audience items read as absent, never as forbidden.
func visibleItem(deps ServerDeps, id string, viewer core.Viewer) (content.Item, error) {
	it, err := deps.Repo.GetItem(id)
	if err != nil {
		return content.Item{}, err
	}
	if viewer.IsInstructor() {
		return it, nil
	}
	sec, err := deps.Repo.GetSection(it.SectionID)
	if err != nil {
		return content.Item{}, err
	}
	if !sec.Audience.Includes(viewer.Role) || !it.Audience.Includes(viewer.Role) {
		return content.Item{}, errHttpNotFound
	}
	return it, nil
}

func (api treeApi) itemUpdate(ctx echo.Context) error {
	var ui content.UpdateItem
	if err := ctx.Bind(&ui); err != nil {
		return err
	}

	orig, err := api.deps.Repo.GetItem(ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = ui.Validate(orig); err != nil {
		return err
	}

	it, err := api.deps.Repo.UpdateItem(orig.ID, ui)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, it)
}

func (api treeApi) itemDelete(ctx echo.Context) error {
	if err := api.deps.Repo.DeleteItem(ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api treeApi) itemReorder(ctx echo.Context) error {
	var in orderRequest
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	if err := api.deps.Repo.ReorderItems(ctx.Param("id"), in.IDs); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// scopeSections filters sections and their items down to what the given role
// may see. Sections the role can see are kept even when all their items are
// scoped away.
func scopeSections(sections []content.Section, role string) []content.Section {
	scoped := make([]content.Section, 0, len(sections))
	for _, sec := range sections {
		if !sec.Audience.Includes(role) {
			continue
		}
		items := make([]content.Item, 0, len(sec.Items))
		for _, it := range sec.Items {
			if it.Audience.Includes(role) {
				items = append(items, it)
			}
		}
		sec.Items = items
		scoped = append(scoped, sec)
	}
	return scoped
}

type (
	orderRequest struct {
		IDs []string `json:"ids"`
	}

	itemResponse struct {
		Item    content.Item `json:"item"`
		CanEdit bool         `json:"can_edit"`
	}
)
