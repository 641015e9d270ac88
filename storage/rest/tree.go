package restgw

import (
	"context"
	"net/http"

	"github.com/trezcool/darasa/core/content"
)

var _ content.Gateway = (*Client)(nil)

func (c *Client) GetTree(ctx context.Context, subjectID string) (content.Tree, error) {
	var tree content.Tree
	err := c.do(ctx, http.MethodGet, "/v1/subjects/"+subjectID+"/tree", nil, &tree)
	return tree, err
}

func (c *Client) CreateSection(ctx context.Context, subjectID string, ns content.NewSection) (content.Section, error) {
	var sec content.Section
	err := c.do(ctx, http.MethodPost, "/v1/subjects/"+subjectID+"/sections", &ns, &sec)
	return sec, err
}

func (c *Client) UpdateSection(ctx context.Context, id string, us content.UpdateSection) (content.Section, error) {
	var sec content.Section
	err := c.do(ctx, http.MethodPut, "/v1/sections/"+id, &us, &sec)
	return sec, err
}

func (c *Client) DeleteSection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sections/"+id, nil, nil)
}

func (c *Client) ReorderSections(ctx context.Context, subjectID string, orderedIDs []string) error {
	in := orderRequest{IDs: orderedIDs}
	return c.do(ctx, http.MethodPut, "/v1/subjects/"+subjectID+"/sections/order", &in, nil)
}

func (c *Client) CreateItem(ctx context.Context, sectionID string, ni content.NewItem) (content.Item, error) {
	var it content.Item
	err := c.do(ctx, http.MethodPost, "/v1/sections/"+sectionID+"/items", &ni, &it)
	return it, err
}

func (c *Client) UpdateItem(ctx context.Context, id string, ui content.UpdateItem) (content.Item, error) {
	var it content.Item
	err := c.do(ctx, http.MethodPut, "/v1/items/"+id, &ui, &it)
	return it, err
}

func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/items/"+id, nil, nil)
}

func (c *Client) ReorderItems(ctx context.Context, sectionID string, orderedIDs []string) error {
	in := orderRequest{IDs: orderedIDs}
	return c.do(ctx, http.MethodPut, "/v1/sections/"+sectionID+"/items/order", &in, nil)
}

func (c *Client) GetItem(ctx context.Context, id string) (content.Item, bool, error) {
	var out itemResponse
	if err := c.do(ctx, http.MethodGet, "/v1/items/"+id, nil, &out); err != nil {
		return content.Item{}, false, err
	}
	return out.Item, out.CanEdit, nil
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
