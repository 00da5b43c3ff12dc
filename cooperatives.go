package coophub

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// CooperativeQuery filters ListCooperatives. Zero values are omitted.
type CooperativeQuery struct {
	Page   int `validate:"gte=0"`
	Limit  int `validate:"gte=0,max=100"`
	Region string
	Sector string
	Search string
}

func (q CooperativeQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Region != "" {
		v.Set("region", q.Region)
	}
	if q.Sector != "" {
		v.Set("sector", q.Sector)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// CooperativeParams create or update a cooperative.
type CooperativeParams struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty"`
	Region      string `json:"region,omitempty"`
	Sector      string `json:"sector,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string `json:"phone,omitempty"`
}

// ListCooperatives returns a page of cooperatives.
func (c *Client) ListCooperatives(ctx context.Context, query CooperativeQuery) ([]Cooperative, *Page, error) {
	if err := c.validate.Struct(query); err != nil {
		return nil, nil, err
	}
	env, err := c.get(ctx, "/cooperatives", query.values(), nil)
	if err != nil {
		return nil, nil, err
	}
	return decodeList[Cooperative](env, "cooperatives")
}

// GetCooperative returns one cooperative.
func (c *Client) GetCooperative(ctx context.Context, id string) (*Cooperative, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	env, err := c.get(ctx, pathf("/cooperatives/%s", id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Cooperative](env, "cooperative")
}

// CreateCooperative registers a cooperative.
func (c *Client) CreateCooperative(ctx context.Context, params CooperativeParams) (*Cooperative, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	env, err := c.send(ctx, http.MethodPost, "/cooperatives", params, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Cooperative](env, "cooperative")
}

// UpdateCooperative edits a cooperative.
func (c *Client) UpdateCooperative(ctx context.Context, id string, params CooperativeParams) (*Cooperative, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	env, err := c.send(ctx, http.MethodPut, pathf("/cooperatives/%s", id), params, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Cooperative](env, "cooperative")
}

// DeleteCooperative removes a cooperative.
func (c *Client) DeleteCooperative(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	_, err := c.send(ctx, http.MethodDelete, pathf("/cooperatives/%s", id), nil, nil)
	return err
}

// CooperativeMembers lists a cooperative's members.
func (c *Client) CooperativeMembers(ctx context.Context, id string) ([]Member, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	env, err := c.get(ctx, pathf("/cooperatives/%s/members", id), nil, nil)
	if err != nil {
		return nil, err
	}
	members, _, err := decodeList[Member](env, "members")
	return members, err
}
