package coophub

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// OrderQuery filters ListOrders. Zero values are omitted.
type OrderQuery struct {
	Page   int         `validate:"gte=0"`
	Limit  int         `validate:"gte=0,max=100"`
	Status OrderStatus `validate:"omitempty,oneof=pending confirmed shipped delivered cancelled"`
}

func (q OrderQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	return v
}

// OrderParams place an order.
type OrderParams struct {
	Items           []OrderItem `json:"items" validate:"required,min=1,dive"`
	ShippingAddress string      `json:"shippingAddress" validate:"required"`
	Currency        string      `json:"currency,omitempty" validate:"omitempty,iso4217"`
	Notes           string      `json:"notes,omitempty" validate:"max=1000"`
}

type orderStatusUpdate struct {
	Status OrderStatus `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

// ListOrders returns the caller's orders.
func (c *Client) ListOrders(ctx context.Context, query OrderQuery) ([]Order, *Page, error) {
	if err := c.validate.Struct(query); err != nil {
		return nil, nil, err
	}
	env, err := c.get(ctx, "/orders", query.values(), nil)
	if err != nil {
		return nil, nil, err
	}
	return decodeList[Order](env, "orders")
}

// GetOrder returns one order.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	env, err := c.get(ctx, pathf("/orders/%s", id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Order](env, "order")
}

// CreateOrder places an order.
func (c *Client) CreateOrder(ctx context.Context, params OrderParams) (*Order, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	env, err := c.send(ctx, http.MethodPost, "/orders", params, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Order](env, "order")
}

// UpdateOrderStatus moves an order to status.
func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status OrderStatus) (*Order, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	body := orderStatusUpdate{Status: status}
	if err := c.validate.Struct(body); err != nil {
		return nil, err
	}
	env, err := c.send(ctx, http.MethodPatch, pathf("/orders/%s/status", id), body, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Order](env, "order")
}
