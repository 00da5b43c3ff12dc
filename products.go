package coophub

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Cache keys. Trending entries are keyed per limit so calls with different
// limits never share an entry or an in-flight request.
const categoriesCacheKey = "categories"

func trendingCacheKey(limit int) string {
	return "trending:limit=" + strconv.Itoa(limit)
}

// ProductQuery filters ListProducts. Zero values are omitted.
type ProductQuery struct {
	Page          int    `validate:"gte=0"`
	Limit         int    `validate:"gte=0,max=100"`
	Category      string
	CooperativeID string
	Search        string
	Sort          string `validate:"omitempty,oneof=newest price_asc price_desc popular rating"`
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.CooperativeID != "" {
		v.Set("cooperativeId", q.CooperativeID)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	return v
}

// ProductParams create or update a product.
type ProductParams struct {
	Name          string  `json:"name" validate:"required,max=200"`
	Description   string  `json:"description,omitempty"`
	Price         float64 `json:"price" validate:"gte=0"`
	Currency      string  `json:"currency,omitempty" validate:"omitempty,iso4217"`
	Unit          string  `json:"unit,omitempty"`
	Stock         int     `json:"stock" validate:"gte=0"`
	Category      string  `json:"category,omitempty"`
	CooperativeID string  `json:"cooperativeId,omitempty"`
}

// Image is an optional upload attached to CreateProduct.
type Image struct {
	Filename string
	Reader   io.Reader
}

// ListProducts returns a page of products.
func (c *Client) ListProducts(ctx context.Context, query ProductQuery) ([]Product, *Page, error) {
	if err := c.validate.Struct(query); err != nil {
		return nil, nil, err
	}
	env, err := c.get(ctx, "/products", query.values(), nil)
	if err != nil {
		return nil, nil, err
	}
	return decodeList[Product](env, "products")
}

// GetProduct returns one product.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	env, err := c.get(ctx, pathf("/products/%s", id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Product](env, "product")
}

// CreateProduct uploads a new product as multipart form data. image may be nil.
func (c *Client) CreateProduct(ctx context.Context, params ProductParams, image *Image) (*Product, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}

	form := NewForm().
		AddField("name", params.Name).
		AddField("price", strconv.FormatFloat(params.Price, 'f', -1, 64)).
		AddField("stock", strconv.Itoa(params.Stock))
	optional := []struct{ name, value string }{
		{"description", params.Description},
		{"currency", params.Currency},
		{"unit", params.Unit},
		{"category", params.Category},
		{"cooperativeId", params.CooperativeID},
	}
	for _, f := range optional {
		if f.value != "" {
			form.AddField(f.name, f.value)
		}
	}
	if image != nil && image.Reader != nil {
		form.AddFile("image", image.Filename, image.Reader)
	}

	env, err := c.Request(ctx, http.MethodPost, "/products", form, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Product](env, "product")
}

// UpdateProduct replaces a product's fields.
func (c *Client) UpdateProduct(ctx context.Context, id string, params ProductParams) (*Product, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	env, err := c.send(ctx, http.MethodPut, pathf("/products/%s", id), params, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Product](env, "product")
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	_, err := c.send(ctx, http.MethodDelete, pathf("/products/%s", id), nil, nil)
	return err
}

// ProductCategories returns the storefront categories. Results are cached
// for the cache TTL and concurrent callers share one request.
func (c *Client) ProductCategories(ctx context.Context) ([]Category, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.categories.Get(ctx, categoriesCacheKey, func(ctx context.Context) ([]Category, error) {
		env, err := c.get(ctx, "/products/categories", nil, nil)
		if err != nil {
			return nil, err
		}
		categories, _, err := decodeList[Category](env, "categories")
		return categories, err
	})
}

// TrendingProducts returns up to limit popular products (default 8).
// Results are cached per limit.
func (c *Client) TrendingProducts(ctx context.Context, limit int) ([]Product, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	return c.trending.Get(ctx, trendingCacheKey(limit), func(ctx context.Context) ([]Product, error) {
		query := url.Values{"limit": {strconv.Itoa(limit)}}
		env, err := c.get(ctx, "/products/trending", query, nil)
		if err != nil {
			return nil, err
		}
		products, _, err := decodeList[Product](env, "products")
		return products, err
	})
}
