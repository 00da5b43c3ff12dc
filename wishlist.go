package coophub

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type wishlistAdd struct {
	ProductID string `json:"productId"`
}

// Wishlist returns the caller's saved products.
func (c *Client) Wishlist(ctx context.Context) ([]WishlistItem, error) {
	env, err := c.get(ctx, "/wishlist", nil, nil)
	if err != nil {
		return nil, err
	}
	items, _, err := decodeList[WishlistItem](env, "wishlist")
	return items, err
}

// AddToWishlist saves a product.
func (c *Client) AddToWishlist(ctx context.Context, productID string) error {
	if err := requireID("productId", productID); err != nil {
		return err
	}
	_, err := c.send(ctx, http.MethodPost, "/wishlist", wishlistAdd{ProductID: productID}, nil)
	return err
}

// RemoveFromWishlist drops a saved product.
func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	if err := requireID("productId", productID); err != nil {
		return err
	}
	_, err := c.send(ctx, http.MethodDelete, pathf("/wishlist/%s", productID), nil, nil)
	return err
}

// IsInWishlist reports whether a product is saved. Any failure is logged
// and reported as false; this is the one call that does not return errors.
func (c *Client) IsInWishlist(ctx context.Context, productID string) bool {
	if requireID("productId", productID) != nil {
		return false
	}
	env, err := c.get(ctx, pathf("/wishlist/check/%s", productID), nil, nil)
	if err != nil {
		c.logger.Warn("wishlist check failed",
			zap.String("product_id", productID),
			zap.Int("status", StatusCode(err)),
			zap.Error(err))
		return false
	}
	return decodeWishlistCheck(env)
}

// decodeWishlistCheck accepts {inWishlist: bool}, {isInWishlist: bool} or a bare bool.
func decodeWishlistCheck(env *Envelope) bool {
	if !env.HasData() {
		return false
	}
	var flag bool
	if err := json.Unmarshal(env.Data, &flag); err == nil {
		return flag
	}
	var obj struct {
		InWishlist   *bool `json:"inWishlist"`
		IsInWishlist *bool `json:"isInWishlist"`
	}
	if err := json.Unmarshal(env.Data, &obj); err != nil {
		return false
	}
	switch {
	case obj.InWishlist != nil:
		return *obj.InWishlist
	case obj.IsInWishlist != nil:
		return *obj.IsInWishlist
	}
	return false
}
