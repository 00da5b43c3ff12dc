package coophub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartcoophub/client-go/internal/api"
)

// Envelope is a normalized {message?, data} response.
type Envelope = api.Envelope

// EnvelopeKind tags how a response body was normalized.
type EnvelopeKind = api.EnvelopeKind

// Envelope kinds.
const (
	EnvelopeEmpty   = api.EnvelopeEmpty
	EnvelopeWrapped = api.EnvelopeWrapped
	EnvelopeBare    = api.EnvelopeBare
	EnvelopeText    = api.EnvelopeText
)

// Form is a multipart request body for Request.
type Form = api.Form

// NewForm creates an empty multipart form.
func NewForm() *Form {
	return api.NewForm()
}

// Role is a user's platform role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleBuyer   Role = "buyer"
)

// User is the signed-in account.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          Role      `json:"role,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	CooperativeID string    `json:"cooperativeId,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
}

// AuthResult is returned by Login and Register.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Category groups products in the storefront.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug,omitempty"`
	Count int    `json:"count,omitempty"`
}

// Product is a storefront listing owned by a cooperative.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency,omitempty"`
	Unit          string    `json:"unit,omitempty"`
	Stock         int       `json:"stock"`
	Category      string    `json:"category,omitempty"`
	CooperativeID string    `json:"cooperativeId,omitempty"`
	ImageURL      string    `json:"image,omitempty"`
	Rating        float64   `json:"rating,omitempty"`
	Sales         int       `json:"sales,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
}

// Cooperative is a registered member organization.
type Cooperative struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Region      string    `json:"region,omitempty"`
	Sector      string    `json:"sector,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	MemberCount int       `json:"memberCount,omitempty"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// Member is a user's membership in a cooperative.
type Member struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId,omitempty"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	Role     Role      `json:"role,omitempty"`
	JoinedAt time.Time `json:"joinedAt,omitzero"`
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
	Price     float64 `json:"price,omitempty" validate:"gte=0"`
}

// Order is a buyer's purchase.
type Order struct {
	ID              string      `json:"id"`
	BuyerID         string      `json:"buyerId,omitempty"`
	Items           []OrderItem `json:"items"`
	Total           float64     `json:"total"`
	Currency        string      `json:"currency,omitempty"`
	Status          OrderStatus `json:"status"`
	ShippingAddress string      `json:"shippingAddress,omitempty"`
	CreatedAt       time.Time   `json:"createdAt,omitzero"`
}

// WishlistItem is a saved product.
type WishlistItem struct {
	ID        string    `json:"id,omitempty"`
	ProductID string    `json:"productId"`
	Product   *Product  `json:"product,omitempty"`
	AddedAt   time.Time `json:"addedAt,omitzero"`
}

// Conversation is a chat thread between users.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []User    `json:"participants,omitempty"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	UnreadCount  int       `json:"unreadCount,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

// Message is one chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
	Read           bool      `json:"read,omitempty"`
}

// Page holds list pagination metadata when the backend provides it.
type Page struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// decodeList accepts either a bare array or an object with the items under
// key (e.g. {"products": [...], "pagination": {...}}).
func decodeList[T any](env *Envelope, key string) ([]T, *Page, error) {
	if !env.HasData() {
		return nil, nil, nil
	}
	var items []T
	if err := json.Unmarshal(env.Data, &items); err == nil {
		return items, nil, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &obj); err != nil {
		return nil, nil, fmt.Errorf("decode %s list: %w", key, err)
	}
	raw, ok := obj[key]
	if !ok {
		raw, ok = obj["items"]
	}
	if ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, nil, fmt.Errorf("decode %s list: %w", key, err)
		}
	}
	var page *Page
	if p, ok := obj["pagination"]; ok {
		page = &Page{}
		if err := json.Unmarshal(p, page); err != nil {
			return nil, nil, fmt.Errorf("decode pagination: %w", err)
		}
	}
	return items, page, nil
}

// decodeItem accepts either the object itself or {key: object}.
func decodeItem[T any](env *Envelope, key string) (*T, error) {
	if env.HasData() {
		return unwrapItem[T](env.Data, key)
	}
	// {"message": {...}} normalizes to a wrapped envelope with no data.
	if env != nil && !isNullRaw(env.Raw) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(env.Raw, &obj); err == nil {
			if inner, ok := obj[key]; ok && isObject(inner) {
				return unwrapItem[T](inner, key)
			}
		}
	}
	return nil, nil
}

func unwrapItem[T any](data json.RawMessage, key string) (*T, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		if inner, ok := obj[key]; ok && isObject(inner) {
			data = inner
		}
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

func isObject(raw json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{"))
}
