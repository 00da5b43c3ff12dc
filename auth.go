package coophub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// LoginParams are the credentials for Login.
type LoginParams struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterParams describe a new account.
type RegisterParams struct {
	Name          string `json:"name" validate:"required,max=120"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	Phone         string `json:"phone,omitempty"`
	Role          Role   `json:"role,omitempty" validate:"omitempty,oneof=admin manager member buyer"`
	CooperativeID string `json:"cooperativeId,omitempty"`
}

// ProfileParams are the editable profile fields. Empty fields are left unchanged.
type ProfileParams struct {
	Name   string `json:"name,omitempty" validate:"omitempty,max=120"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// Login signs in and stores the token and user in the session.
func (c *Client) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	return c.authenticate(ctx, "/auth/login", params)
}

// Register creates an account and signs in with it.
func (c *Client) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	return c.authenticate(ctx, "/auth/register", params)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*AuthResult, error) {
	env, err := c.send(ctx, http.MethodPost, path, body, nil)
	if err != nil {
		return nil, err
	}

	result, err := decodeAuth(env)
	if err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, fmt.Errorf("%s: response carried no token", path)
	}

	if err := c.session.SetToken(result.Token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	if result.User != nil {
		if err := c.session.SetUser(result.User); err != nil {
			return nil, fmt.Errorf("store user: %w", err)
		}
	}
	return result, nil
}

// decodeAuth accepts {token, user}, {data: {token, user}} and
// {message, token, user}.
func decodeAuth(env *Envelope) (*AuthResult, error) {
	var result AuthResult
	if env.HasData() {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return nil, fmt.Errorf("decode auth response: %w", err)
		}
	}
	if result.Token == "" && !isNullRaw(env.Raw) {
		if err := json.Unmarshal(env.Raw, &result); err != nil {
			return nil, fmt.Errorf("decode auth response: %w", err)
		}
	}
	return &result, nil
}

// Logout ends the session on the backend. The local session is cleared
// even when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.send(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if clearErr := c.session.Clear(); clearErr != nil {
		c.logger.Warn("failed to clear session", zap.Error(clearErr))
	}
	return err
}

// CurrentUser fetches the signed-in user and refreshes the stored copy.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	env, err := c.get(ctx, "/auth/me", nil, nil)
	if err != nil {
		return nil, err
	}
	user, err := decodeItem[User](env, "user")
	if err != nil {
		return nil, err
	}
	if user != nil {
		if err := c.session.SetUser(user); err != nil {
			c.logger.Warn("failed to store user", zap.Error(err))
		}
	}
	return user, nil
}

// UpdateProfile edits the signed-in user's profile.
func (c *Client) UpdateProfile(ctx context.Context, params ProfileParams) (*User, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	env, err := c.send(ctx, http.MethodPut, "/auth/profile", params, nil)
	if err != nil {
		return nil, err
	}
	user, err := decodeItem[User](env, "user")
	if err != nil {
		return nil, err
	}
	if user != nil {
		if err := c.session.SetUser(user); err != nil {
			c.logger.Warn("failed to store user", zap.Error(err))
		}
	}
	return user, nil
}

func isNullRaw(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
