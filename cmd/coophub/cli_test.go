package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	coophub "github.com/smartcoophub/client-go"
)

type mockClient struct {
	loginFn    func(ctx context.Context, params coophub.LoginParams) (*coophub.AuthResult, error)
	logoutFn   func(ctx context.Context) error
	trendingFn func(ctx context.Context, limit int) ([]coophub.Product, error)
	productsFn func(ctx context.Context, query coophub.ProductQuery) ([]coophub.Product, *coophub.Page, error)
	connectFn  func(ctx context.Context) error
	savedFn    func(ctx context.Context, productID string) bool

	mu       sync.Mutex
	handlers []func(*coophub.Message)
}

func (m *mockClient) Login(ctx context.Context, params coophub.LoginParams) (*coophub.AuthResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockClient) Logout(ctx context.Context) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx)
	}
	return nil
}

func (m *mockClient) CurrentUser(context.Context) (*coophub.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) ProductCategories(context.Context) ([]coophub.Category, error) {
	return nil, nil
}

func (m *mockClient) TrendingProducts(ctx context.Context, limit int) ([]coophub.Product, error) {
	if m.trendingFn != nil {
		return m.trendingFn(ctx, limit)
	}
	return nil, errors.New("not implemented")
}

func (m *mockClient) ListProducts(ctx context.Context, query coophub.ProductQuery) ([]coophub.Product, *coophub.Page, error) {
	if m.productsFn != nil {
		return m.productsFn(ctx, query)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *mockClient) GetProduct(context.Context, string) (*coophub.Product, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) ListOrders(context.Context, coophub.OrderQuery) ([]coophub.Order, *coophub.Page, error) {
	return nil, nil, nil
}

func (m *mockClient) IsInWishlist(ctx context.Context, productID string) bool {
	if m.savedFn != nil {
		return m.savedFn(ctx, productID)
	}
	return false
}

func (m *mockClient) ConnectChat(ctx context.Context) error {
	if m.connectFn != nil {
		return m.connectFn(ctx)
	}
	return nil
}

func (m *mockClient) OnChatMessage(_ string, fn func(*coophub.Message)) func() {
	m.mu.Lock()
	m.handlers = append(m.handlers, fn)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.handlers = nil
		m.mu.Unlock()
	}
}

func (m *mockClient) deliver(msg *coophub.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fn := range m.handlers {
		fn(msg)
	}
}

func (m *mockClient) SendMessage(context.Context, string, string) (*coophub.Message, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) Close() error { return nil }

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) { return 0, errors.New("read error") }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Stdin != os.Stdin {
		t.Error("DefaultConfig().Stdin should be os.Stdin")
	}
	if cfg.Stdout != os.Stdout {
		t.Error("DefaultConfig().Stdout should be os.Stdout")
	}
	if cfg.Stderr != os.Stderr {
		t.Error("DefaultConfig().Stderr should be os.Stderr")
	}
	if diff := cmp.Diff([]string{".env"}, cfg.EnvFiles); diff != "" {
		t.Errorf("EnvFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestRunLogin_PasswordFromStdin(t *testing.T) {
	var got coophub.LoginParams
	client := &mockClient{
		loginFn: func(ctx context.Context, params coophub.LoginParams) (*coophub.AuthResult, error) {
			got = params
			return &coophub.AuthResult{Token: "jwt", User: &coophub.User{ID: "u1", Name: "Ama"}}, nil
		},
	}
	var out bytes.Buffer
	cfg := &Config{Stdin: strings.NewReader("s3cret\r\n"), Stdout: &out}

	if err := runLogin(context.Background(), client, cfg, coophub.LoginParams{Email: "ama@example.com"}); err != nil {
		t.Fatalf("runLogin() error = %v", err)
	}
	if got.Password != "s3cret" {
		t.Errorf("password = %q", got.Password)
	}
	var user coophub.User
	if err := json.Unmarshal(out.Bytes(), &user); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if user.Name != "Ama" {
		t.Errorf("user = %+v", user)
	}
}

func TestRunLogin_ReadError(t *testing.T) {
	cfg := &Config{Stdin: errorReader{}, Stdout: &bytes.Buffer{}}
	err := runLogin(context.Background(), &mockClient{}, cfg, coophub.LoginParams{Email: "a@b.co"})
	if err == nil || !strings.Contains(err.Error(), "read password") {
		t.Errorf("error = %v, want read password failure", err)
	}
}

func TestRunLogin_Error(t *testing.T) {
	client := &mockClient{
		loginFn: func(context.Context, coophub.LoginParams) (*coophub.AuthResult, error) {
			return nil, &coophub.APIError{StatusCode: 401, Message: "Invalid credentials"}
		},
	}
	cfg := &Config{Stdout: &bytes.Buffer{}}

	err := runLogin(context.Background(), client, cfg, coophub.LoginParams{Email: "a@b.co", Password: "x"})
	if !errors.Is(err, coophub.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
	if coophub.ErrorMessage(err) != "Invalid credentials" {
		t.Errorf("ErrorMessage = %q", coophub.ErrorMessage(err))
	}
}

func TestRunTrending(t *testing.T) {
	var gotLimit int
	client := &mockClient{
		trendingFn: func(ctx context.Context, limit int) ([]coophub.Product, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	var out bytes.Buffer

	if err := runTrending(context.Background(), client, &Config{Stdout: &out}, 5); err != nil {
		t.Fatalf("runTrending() error = %v", err)
	}
	if gotLimit != 5 {
		t.Errorf("limit = %d", gotLimit)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("output = %q, want []", out.String())
	}
}

func TestRunProducts(t *testing.T) {
	client := &mockClient{
		productsFn: func(ctx context.Context, query coophub.ProductQuery) ([]coophub.Product, *coophub.Page, error) {
			if query.Search != "cocoa" {
				t.Errorf("query = %+v", query)
			}
			return []coophub.Product{{ID: "p1", Name: "Cocoa"}}, &coophub.Page{Page: 1, Total: 1}, nil
		},
	}
	var out bytes.Buffer

	if err := runProducts(context.Background(), client, &Config{Stdout: &out}, coophub.ProductQuery{Search: "cocoa"}); err != nil {
		t.Fatalf("runProducts() error = %v", err)
	}
	var parsed ProductsOutput
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		t.Fatal(err)
	}
	if len(parsed.Products) != 1 || parsed.Pagination == nil || parsed.Pagination.Total != 1 {
		t.Errorf("output = %+v", parsed)
	}
}

func TestRunSaved(t *testing.T) {
	client := &mockClient{savedFn: func(ctx context.Context, id string) bool { return id == "p1" }}
	var out bytes.Buffer

	if err := runSaved(context.Background(), client, &Config{Stdout: &out}, "p1"); err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	_ = json.Unmarshal(out.Bytes(), &parsed)
	if diff := cmp.Diff(map[string]any{"productId": "p1", "inWishlist": true}, parsed); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunWatch(t *testing.T) {
	client := &mockClient{}
	var out safeBuffer
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, client, &Config{Stdout: &out}, "conv1") }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		client.mu.Lock()
		n := len(client.handlers)
		client.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	client.deliver(&coophub.Message{ID: "m1", ConversationID: "conv1", Content: "hi"})
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("runWatch() error = %v", err)
	}
	if !strings.Contains(out.String(), `"id":"m1"`) {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunWatch_ConnectError(t *testing.T) {
	client := &mockClient{connectFn: func(context.Context) error { return coophub.ErrNotConnected }}
	err := runWatch(context.Background(), client, &Config{Stdout: &bytes.Buffer{}}, "")
	if !errors.Is(err, coophub.ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"pw\n", "pw", false},
		{"pw", "pw", false},
		{"pw\r\nrest", "pw", false},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := readLine(strings.NewReader(tt.in))
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("readLine(%q) = (%q, %v)", tt.in, got, err)
		}
	}
}

// safeBuffer is a bytes.Buffer safe for one writer and one reader.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_SessionSurvivesInvocations(t *testing.T) {
	var mu sync.Mutex
	var seenAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seenAuth = append(seenAuth, r.URL.Path+" "+r.Header.Get("Authorization"))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "s3cret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"token":"jwt-cli","user":{"id":"u1","name":"Ama"}}`))
		case "/api/auth/me":
			_, _ = w.Write([]byte(`{"user":{"id":"u1","name":"Ama"}}`))
		case "/api/auth/logout":
			_, _ = w.Write([]byte(`{"message":"Logged out"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	sessionFile := filepath.Join(t.TempDir(), "session.json")
	invoke := func(stdin string, args ...string) (string, error) {
		var out bytes.Buffer
		cfg := &Config{
			Stdin:  strings.NewReader(stdin),
			Stdout: &out,
			Stderr: &bytes.Buffer{},
			Env:    map[string]string{},
		}
		base := []string{"--api-url", srv.URL, "--session-file", sessionFile, "--log-level", "error"}
		err := run(append(base, args...), cfg)
		return out.String(), err
	}

	if _, err := invoke("wrong\n", "login", "--email", "ama@example.com"); coophub.ErrorMessage(err) != "Invalid credentials" {
		t.Fatalf("bad login error = %v", err)
	}

	out, err := invoke("s3cret\n", "login", "--email", "ama@example.com")
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	if !strings.Contains(out, `"name": "Ama"`) {
		t.Errorf("login output = %q", out)
	}

	if _, err := invoke("", "whoami"); err != nil {
		t.Fatalf("whoami error = %v", err)
	}
	if _, err := invoke("", "logout"); err != nil {
		t.Fatalf("logout error = %v", err)
	}

	data, err := os.ReadFile(sessionFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "jwt-cli") {
		t.Errorf("token left in session file after logout: %s", data)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{
		"/api/auth/login ",
		"/api/auth/login ",
		"/api/auth/me Bearer jwt-cli",
		"/api/auth/logout Bearer jwt-cli",
	}
	if diff := cmp.Diff(want, seenAuth); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_InvalidEnvironmentFlag(t *testing.T) {
	cfg := &Config{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}, Env: map[string]string{}}
	err := run([]string{"--env", "staging", "--session-file", filepath.Join(t.TempDir(), "s.json"), "categories"}, cfg)
	if err == nil || !strings.Contains(err.Error(), "COOPHUB_ENV") {
		t.Errorf("error = %v, want COOPHUB_ENV validation failure", err)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	cfg := &Config{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}, Env: map[string]string{}}
	if err := run([]string{"harvest"}, cfg); err == nil {
		t.Error("expected error for unknown command")
	}
}
