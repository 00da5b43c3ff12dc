//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	coophub "github.com/smartcoophub/client-go"
)

var (
	baseURL  string
	email    string
	password string
)

func TestMain(m *testing.M) {
	// Load .env file if it exists (won't error if missing)
	if err := godotenv.Load("../.env"); err != nil {
		os.Stderr.WriteString("Note: .env file not found at project root\n")
	}

	baseURL = os.Getenv("COOPHUB_API_URL")
	email = os.Getenv("COOPHUB_EMAIL")
	password = os.Getenv("COOPHUB_PASSWORD")

	if baseURL == "" {
		os.Stderr.WriteString("Skipping integration tests: COOPHUB_API_URL not set\n")
		os.Exit(0)
	}

	os.Stderr.WriteString("Running integration tests...\n")
	os.Stderr.WriteString("API URL: " + baseURL + "\n")

	os.Exit(m.Run())
}

func newClient(t *testing.T, opts ...coophub.Option) *coophub.Client {
	t.Helper()

	opts = append([]coophub.Option{
		coophub.WithBaseURL(baseURL),
		coophub.WithTimeout(30 * time.Second),
	}, opts...)

	client, err := coophub.New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func signedInClient(t *testing.T) *coophub.Client {
	t.Helper()
	if email == "" || password == "" {
		t.Skip("COOPHUB_EMAIL and COOPHUB_PASSWORD not set")
	}
	client := newClient(t)
	if _, err := client.Login(context.Background(), coophub.LoginParams{Email: email, Password: password}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return client
}

func TestIntegration_PublicCatalog(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	categories, err := client.ProductCategories(ctx)
	if err != nil {
		t.Fatalf("ProductCategories() error = %v", err)
	}
	t.Logf("%d categories", len(categories))

	trending, err := client.TrendingProducts(ctx, 4)
	if err != nil {
		t.Fatalf("TrendingProducts() error = %v", err)
	}
	if len(trending) > 4 {
		t.Errorf("TrendingProducts(4) returned %d products", len(trending))
	}

	products, _, err := client.ListProducts(ctx, coophub.ProductQuery{Limit: 5})
	if err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	if len(products) > 0 {
		p, err := client.GetProduct(ctx, products[0].ID)
		if err != nil {
			t.Fatalf("GetProduct() error = %v", err)
		}
		if p.ID != products[0].ID {
			t.Errorf("GetProduct() ID = %q, want %q", p.ID, products[0].ID)
		}
	}
}

func TestIntegration_InvalidCredentials(t *testing.T) {
	nav := coophub.NewRouteRecorder(coophub.LoginPath)
	client := newClient(t, coophub.WithNavigator(nav))

	_, err := client.Login(context.Background(), coophub.LoginParams{
		Email:    "nobody@example.invalid",
		Password: "definitely-wrong",
	})
	if err == nil {
		t.Fatal("Login() with bad credentials succeeded")
	}
	t.Logf("status %d: %s", coophub.StatusCode(err), coophub.ErrorMessage(err))
	if client.IsAuthenticated() {
		t.Error("failed login stored a token")
	}
	if len(nav.History()) != 0 {
		t.Errorf("navigated away from login page: %v", nav.History())
	}
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	client := signedInClient(t)
	ctx := context.Background()

	user, err := client.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.Email == "" {
		t.Error("CurrentUser() returned no email")
	}

	if _, _, err := client.ListOrders(ctx, coophub.OrderQuery{}); err != nil {
		t.Errorf("ListOrders() error = %v", err)
	}
	if _, err := client.Wishlist(ctx); err != nil {
		t.Errorf("Wishlist() error = %v", err)
	}

	if err := client.Logout(ctx); err != nil {
		t.Logf("Logout() error = %v", err)
	}
	if client.IsAuthenticated() {
		t.Fatal("still authenticated after Logout()")
	}

	if _, err := client.CurrentUser(ctx); !errors.Is(err, coophub.ErrUnauthorized) {
		t.Errorf("CurrentUser() after logout error = %v, want ErrUnauthorized", err)
	}
}

func TestIntegration_ChatConnect(t *testing.T) {
	client := signedInClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.ConnectChat(ctx); err != nil {
		t.Fatalf("ConnectChat() error = %v", err)
	}
	if _, err := client.Conversations(ctx); err != nil {
		t.Errorf("Conversations() error = %v", err)
	}
	if err := client.DisconnectChat(); err != nil {
		t.Errorf("DisconnectChat() error = %v", err)
	}
}
