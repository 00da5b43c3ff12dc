package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	coophub "github.com/smartcoophub/client-go"
)

func (a *app) loginCmd() *cobra.Command {
	var params coophub.LoginParams
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Long: `Sign in with email and password. The password is read from the first
line of standard input when --password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), a.client, a.cfg, params)
		},
	}
	cmd.Flags().StringVar(&params.Email, "email", "", "account email")
	cmd.Flags().StringVar(&params.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), a.client, a.cfg)
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context(), a.client, a.cfg)
		},
	}
}

func (a *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCategories(cmd.Context(), a.client, a.cfg)
		},
	}
}

func (a *app) trendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "List trending products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrending(cmd.Context(), a.client, a.cfg, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of products (default 8)")
	return cmd
}

func (a *app) productsCmd() *cobra.Command {
	var query coophub.ProductQuery
	cmd := &cobra.Command{
		Use:   "products [id]",
		Short: "List products, or show one by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runProduct(cmd.Context(), a.client, a.cfg, args[0])
			}
			return runProducts(cmd.Context(), a.client, a.cfg, query)
		},
	}
	f := cmd.Flags()
	f.IntVar(&query.Page, "page", 0, "page number")
	f.IntVar(&query.Limit, "limit", 0, "page size")
	f.StringVar(&query.Category, "category", "", "category filter")
	f.StringVar(&query.CooperativeID, "cooperative", "", "cooperative id filter")
	f.StringVar(&query.Search, "search", "", "free-text search")
	f.StringVar(&query.Sort, "sort", "", "newest, price_asc, price_desc, popular or rating")
	return cmd
}

func (a *app) ordersCmd() *cobra.Command {
	var query coophub.OrderQuery
	var status string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query.Status = coophub.OrderStatus(status)
			return runOrders(cmd.Context(), a.client, a.cfg, query)
		},
	}
	cmd.Flags().IntVar(&query.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&query.Limit, "limit", 0, "page size")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func (a *app) savedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "saved <product-id>",
		Short: "Report whether a product is in your wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSaved(cmd.Context(), a.client, a.cfg, args[0])
		},
	}
}

func (a *app) chatCmd() *cobra.Command {
	chat := &cobra.Command{
		Use:   "chat",
		Short: "Send and watch chat messages",
	}
	chat.AddCommand(
		&cobra.Command{
			Use:   "watch [conversation-id]",
			Short: "Print incoming messages until interrupted",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var conversationID string
				if len(args) == 1 {
					conversationID = args[0]
				}
				return runWatch(cmd.Context(), a.client, a.cfg, conversationID)
			},
		},
		&cobra.Command{
			Use:   "send <conversation-id> <message>",
			Short: "Send a message",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSend(cmd.Context(), a.client, a.cfg, args[0], strings.Join(args[1:], " "))
			},
		},
	)
	return chat
}

func runLogin(ctx context.Context, client hubClient, cfg *Config, params coophub.LoginParams) error {
	if params.Password == "" {
		password, err := readLine(cfg.Stdin)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		params.Password = password
	}

	result, err := client.Login(ctx, params)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return writeJSON(cfg.Stdout, result.User)
}

func runLogout(ctx context.Context, client hubClient, cfg *Config) error {
	if err := client.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return writeJSON(cfg.Stdout, map[string]bool{"success": true})
}

func runWhoami(ctx context.Context, client hubClient, cfg *Config) error {
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("current user: %w", err)
	}
	return writeJSON(cfg.Stdout, user)
}

func runCategories(ctx context.Context, client hubClient, cfg *Config) error {
	categories, err := client.ProductCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	return writeJSON(cfg.Stdout, nonNil(categories))
}

func runTrending(ctx context.Context, client hubClient, cfg *Config, limit int) error {
	products, err := client.TrendingProducts(ctx, limit)
	if err != nil {
		return fmt.Errorf("list trending products: %w", err)
	}
	return writeJSON(cfg.Stdout, nonNil(products))
}

// ProductsOutput is the products command's JSON shape.
type ProductsOutput struct {
	Products   []coophub.Product `json:"products"`
	Pagination *coophub.Page     `json:"pagination,omitempty"`
}

func runProducts(ctx context.Context, client hubClient, cfg *Config, query coophub.ProductQuery) error {
	products, page, err := client.ListProducts(ctx, query)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	return writeJSON(cfg.Stdout, ProductsOutput{Products: nonNil(products), Pagination: page})
}

func runProduct(ctx context.Context, client hubClient, cfg *Config, id string) error {
	product, err := client.GetProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	return writeJSON(cfg.Stdout, product)
}

// OrdersOutput is the orders command's JSON shape.
type OrdersOutput struct {
	Orders     []coophub.Order `json:"orders"`
	Pagination *coophub.Page   `json:"pagination,omitempty"`
}

func runOrders(ctx context.Context, client hubClient, cfg *Config, query coophub.OrderQuery) error {
	orders, page, err := client.ListOrders(ctx, query)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}
	return writeJSON(cfg.Stdout, OrdersOutput{Orders: nonNil(orders), Pagination: page})
}

func runSaved(ctx context.Context, client hubClient, cfg *Config, productID string) error {
	return writeJSON(cfg.Stdout, map[string]any{
		"productId":  productID,
		"inWishlist": client.IsInWishlist(ctx, productID),
	})
}

// runWatch streams messages as JSON lines until ctx is cancelled.
func runWatch(ctx context.Context, client hubClient, cfg *Config, conversationID string) error {
	var mu sync.Mutex
	enc := json.NewEncoder(cfg.Stdout)
	unsubscribe := client.OnChatMessage(conversationID, func(m *coophub.Message) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(m)
	})
	defer unsubscribe()

	if err := client.ConnectChat(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connect chat: %w", err)
	}
	<-ctx.Done()
	return nil
}

func runSend(ctx context.Context, client hubClient, cfg *Config, conversationID, content string) error {
	msg, err := client.SendMessage(ctx, conversationID, content)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return writeJSON(cfg.Stdout, msg)
}

func readLine(r io.Reader) (string, error) {
	if r == nil {
		return "", io.ErrUnexpectedEOF
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// nonNil makes empty lists print as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
