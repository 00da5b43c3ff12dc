// Command coophub is a terminal client for the Cooperative Hub API.
//
// Settings come from COOPHUB_* environment variables (or a .env file) and
// can be overridden with flags. The session is kept in a JSON file so that
// a login survives between invocations.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	coophub "github.com/smartcoophub/client-go"
	"github.com/smartcoophub/client-go/internal/config"
	"github.com/smartcoophub/client-go/internal/logging"
)

const userAgent = "coophub-cli/1.0"

// Config holds the streams commands read from and write to.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Env replaces the process environment when non-nil.
	Env map[string]string
	// EnvFiles are loaded before parsing the environment.
	EnvFiles []string
}

// DefaultConfig wires the process streams.
func DefaultConfig() *Config {
	return &Config{
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		EnvFiles: []string{".env"},
	}
}

// hubClient is the part of *coophub.Client the commands use.
type hubClient interface {
	Login(ctx context.Context, params coophub.LoginParams) (*coophub.AuthResult, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*coophub.User, error)
	ProductCategories(ctx context.Context) ([]coophub.Category, error)
	TrendingProducts(ctx context.Context, limit int) ([]coophub.Product, error)
	ListProducts(ctx context.Context, query coophub.ProductQuery) ([]coophub.Product, *coophub.Page, error)
	GetProduct(ctx context.Context, id string) (*coophub.Product, error)
	ListOrders(ctx context.Context, query coophub.OrderQuery) ([]coophub.Order, *coophub.Page, error)
	IsInWishlist(ctx context.Context, productID string) bool
	ConnectChat(ctx context.Context) error
	OnChatMessage(conversationID string, fn func(*coophub.Message)) func()
	SendMessage(ctx context.Context, conversationID, content string) (*coophub.Message, error)
	Close() error
}

// globalFlags override the environment when set.
type globalFlags struct {
	apiURL      string
	env         string
	sessionFile string
	logLevel    string
	timeout     time.Duration
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	cfg    *Config
	flags  globalFlags
	client hubClient
	logger *zap.Logger
}

// run parses args and executes the selected command.
func run(args []string, cfg *Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(cfg.Stdin)
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)

	err := root.ExecuteContext(ctx)
	a.shutdown()
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coophub",
		Short:         "Cooperative Hub API client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.connect(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.apiURL, "api-url", "", "API origin (overrides COOPHUB_API_URL)")
	pf.StringVar(&a.flags.env, "env", "", "development or production (overrides COOPHUB_ENV)")
	pf.StringVar(&a.flags.sessionFile, "session-file", "", "session file (overrides COOPHUB_SESSION_FILE)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error (overrides COOPHUB_LOG_LEVEL)")
	pf.DurationVar(&a.flags.timeout, "timeout", 0, "per-request timeout (overrides COOPHUB_TIMEOUT)")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.categoriesCmd(),
		a.trendingCmd(),
		a.productsCmd(),
		a.ordersCmd(),
		a.savedCmd(),
		a.chatCmd(),
	)
	return root
}

// settings merges the environment with any flags the user set.
func (a *app) settings(cmd *cobra.Command) (*config.Config, error) {
	settings, err := config.LoadWith(config.Options{EnvFiles: a.cfg.EnvFiles, Environment: a.cfg.Env})
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		settings.APIURL = a.flags.apiURL
	}
	if flags.Changed("env") {
		settings.Environment = a.flags.env
	}
	if flags.Changed("session-file") {
		settings.SessionFile = a.flags.sessionFile
	}
	if flags.Changed("log-level") {
		settings.LogLevel = a.flags.logLevel
	}
	if flags.Changed("timeout") {
		settings.Timeout = a.flags.timeout
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (a *app) connect(cmd *cobra.Command) error {
	settings, err := a.settings(cmd)
	if err != nil {
		return err
	}

	logger, _, err := logging.New(settings.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger

	store, err := coophub.OpenFileStore(settings.SessionFile)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	opts := []coophub.Option{
		coophub.WithEnvironment(coophub.Environment(settings.Environment)),
		coophub.WithStore(store),
		coophub.WithTimeout(settings.Timeout),
		coophub.WithLogger(logging.Named(logger, "coophub")),
		coophub.WithUserAgent(userAgent),
	}
	if settings.APIURL != "" {
		opts = append(opts, coophub.WithBaseURL(settings.APIURL))
	}
	if settings.RateLimit > 0 {
		opts = append(opts, coophub.WithRateLimit(settings.RateLimit, 1))
	}

	client, err := coophub.New(opts...)
	if err != nil {
		return err
	}
	a.client = client
	logger.Debug("client ready", zap.String("base_url", client.BaseURL()), zap.String("session_file", settings.SessionFile))
	return nil
}

func (a *app) shutdown() {
	if a.client != nil {
		if err := a.client.Close(); err != nil && a.logger != nil {
			a.logger.Warn("close client", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
