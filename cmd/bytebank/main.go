package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"bytebank/internal/cache"
	"bytebank/internal/config"
	"bytebank/internal/functions"
	"bytebank/internal/rest"
	"bytebank/internal/services"
	"bytebank/internal/session"
	"bytebank/internal/storage"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "bytebank",
})

// app bundles every wired service the subcommands need.
type app struct {
	cfg          *config.Config
	auth         *session.AuthClient
	accessor     *session.Accessor
	transactions services.TransactionServiceInterface
	accounts     services.BankAccountServiceInterface
}

// newApp wires the full client stack from configuration. Services share one
// REST client, one session store and one query cache.
func newApp() (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store := session.NewFileStore(cfg.Session.FilePath)
	accessor := session.NewAccessor(store)
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}

	client := rest.NewClient(cfg.Backend.BaseURL, cfg.Backend.AnonKey, accessor,
		rest.WithHTTPClient(httpClient),
		rest.WithMaxRetries(cfg.HTTP.MaxRetries),
		rest.WithRetryBackoff(cfg.HTTP.RetryBackoff),
		rest.WithRateLimit(cfg.HTTP.RateLimitPerSecond, cfg.HTTP.RateLimitBurst),
		rest.WithMetrics(rest.NewPrometheusMetrics(prometheus.NewRegistry())),
	)

	receipts := storage.NewReceiptStore(cfg.Backend.BaseURL, cfg.Backend.AnonKey, cfg.Backend.ReceiptBucket, accessor, httpClient)
	processor := functions.NewProcessor(cfg.Backend.BaseURL, cfg.Backend.AnonKey, accessor, httpClient)
	queryCache := cache.New(cfg.Cache.TTL, cfg.Cache.Enabled)

	accounts := services.NewBankAccountService(client, accessor, queryCache)
	transactions := services.NewTransactionService(client, accessor, receipts, processor, queryCache, accounts)

	return &app{
		cfg:          cfg,
		auth:         session.NewAuthClient(cfg.Backend.BaseURL, cfg.Backend.AnonKey, httpClient, store),
		accessor:     accessor,
		transactions: transactions,
		accounts:     accounts,
	}, nil
}

var rootCmd = &cobra.Command{
	Use:          "bytebank",
	Short:        "Command-line client for the bytebank backend",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and persist the session locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		password := os.Getenv("BYTEBANK_PASSWORD")
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			if _, err := fmt.Scanln(&password); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}

		sess, err := a.auth.SignIn(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}

		if sess.User != nil {
			logger.Info("signed in", "user", sess.User.Email)
		} else {
			logger.Info("signed in")
		}
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup <email>",
	Short: "Create an account and provision a checking account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		fullName, _ := cmd.Flags().GetString("name")
		password := os.Getenv("BYTEBANK_PASSWORD")
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			if _, err := fmt.Scanln(&password); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}

		sess, err := a.auth.SignUp(cmd.Context(), args[0], password, fullName)
		if err != nil {
			return err
		}
		logger.Info("signed up", "email", args[0])

		// Provisioning is best effort. Sign-up flows that require email
		// confirmation return no access token yet; the account gets
		// created on first login instead.
		if sess.AccessToken == "" {
			logger.Info("confirmation required before an account can be provisioned")
			return nil
		}
		account, err := a.accounts.CreateBankAccount(cmd.Context(), "checking")
		if err != nil {
			logger.Warn("account provisioning failed", "error", err)
			return nil
		}
		logger.Info("checking account provisioned", "number", account.AccountNumber)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the persisted session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.auth.SignOut(); err != nil {
			return err
		}
		logger.Info("signed out")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate sample transactions for the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		count, _ := cmd.Flags().GetInt("count")
		seed, _ := cmd.Flags().GetUint64("seed")

		gen := services.NewSampleDataGenerator(a.transactions, seed)
		created, warnings, err := gen.Generate(cmd.Context(), count)
		if err != nil {
			return err
		}

		for _, w := range warnings {
			logger.Warn("seed write failed", "code", w.Code, "error", w.Message)
		}
		logger.Info("sample data created", "count", created)
		return nil
	},
}

func init() {
	signupCmd.Flags().String("name", "", "Full name stored in the user profile")

	seedCmd.Flags().Int("count", 25, "Number of sample transactions to create")
	seedCmd.Flags().Uint64("seed", 0, "Random seed (0 picks a random one)")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, seedCmd, accountsCmd, txCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("command failed", "error", err)
	}
}
