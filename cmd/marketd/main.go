package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/marketplace/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagEnvFile            = "env-file"
	flagListenAddr         = "listen-addr"
	flagHealthAddr         = "health-addr"
	flagDatabaseURL        = "database-url"
	flagStoreDriver        = "store-driver"
	flagRedisURL           = "redis-url"
	flagTopicPrefix        = "topic-prefix"
	flagAllowedOrigins     = "allowed-origins"
	flagJWTSigningKey      = "jwt-signing-key"
	flagJWTIssuer          = "jwt-issuer"
	flagJWTCookieName      = "jwt-cookie-name"
	flagWebhookSecret      = "webhook-secret"
	flagTransactionTimeout = "transaction-timeout"
	flagLockTimeout        = "lock-timeout"
	flagPublishTimeout     = "publish-timeout"
	envPrefix              = "MARKETD"
	defaultEnvFile         = ".env"
)

var configFlags = []string{
	flagListenAddr,
	flagHealthAddr,
	flagDatabaseURL,
	flagStoreDriver,
	flagRedisURL,
	flagTopicPrefix,
	flagAllowedOrigins,
	flagJWTSigningKey,
	flagJWTIssuer,
	flagJWTCookieName,
	flagWebhookSecret,
	flagTransactionTimeout,
	flagLockTimeout,
	flagPublishTimeout,
}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "marketd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Config{}
	cmd := &cobra.Command{
		Use:           "marketd",
		Short:         "Marketplace purchase and messaging server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagEnvFile, defaultEnvFile, "optional dotenv file loaded before reading the environment")
	flags.String(flagListenAddr, "", "HTTP listen address (default :8080)")
	flags.String(flagHealthAddr, "", "gRPC health listen address (default :8081)")
	flags.String(flagDatabaseURL, "", "postgres:// or sqlite:// connection string")
	flags.String(flagStoreDriver, "", "store implementation: gorm or pgx (default gorm)")
	flags.String(flagRedisURL, "", "redis:// URL used to share notifications between instances")
	flags.String(flagTopicPrefix, "", "prefix of notification topics")
	flags.String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	flags.String(flagJWTSigningKey, "", "TAuth JWT signing key (required)")
	flags.String(flagJWTIssuer, "", "expected JWT issuer")
	flags.String(flagJWTCookieName, "", "JWT cookie name")
	flags.String(flagWebhookSecret, "", "shared secret of the payment confirmation webhook (required)")
	flags.Duration(flagTransactionTimeout, 0, "upper bound of one marketplace transaction")
	flags.Duration(flagLockTimeout, 0, "row lock wait before a request is rejected as retryable")
	flags.Duration(flagPublishTimeout, 0, "per-notification publish timeout")

	cmd.AddCommand(newMigrateCommand(&cfg))
	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, err := cmd.Flags().GetString(flagEnvFile)
	if err != nil {
		return config.Config{}, err
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, flagName := range configFlags {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return config.Config{}, err
		}
	}

	return config.Config{
		ListenAddr:         strings.TrimSpace(v.GetString(flagListenAddr)),
		HealthAddr:         strings.TrimSpace(v.GetString(flagHealthAddr)),
		DatabaseURL:        strings.TrimSpace(v.GetString(flagDatabaseURL)),
		StoreDriver:        strings.TrimSpace(v.GetString(flagStoreDriver)),
		RedisURL:           strings.TrimSpace(v.GetString(flagRedisURL)),
		TopicPrefix:        strings.TrimSpace(v.GetString(flagTopicPrefix)),
		AllowedOrigins:     config.ParseAllowedOrigins(v.GetString(flagAllowedOrigins)),
		SessionSigningKey:  v.GetString(flagJWTSigningKey),
		SessionIssuer:      strings.TrimSpace(v.GetString(flagJWTIssuer)),
		SessionCookieName:  strings.TrimSpace(v.GetString(flagJWTCookieName)),
		WebhookSecret:      v.GetString(flagWebhookSecret),
		TransactionTimeout: v.GetDuration(flagTransactionTimeout),
		LockTimeout:        v.GetDuration(flagLockTimeout),
		PublishTimeout:     v.GetDuration(flagPublishTimeout),
	}, nil
}

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the marketplace schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateStorage(); err != nil {
				return err
			}
			return runMigrations(cmd.Context(), *cfg)
		},
	}
}
