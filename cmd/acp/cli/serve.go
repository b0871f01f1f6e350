package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/academicchain/platform/internal/config"
	"github.com/academicchain/platform/internal/server"
	"github.com/academicchain/platform/internal/service"
	"github.com/academicchain/platform/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port     int
		host     string
		dev      bool
		seedFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the control plane API server",
		Long:  "Start the HTTP server that exposes the dashboard, key management, and validation APIs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev, seedFile)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 3001, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")
	cmd.Flags().StringVar(&seedFile, "seed", "", "Seed file to load institutions and keys from (YAML)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool, seedFile string) error {
	cfg := loadConfig()
	if viper.GetInt("server.port") != 0 {
		port = viper.GetInt("server.port")
	}
	if viper.GetString("server.host") != "" {
		host = viper.GetString("server.host")
	}

	logLevel := slog.LevelInfo
	if dev || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	st, err := store.New(resolveDataDir())
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	logger.Info("store initialized", "path", resolveDataDir())

	if seedFile != "" {
		seed, err := config.LoadSeed(seedFile)
		if err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		if err := seed.Apply(context.Background(), st); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		logger.Info("seed applied", "institutions", len(seed.Institutions), "keys", len(seed.APIKeys))
	}

	authSvc := service.NewAuthService(cfg.Auth)
	keySvc := service.NewKeyService(st)
	validationSvc := service.NewValidationService(st, logger)

	if cfg.Auth.AdminPasswordHash == "" && cfg.Auth.AdminPassword == config.Default().Auth.AdminPassword {
		logger.Warn("admin password is the development default - run: acp admin hash-password")
	}

	srvCfg := server.Config{
		Host:            host,
		Port:            port,
		ShutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
		CORSOrigins:     cfg.Server.CORSOrigins,
		Version:         versionString(),
	}

	srv := server.New(srvCfg, st, authSvc, keySvc, validationSvc, logger)

	fmt.Printf("→ acp %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ OpenAPI:  http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("→ Health:   http://%s:%d/healthz\n", host, port)
	fmt.Println()

	return srv.ListenAndServe()
}

// loadConfig builds the runtime config from the YAML file (if one was found)
// with ACP_* environment variables layered on top via viper.
func loadConfig() config.Config {
	cfg := config.Default()
	if file := viper.ConfigFileUsed(); file != "" {
		loaded, err := config.Load(file)
		if err == nil {
			cfg = loaded
		}
	}
	if v := viper.GetString("auth.admin_password"); v != "" {
		cfg.Auth.AdminPassword = v
	}
	if v := viper.GetString("auth.admin_password_hash"); v != "" {
		cfg.Auth.AdminPasswordHash = v
	}
	if v := viper.GetString("auth.totp_secret"); v != "" {
		cfg.Auth.TOTPSecret = v
	}
	if v := viper.GetString("auth.jwt_secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("auth.session_ttl"); v != "" {
		cfg.Auth.SessionTTL = v
	}
	if v := viper.GetStringSlice("server.cors_origins"); len(v) > 0 {
		cfg.Server.CORSOrigins = v
	}
	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}
	return cfg
}
