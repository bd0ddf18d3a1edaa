package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/starledger/internal/challenge"
	"github.com/jmerrifield20/starledger/internal/ledger"
	"github.com/jmerrifield20/starledger/internal/notary/handler"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	cfgFound, cfgErr := loadConfig()

	logger, err := newLogger(viper.GetBool("log.development"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "notaryd: build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if cfgErr != nil {
		logger.Fatal("notaryd exited with error", zap.Error(cfgErr))
	}
	if !cfgFound {
		logger.Warn("no config file found, using defaults and env vars")
	}

	if err := run(logger); err != nil {
		logger.Fatal("notaryd exited with error", zap.Error(err))
	}
}

// loadConfig sets defaults and reads notaryd.yaml plus NOTARYD_* env vars.
// found is false when no config file exists, which is not an error.
func loadConfig() (found bool, err error) {
	viper.SetConfigName("notaryd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("notaryd")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("challenge.window", "300s")
	viper.SetDefault("ledger.audit_interval", "1m")
	viper.SetDefault("log.development", false)

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return false, fmt.Errorf("read config: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// newLogger returns a human-readable debug logger in development and the
// JSON production logger otherwise.
func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(logger *zap.Logger) error {
	window := viper.GetDuration("challenge.window")
	if window <= 0 {
		return fmt.Errorf("challenge.window must be positive, got %q", viper.GetString("challenge.window"))
	}
	auditInterval := viper.GetDuration("ledger.audit_interval")

	// ── Ledger ───────────────────────────────────────────────────────────────
	challenges := challenge.New(challenge.WithWindow(window))
	chain := ledger.New(logger, ledger.WithChallenger(challenges))
	handler.SetLedgerHeight(chain.Height())
	logger.Info("ledger ready",
		zap.Int64("height", chain.Height()),
		zap.Duration("challenge_window", window),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Background: periodic full-chain audit ────────────────────────────────
	if auditInterval > 0 {
		go audit(ctx, chain, auditInterval, logger)
	}

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(ctx, handler.RouterConfig{
		Ledger:       chain,
		Challenges:   challenges,
		Logger:       logger,
		CORSOrigins:  viper.GetStringSlice("server.cors_origins"),
		RateLimitRPS: viper.GetInt("server.rate_limit_rps"),
	})

	port := viper.GetInt("server.port")
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("notaryd HTTP listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP listen: %w", err)
	}
	logger.Info("shutting down notaryd...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("notaryd stopped", zap.Int64("height", chain.Height()))
	return nil
}

// audit re-validates the whole chain every interval and surfaces any problem
// to operators through logs and the chain-problems gauge.
func audit(ctx context.Context, chain *ledger.Ledger, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			problems := chain.ValidateChain()
			handler.SetChainProblems(len(problems))
			if len(problems) > 0 {
				logger.Error("ledger audit FAILED", zap.Strings("problems", problems))
				continue
			}
			logger.Debug("ledger audit passed", zap.Int64("height", chain.Height()))
		}
	}
}
