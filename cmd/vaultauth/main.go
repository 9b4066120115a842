package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/layer-3/vaultauth/adapters/accounts"
	"github.com/layer-3/vaultauth/adapters/events"
	"github.com/layer-3/vaultauth/adapters/store"
	"github.com/layer-3/vaultauth/adapters/tokenizer"
	"github.com/layer-3/vaultauth/adapters/verifier"
	"github.com/layer-3/vaultauth/config"
	"github.com/layer-3/vaultauth/ports"
	"github.com/layer-3/vaultauth/service"
	transport "github.com/layer-3/vaultauth/transport/http"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	signKey, err := signingKey(cfg, logger)
	if err != nil {
		return err
	}

	scheme, err := verifier.ParseScheme(cfg.SignatureScheme)
	if err != nil {
		return err
	}
	sigVerifier := verifier.New(scheme, verifier.Domain{
		Name:              cfg.EIP712.Name,
		Version:           cfg.EIP712.Version,
		ChainID:           cfg.EIP712.ChainID,
		VerifyingContract: cfg.EIP712.VerifyingContract,
	})

	var (
		redisClient *redis.Client
		nonces      ports.NonceStore
		revocations ports.RevocationStore
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		nonces = store.NewRedisNonceStore(redisClient, cfg.NonceTTL)
		revocations = store.NewRedisRevocationStore(redisClient)
	} else {
		logger.Warn("REDIS_URL not set, using in-memory stores")
		nonces = store.NewMemoryNonceStore(cfg.NonceTTL)
		revocations = store.NewMemoryRevocationStore()
	}

	opts := []service.Option{
		service.WithLogger(logger),
	}

	if cfg.EventsEnabled && redisClient != nil {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			events.NewZapLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, service.WithEventPublisher(events.NewWatermillPublisher(publisher)))
	}

	if cfg.DatabaseURL != "" {
		pool, err := accounts.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		opts = append(opts, service.WithAccountRecorder(accounts.NewPostgresRecorder(pool)))
	}

	authService := service.NewAuthService(
		nonces,
		sigVerifier,
		tokenizer.NewJWTTokenizer(signKey, cfg.SessionTTL),
		revocations,
		opts...,
	)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: transport.SetupRouter(authService, transport.RouterConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			Redis:          redisClient,
			RateLimit: transport.RateLimitConfig{
				Limit:  cfg.RateLimit,
				Window: cfg.RateWindow,
				Block:  cfg.RateBlock,
			},
		}, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("scheme", string(scheme)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func signingKey(cfg *config.Config, logger *zap.Logger) (*ecdsa.PrivateKey, error) {
	if cfg.SigningKeyPath != "" {
		return tokenizer.LoadSigningKey(cfg.SigningKeyPath)
	}
	logger.Warn("SESSION_SIGNING_KEY_PATH not set, sessions will not survive a restart")
	return tokenizer.GenerateSigningKey()
}
