package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/MarkoPoloResearchLab/marketplace/internal/config"
	"github.com/MarkoPoloResearchLab/marketplace/internal/healthserver"
	"github.com/MarkoPoloResearchLab/marketplace/internal/httpapi"
	"github.com/MarkoPoloResearchLab/marketplace/internal/notify"
	"github.com/MarkoPoloResearchLab/marketplace/internal/oplog"
	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const subscriberBufferSize = 256

func runServer(ctx context.Context, cfg config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	opened, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer opened.cleanup()

	hub := notify.NewHub(logger.Named("hub"), subscriberBufferSize)
	var (
		publisher marketplace.Publisher = hub
		relay     *notify.RedisRelay
	)
	if cfg.RedisURL != "" {
		redisClient, err := notify.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		publisher = notify.NewRedisPublisher(redisClient)
		relay = notify.NewRedisRelay(redisClient, hub, cfg.TopicPrefix, logger.Named("relay"))
	}

	service, err := marketplace.NewService(
		opened.store,
		func() time.Time { return time.Now().UTC() },
		marketplace.WithOperationLogger(oplog.New(logger.Named("marketplace"))),
		marketplace.WithPublisher(publisher),
		marketplace.WithTopicPrefix(cfg.TopicPrefix),
		marketplace.WithTransactionTimeout(cfg.TransactionTimeout),
		marketplace.WithPublishTimeout(cfg.PublishTimeout),
	)
	if err != nil {
		return fmt.Errorf("marketplace service init: %w", err)
	}

	httpCfg := httpapi.Config{
		ListenAddr:        cfg.ListenAddr,
		AllowedOrigins:    cfg.AllowedOrigins,
		SessionSigningKey: cfg.SessionSigningKey,
		SessionIssuer:     cfg.SessionIssuer,
		SessionCookieName: cfg.SessionCookieName,
		WebhookSecret:     cfg.WebhookSecret,
	}
	validator, err := httpapi.NewSessionValidator(httpCfg)
	if err != nil {
		return err
	}
	router := httpapi.NewRouter(httpCfg, service, hub, validator, logger.Named("http"))
	health := healthserver.New(opened.pinger, healthserver.WithLogger(logger.Named("health")))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httpapi.Run(groupCtx, httpCfg, router, logger)
	})
	group.Go(func() error {
		return serveHealth(groupCtx, cfg.HealthAddr, health, logger)
	})
	group.Go(func() error {
		health.Run(groupCtx)
		return nil
	})
	if relay != nil {
		group.Go(func() error {
			return relay.Run(groupCtx)
		})
	}
	return group.Wait()
}

func serveHealth(ctx context.Context, listenAddr string, health *healthserver.Server, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	grpcServer := grpc.NewServer()
	health.Register(grpcServer)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC health server starting", zap.String("listen_addr", listenAddr))
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		grpcServer.GracefulStop()
		if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return serveErr
		}
		return nil
	case serveErr := <-errCh:
		if errors.Is(serveErr, grpc.ErrServerStopped) {
			return nil
		}
		return serveErr
	}
}
