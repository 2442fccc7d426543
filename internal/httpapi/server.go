// Package httpapi exposes the marketplace engine over HTTP and websockets.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/marketplace/internal/notify"
	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	claimsContextKey    = "auth_claims"
	webhookSecretHeader = "X-Webhook-Secret"
	shutdownGracePeriod = 5 * time.Second
	readHeaderTimeout   = 10 * time.Second
)

// Config carries the HTTP-facing settings.
type Config struct {
	ListenAddr        string
	AllowedOrigins    []string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string
	WebhookSecret     string
}

// NewSessionValidator builds the tauth session validator for cfg.
func NewSessionValidator(cfg Config) (*sessionvalidator.Validator, error) {
	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return nil, fmt.Errorf("session validator: %w", err)
	}
	return validator, nil
}

// Run serves router on cfg.ListenAddr until ctx is canceled.
func Run(ctx context.Context, cfg Config, router http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter wires every marketplace route.
func NewRouter(cfg Config, service *marketplace.Service, hub *notify.Hub, validator *sessionvalidator.Validator, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := &httpHandler{
		service:  service,
		hub:      hub,
		logger:   logger,
		cfg:      cfg,
		upgrader: newUpgrader(cfg.AllowedOrigins),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/api/payment/confirm-checkout", handler.handleConfirmCheckout)

	api := router.Group("/api")
	api.Use(validator.GinMiddleware(claimsContextKey))

	api.POST("/services/:id/purchase", handler.handlePurchase)
	api.POST("/reservations/:id/complete", handler.handleCompleteReservation)
	api.POST("/reservations/:id/cancel", handler.handleCancelReservation)
	api.GET("/conversations", handler.handleListConversations)
	api.GET("/conversations/:id", handler.handleGetConversation)
	api.POST("/conversations/:id/messages", handler.handleSendMessage)
	api.GET("/profile/balance", handler.handleBalance)
	api.GET("/myorders", handler.handleListOrders)
	api.GET("/stream", handler.handleStream)

	return router
}
