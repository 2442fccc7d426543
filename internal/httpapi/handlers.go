package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MarkoPoloResearchLab/marketplace/internal/notify"
	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

type httpHandler struct {
	service  *marketplace.Service
	hub      *notify.Hub
	logger   *zap.Logger
	cfg      Config
	upgrader websocket.Upgrader
}

func (handler *httpHandler) handlePurchase(ctx *gin.Context) {
	buyerID, ok := handler.requireProfile(ctx)
	if !ok {
		return
	}
	serviceID, err := marketplace.NewServiceID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request purchaseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, errorMessageExpectedJSON))
		return
	}

	result, err := handler.service.Purchase(ctx.Request.Context(), marketplace.PurchaseRequest{
		BuyerID:        buyerID,
		ServiceID:      serviceID,
		InitialMessage: request.Message,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"reservation":  newReservationPayload(result.Reservation),
		"conversation": newConversationPayload(result.Conversation),
	})
}

func (handler *httpHandler) handleCompleteReservation(ctx *gin.Context) {
	handler.closeReservation(ctx, handler.service.CompleteReservation)
}

func (handler *httpHandler) handleCancelReservation(ctx *gin.Context) {
	handler.closeReservation(ctx, handler.service.CancelReservation)
}

type reservationTransition func(ctx context.Context, actorID marketplace.ProfileID, reservationID marketplace.ReservationID) (marketplace.Reservation, error)

func (handler *httpHandler) closeReservation(ctx *gin.Context, transition reservationTransition) {
	actorID, ok := handler.requireProfile(ctx)
	if !ok {
		return
	}
	reservationID, err := marketplace.NewReservationID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	reservation, err := transition(ctx.Request.Context(), actorID, reservationID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"reservation": newReservationPayload(reservation)})
}

func (handler *httpHandler) handleListConversations(ctx *gin.Context) {
	profileID, ok := handler.requireProfile(ctx)
	if !ok {
		return
	}
	conversations, err := handler.service.ListConversations(ctx.Request.Context(), profileID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]conversationPayload, 0, len(conversations))
	for _, conversation := range conversations {
		payloads = append(payloads, newConversationPayload(conversation))
	}
	ctx.JSON(http.StatusOK, gin.H{"conversations": payloads})
}

func (handler *httpHandler) handleGetConversation(ctx *gin.Context) {
	profileID, ok := handler.requireProfile(ctx)
	if !ok {
		return
	}
	conversationID, err := marketplace.NewConversationID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	conversation, err := handler.service.GetConversation(ctx.Request.Context(), profileID, conversationID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"conversation": newConversationPayload(conversation)})
}

func (handler *httpHandler) handleSendMessage(ctx *gin.Context) {
	senderID, ok := handler.requireProfile(ctx)
	if !ok {
		return
	}
	conversationID, err := marketplace.NewConversationID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request sendMessageRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, errorMessageExpectedJSON))
		return
	}
	message, err := handler.service.SendMessage(ctx.Request.Context(), senderID, conversationID, request.Content)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"message": newMessagePayload(message)})
}

func (handler *httpHandler) handleBalance(ctx *gin.Context) {
	profileID, ok := handler.requireProfile(ctx)
	if !ok {
		return
	}
	credits, err := handler.service.Balance(ctx.Request.Context(), profileID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"profile_id": profileID.String(),
		"credits":    credits.Int64(),
	})
}

func (handler *httpHandler) handleListOrders(ctx *gin.Context) {
	profileID, ok := handler.requireProfile(ctx)
	if !ok {
		return
	}
	orders, err := handler.service.ListOrders(ctx.Request.Context(), profileID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payloads = append(payloads, newOrderPayload(order))
	}
	ctx.JSON(http.StatusOK, gin.H{"orders": payloads})
}

func (handler *httpHandler) handleConfirmCheckout(ctx *gin.Context) {
	provided := ctx.GetHeader(webhookSecretHeader)
	if handler.cfg.WebhookSecret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(handler.cfg.WebhookSecret)) != 1 {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, errorMessageInvalidWebhook))
		return
	}
	var payload confirmCheckoutRequest
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, errorMessageExpectedJSON))
		return
	}
	request, err := payload.toDomain()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	confirmation, err := handler.service.ConfirmPayment(ctx.Request.Context(), request)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":  true,
		"order_id": confirmation.ID.String(),
	})
}

func (payload confirmCheckoutRequest) toDomain() (marketplace.PaymentConfirmationRequest, error) {
	sessionID, err := marketplace.NewPaymentSessionID(payload.SessionID)
	if err != nil {
		return marketplace.PaymentConfirmationRequest{}, err
	}
	profileID, err := marketplace.NewProfileID(payload.ProfileID)
	if err != nil {
		return marketplace.PaymentConfirmationRequest{}, err
	}
	coins, err := marketplace.NewPositiveCredits(payload.Coins)
	if err != nil {
		return marketplace.PaymentConfirmationRequest{}, err
	}
	amount, err := marketplace.NewAmountCents(payload.AmountCents)
	if err != nil {
		return marketplace.PaymentConfirmationRequest{}, err
	}
	metadata, err := marketplace.NewMetadataJSON(string(payload.Metadata))
	if err != nil {
		return marketplace.PaymentConfirmationRequest{}, err
	}
	return marketplace.PaymentConfirmationRequest{
		SessionID:   sessionID,
		ProfileID:   profileID,
		Coins:       coins,
		AmountCents: amount,
		Metadata:    metadata,
	}, nil
}

// requireProfile resolves the caller's profile from the session claims.
// It writes a 401 response and returns false when there is none.
func (handler *httpHandler) requireProfile(ctx *gin.Context) (marketplace.ProfileID, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, errorMessageMissingSession))
		return marketplace.ProfileID{}, false
	}
	profileID, err := marketplace.NewProfileID(claims.GetUserID())
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, fmt.Sprintf("session user: %v", err)))
		return marketplace.ProfileID{}, false
	}
	return profileID, true
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}
