package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorCodeUnauthorized      = "unauthorized"
	errorCodeAccessDenied      = "access_denied"
	errorCodeInvalidPayload    = "invalid_payload"
	errorCodeInvalidRequest    = "invalid_request"
	errorCodeInternal          = "internal_error"
	errorMessageMissingSession = "missing session"
	errorMessageInternal       = "internal error"
	errorMessageExpectedJSON   = "expected JSON body"
	errorMessageInvalidWebhook = "invalid webhook secret"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: the first matching sentinel wins.
var errorMappings = []errorMapping{
	{target: marketplace.ErrUnauthenticated, status: http.StatusUnauthorized, code: errorCodeUnauthorized},
	{target: marketplace.ErrAccessDenied, status: http.StatusForbidden, code: errorCodeAccessDenied},
	{target: marketplace.ErrUnknownProfile, status: http.StatusNotFound, code: "unknown_profile"},
	{target: marketplace.ErrUnknownService, status: http.StatusNotFound, code: "unknown_service"},
	{target: marketplace.ErrUnknownReservation, status: http.StatusNotFound, code: "unknown_reservation"},
	{target: marketplace.ErrUnknownConversation, status: http.StatusNotFound, code: "unknown_conversation"},
	{target: marketplace.ErrSelfPurchase, status: http.StatusBadRequest, code: "self_purchase"},
	{target: marketplace.ErrServiceNotPublished, status: http.StatusBadRequest, code: "service_not_published"},
	{target: marketplace.ErrEmptyContent, status: http.StatusBadRequest, code: "empty_content"},
	{target: marketplace.ErrInsufficientCredits, status: http.StatusPaymentRequired, code: "insufficient_credits"},
	{target: marketplace.ErrLockTimeout, status: http.StatusConflict, code: "lock_timeout"},
	{target: marketplace.ErrServiceUnavailable, status: http.StatusConflict, code: "service_unavailable"},
	{target: marketplace.ErrAvailabilityConflict, status: http.StatusConflict, code: "service_unavailable"},
	{target: marketplace.ErrInvalidReservationState, status: http.StatusConflict, code: "invalid_reservation_state"},
	{target: marketplace.ErrPaymentAlreadyConfirmed, status: http.StatusConflict, code: "payment_already_confirmed"},
}

var invalidInputErrors = []error{
	marketplace.ErrInvalidProfileID,
	marketplace.ErrInvalidServiceID,
	marketplace.ErrInvalidReservationID,
	marketplace.ErrInvalidConversationID,
	marketplace.ErrInvalidPaymentSessionID,
	marketplace.ErrInvalidCredits,
	marketplace.ErrInvalidAmountCents,
	marketplace.ErrInvalidMetadataJSON,
}

func classifyError(err error) (int, string) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return mapping.status, mapping.code
		}
	}
	for _, invalid := range invalidInputErrors {
		if errors.Is(err, invalid) {
			return http.StatusBadRequest, errorCodeInvalidRequest
		}
	}
	return http.StatusInternalServerError, errorCodeInternal
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	status, code := classifyError(err)
	if status == http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(status, errorResponse(code, errorMessageInternal))
		return
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
