package marketplace

import "time"

const (
	operationPurchase            = "purchase"
	operationCompleteReservation = "complete_reservation"
	operationCancelReservation   = "cancel_reservation"
	operationSendMessage         = "send_message"
	operationConfirmPayment      = "confirm_payment"
	operationNotify              = "notify"
)

const (
	operationStatusOK    = "ok"
	operationStatusError = "error"
)

const (
	eventTypeNotification     = "notification"
	eventConversationCreated  = "conversation.created"
	eventMessageCreated       = "message.created"
	eventReservationCreated   = "reservation.created"
	eventReservationCompleted = "reservation.completed"
	eventReservationCanceled  = "reservation.canceled"
	eventPaymentConfirmed     = "payment.confirmed"
)

const (
	// DefaultTopicPrefix is prepended to every notification topic.
	DefaultTopicPrefix = "https://lumeo.app/"

	profileTopicFormat      = "%sprofiles/%s/notifications"
	conversationTopicFormat = "%sconversations/%s"
)

const (
	defaultTransactionTimeout = 5 * time.Second
	defaultPublishTimeout     = 2 * time.Second

	messageTimestampLayout = time.RFC3339
)

const (
	errorOperationGenerate = "generate_id"
	errorSubjectIdentifier = "identifier"
	errorCodeEmpty         = "empty"
)
