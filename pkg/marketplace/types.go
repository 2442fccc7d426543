package marketplace

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProfileID identifies a marketplace participant.
type ProfileID struct {
	value string
}

// ServiceID identifies a service listing.
type ServiceID struct {
	value string
}

// ReservationID identifies a reservation.
type ReservationID struct {
	value string
}

// ConversationID identifies a conversation.
type ConversationID struct {
	value string
}

// MessageID identifies a message.
type MessageID struct {
	value string
}

// OrderID identifies a stored payment confirmation.
type OrderID struct {
	value string
}

// PaymentSessionID is the external checkout session identifier used for idempotency.
type PaymentSessionID struct {
	value string
}

// MetadataJSON stores arbitrary payment metadata.
type MetadataJSON struct {
	value string
}

// Credits is a non-negative credit amount.
type Credits int64

// PositiveCredits is a strictly positive credit amount.
type PositiveCredits int64

// AmountCents is a non-negative currency amount in cents.
type AmountCents int64

func normalizeIdentifier(raw string, invalid error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", invalid)
	}
	return trimmed, nil
}

// NewProfileID validates and normalizes a profile id.
func NewProfileID(raw string) (ProfileID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidProfileID)
	if err != nil {
		return ProfileID{}, err
	}
	return ProfileID{value: value}, nil
}

// String returns the normalized identifier.
func (id ProfileID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id ProfileID) IsZero() bool {
	return id.value == ""
}

// NewServiceID validates and normalizes a service id.
func NewServiceID(raw string) (ServiceID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidServiceID)
	if err != nil {
		return ServiceID{}, err
	}
	return ServiceID{value: value}, nil
}

// String returns the normalized identifier.
func (id ServiceID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id ServiceID) IsZero() bool {
	return id.value == ""
}

// NewReservationID validates and normalizes a reservation id.
func NewReservationID(raw string) (ReservationID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidReservationID)
	if err != nil {
		return ReservationID{}, err
	}
	return ReservationID{value: value}, nil
}

// String returns the normalized identifier.
func (id ReservationID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id ReservationID) IsZero() bool {
	return id.value == ""
}

// NewConversationID validates and normalizes a conversation id.
func NewConversationID(raw string) (ConversationID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidConversationID)
	if err != nil {
		return ConversationID{}, err
	}
	return ConversationID{value: value}, nil
}

// String returns the normalized identifier.
func (id ConversationID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id ConversationID) IsZero() bool {
	return id.value == ""
}

// NewMessageID validates and normalizes a message id.
func NewMessageID(raw string) (MessageID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidMessageID)
	if err != nil {
		return MessageID{}, err
	}
	return MessageID{value: value}, nil
}

// String returns the normalized identifier.
func (id MessageID) String() string {
	return id.value
}

// NewOrderID validates and normalizes an order id.
func NewOrderID(raw string) (OrderID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidOrderID)
	if err != nil {
		return OrderID{}, err
	}
	return OrderID{value: value}, nil
}

// String returns the normalized identifier.
func (id OrderID) String() string {
	return id.value
}

// NewPaymentSessionID validates and normalizes a checkout session id.
func NewPaymentSessionID(raw string) (PaymentSessionID, error) {
	value, err := normalizeIdentifier(raw, ErrInvalidPaymentSessionID)
	if err != nil {
		return PaymentSessionID{}, err
	}
	return PaymentSessionID{value: value}, nil
}

// String returns the normalized identifier.
func (id PaymentSessionID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id PaymentSessionID) IsZero() bool {
	return id.value == ""
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob, "{}" when unset.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return "{}"
	}
	return metadata.value
}

// NewCredits validates a credit amount and ensures it is not negative.
func NewCredits(raw int64) (Credits, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidCredits)
	}
	return Credits(raw), nil
}

// Int64 returns the raw amount.
func (credits Credits) Int64() int64 {
	return int64(credits)
}

// NewPositiveCredits validates a credit amount and ensures it is strictly positive.
func NewPositiveCredits(raw int64) (PositiveCredits, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidCredits)
	}
	return PositiveCredits(raw), nil
}

// ToCredits converts to the non-negative representation.
func (credits PositiveCredits) ToCredits() Credits {
	return Credits(credits)
}

// Int64 returns the raw amount.
func (credits PositiveCredits) Int64() int64 {
	return int64(credits)
}

// NewAmountCents validates a cents amount and ensures it is not negative.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// Int64 returns the raw amount.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// ServiceStatus is the publication state of a listing.
type ServiceStatus string

const (
	ServiceStatusDraft         ServiceStatus = "draft"
	ServiceStatusPendingReview ServiceStatus = "pending_review"
	ServiceStatusPublished     ServiceStatus = "published"
	ServiceStatusArchived      ServiceStatus = "archived"
)

// ParseServiceStatus validates a stored status value.
func ParseServiceStatus(raw string) (ServiceStatus, error) {
	switch status := ServiceStatus(strings.TrimSpace(raw)); status {
	case ServiceStatusDraft, ServiceStatusPendingReview, ServiceStatusPublished, ServiceStatusArchived:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidServiceStatus, raw)
	}
}

// ReservationStatus defines reservation lifecycle.
type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCanceled  ReservationStatus = "canceled"
)

// ParseReservationStatus validates a stored status value.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch status := ReservationStatus(strings.TrimSpace(raw)); status {
	case ReservationStatusReserved, ReservationStatusCompleted, ReservationStatusCanceled:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (status ReservationStatus) IsTerminal() bool {
	return status == ReservationStatusCompleted || status == ReservationStatusCanceled
}

// CanTransitionTo reports whether status may move to next.
// Only reserved reservations move, and only to a terminal status.
func (status ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	return status == ReservationStatusReserved && next.IsTerminal()
}
