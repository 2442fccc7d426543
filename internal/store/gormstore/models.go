package gormstore

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Profile represents the profiles table.
type Profile struct {
	ProfileID string    `gorm:"primaryKey"`
	Username  string    `gorm:"not null"`
	Credits   int64     `gorm:"not null;check:chk_profiles_credits_non_negative,credits >= 0"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (Profile) TableName() string { return "profiles" }

// Service represents the services table.
type Service struct {
	ServiceID   string    `gorm:"primaryKey"`
	OwnerID     string    `gorm:"not null;index:idx_services_owner"`
	Title       string    `gorm:"not null"`
	Cost        int64     `gorm:"not null;check:chk_services_cost_non_negative,cost >= 0"`
	IsAvailable bool      `gorm:"not null"`
	Status      string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (Service) TableName() string { return "services" }

// Reservation mirrors the reservations table.
type Reservation struct {
	ReservationID string    `gorm:"primaryKey"`
	BuyerID       string    `gorm:"not null;index:idx_reservations_buyer"`
	SellerID      string    `gorm:"not null;index:idx_reservations_seller"`
	ServiceID     string    `gorm:"not null;index:idx_reservations_service"`
	PriceTokens   int64     `gorm:"not null"`
	Status        string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (Reservation) TableName() string { return "reservations" }

// Conversation mirrors the conversations table.
type Conversation struct {
	ConversationID string    `gorm:"primaryKey"`
	BuyerID        string    `gorm:"not null;index:idx_conversations_buyer"`
	SellerID       string    `gorm:"not null;index:idx_conversations_seller"`
	ServiceID      string    `gorm:"not null"`
	ReservationID  *string   `gorm:"uniqueIndex:uniq_conversations_reservation_id"`
	Messages       []Message `gorm:"foreignKey:ConversationID;references:ConversationID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime:false;index:idx_conversations_updated"`
}

func (Conversation) TableName() string { return "conversations" }

// Message mirrors the messages table. Sequence preserves append order.
type Message struct {
	Sequence       int64     `gorm:"primaryKey;autoIncrement"`
	MessageID      string    `gorm:"not null;uniqueIndex:uniq_messages_message_id"`
	ConversationID string    `gorm:"not null;index:idx_messages_conversation"`
	SenderID       string    `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime:false"`
}

func (Message) TableName() string { return "messages" }

// PaymentConfirmation mirrors the payment_confirmations table.
type PaymentConfirmation struct {
	OrderID     string         `gorm:"primaryKey"`
	ProfileID   string         `gorm:"not null;index:idx_payment_confirmations_profile"`
	SessionID   string         `gorm:"not null;uniqueIndex:uniq_payment_confirmations_session_id"`
	AmountCents int64          `gorm:"not null"`
	Coins       int64          `gorm:"not null"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime:false"`
}

func (PaymentConfirmation) TableName() string { return "payment_confirmations" }

// Migrate creates or updates every marketplace table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Profile{},
		&Service{},
		&Reservation{},
		&Conversation{},
		&Message{},
		&PaymentConfirmation{},
	)
}
