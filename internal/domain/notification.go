package domain

import (
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func ParseChannel(s string) (Channel, error) {
	switch s {
	case "email", "Email", "EMAIL":
		return ChannelEmail, nil
	case "sms", "SMS", "Sms":
		return ChannelSMS, nil
	}
	return "", ErrInvalidStatus
}

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

type Notification struct {
	ID         string             `json:"id" gorm:"primaryKey;type:char(36)"`
	OrderID    string             `json:"orderId" gorm:"size:36;index"`
	Recipient  string             `json:"recipient" gorm:"size:255;not null"`
	Channel    Channel            `json:"channel" gorm:"size:8;not null"`
	Body       string             `json:"body" gorm:"type:text"`
	Status     NotificationStatus `json:"status" gorm:"size:16;not null;index"`
	RetryCount int                `json:"retryCount"`
	LastError  string             `json:"lastError,omitempty" gorm:"size:512"`
	SentAt     *time.Time         `json:"sentAt,omitempty"`
	CreatedAt  time.Time          `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt  time.Time          `json:"updatedAt" gorm:"autoUpdateTime"`
}

func NewNotification(orderID, recipient string, ch Channel, body string) *Notification {
	now := time.Now().UTC()
	return &Notification{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Recipient: recipient,
		Channel:   ch,
		Body:      body,
		Status:    NotificationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (n *Notification) Terminal() bool {
	return n.Status == NotificationSent || n.Status == NotificationFailed
}
