package model

import "time"

// DeliveryReceipt tracks the delivery state of one message for one recipient.
// Status only ever moves forward: sent -> delivered -> read.
type DeliveryReceipt struct {
	MessageID       string        `db:"message_id" json:"messageId"`
	RecipientID     string        `db:"recipient_id" json:"recipientId"`
	SenderID        string        `db:"sender_id" json:"senderId"`
	Status          ReceiptStatus `db:"status" json:"status"`
	StatusChangedAt time.Time     `db:"status_changed_at" json:"statusChangedAt"`
	ReceivedAt      time.Time     `db:"received_at" json:"receivedAt"`
}
