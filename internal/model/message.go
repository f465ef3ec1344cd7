package model

import "time"

// OfflineMessage is a chat message whose recipient had no live session at send
// time. The payload is opaque ciphertext; the server never inspects it.
type OfflineMessage struct {
	ID          string     `db:"id" json:"id"`
	SenderID    string     `db:"sender_id" json:"senderId"`
	RecipientID string     `db:"recipient_id" json:"recipientId"`
	SenderName  string     `db:"sender_name" json:"senderName"`
	Payload     string     `db:"payload" json:"payload"`
	SentAt      time.Time  `db:"sent_at" json:"sentAt"`
	Delivered   bool       `db:"delivered" json:"delivered"`
	StoredAt    time.Time  `db:"stored_at" json:"storedAt"`
	DeliveredAt *time.Time `db:"delivered_at" json:"deliveredAt,omitempty"`
}

type CreateOfflineMessageParams struct {
	ID          string
	SenderID    string
	RecipientID string
	SenderName  string
	Payload     string
	SentAt      time.Time
}
