package ws

import (
	"encoding/json"
	"time"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/model"
)

type FrameType string

const (
	// client -> server
	FrameAuth        FrameType = "auth"
	FrameChat        FrameType = "chat"
	FrameReadReceipt FrameType = "read_receipt"

	// server -> client
	FrameAuthOK             FrameType = "auth_ok"
	FrameMessage            FrameType = "message"
	FramePeerKey            FrameType = "peer_key"
	FrameStatus             FrameType = "status"
	FrameFilePending        FrameType = "file_pending"
	FrameTransactionCreated FrameType = "transaction_created"
	FrameError              FrameType = "error"
)

// Frame is the wire envelope. Payloads are JSON objects under data.
type Frame struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewFrame(frameType FrameType, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: frameType, Data: data}, nil
}

// AuthPayload is the first frame a client must send. PublicKey and Signature
// are base64; the signature covers "<timestamp>:<userId>:<peerUserId>".
type AuthPayload struct {
	UserID     string `json:"userId"`
	PeerUserID string `json:"peerUserId"`
	UserName   string `json:"userName"`
	PublicKey  string `json:"publicKey"`
	Timestamp  int64  `json:"timestamp"`
	Signature  string `json:"signature"`
}

// ChatPayload carries opaque ciphertext; the server never decrypts it.
type ChatPayload struct {
	RecipientID      string `json:"recipientId"`
	EncryptedPayload string `json:"encryptedPayload"`
	SenderName       string `json:"senderName"`
}

type ReadReceiptPayload struct {
	MessageID string `json:"messageId"`
	SenderID  string `json:"senderId"`
}

type AuthOKPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// MessagePayload is a relayed chat message, either direct or flushed from the
// offline mailbox. Timestamp is the original server-assigned send time.
type MessagePayload struct {
	SenderID        string    `json:"senderId"`
	Text            string    `json:"text"`
	Timestamp       time.Time `json:"timestamp"`
	RecipientID     string    `json:"recipientId"`
	ServerMessageID string    `json:"serverMessageId"`
	SenderName      string    `json:"senderName"`
}

type PeerKeyPayload struct {
	UserID    string `json:"userId"`
	PublicKey string `json:"publicKey"`
}

type StatusPayload struct {
	MessageID string              `json:"messageId"`
	Status    model.ReceiptStatus `json:"status"`
}

type TransactionCreatedPayload struct {
	TransactionID string `json:"transactionId"`
	PartnerID     string `json:"partnerId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
