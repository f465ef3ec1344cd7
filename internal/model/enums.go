package model

type ReceiptStatus string

const (
	ReceiptStatusSent      ReceiptStatus = "sent"
	ReceiptStatusDelivered ReceiptStatus = "delivered"
	ReceiptStatusRead      ReceiptStatus = "read"
)

// Rank orders receipt statuses. A receipt never moves to a lower rank.
func (s ReceiptStatus) Rank() int {
	switch s {
	case ReceiptStatusSent:
		return 1
	case ReceiptStatusDelivered:
		return 2
	case ReceiptStatusRead:
		return 3
	default:
		return 0
	}
}

func (s ReceiptStatus) Valid() bool {
	return s.Rank() > 0
}
