package ws

import (
	"github.com/rs/zerolog/log"
)

// Announcer delivers transaction-created notifications to live sessions.
// Offline parties simply miss the push; the transaction row is durable and
// shows up through the normal app surfaces.
type Announcer struct {
	table *Table
}

func NewAnnouncer(table *Table) *Announcer {
	return &Announcer{table: table}
}

func (a *Announcer) AnnounceTransaction(userID, partnerID, transactionID string) {
	conn, ok := a.table.Lookup(userID)
	if !ok {
		return
	}

	frame, err := NewFrame(FrameTransactionCreated, TransactionCreatedPayload{
		TransactionID: transactionID,
		PartnerID:     partnerID,
	})
	if err != nil {
		return
	}

	if err := conn.Send(frame); err != nil {
		log.Debug().
			Str("userId", userID).
			Str("transactionId", transactionID).
			Msg("transaction announcement to unreachable session")
	}
}
