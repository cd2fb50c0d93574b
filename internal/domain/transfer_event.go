package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferEvent is the message published for every transfer outcome. Other
// systems (statement generation, fraud monitoring) consume these off the
// durable topic exchange.
type TransferEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	SourceIBAN string    `json:"source_iban"`
	DestIBAN   string    `json:"dest_iban"`
	Amount     int64     `json:"amount"`  // in cents
	Outcome    string    `json:"outcome"` // 'completed', 'failed'
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
