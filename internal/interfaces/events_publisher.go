package interfaces

import (
	"context"

	"github.com/sheikh-saqib/store-credit-ledger/internal/models/events"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.LedgerEvent) error
}
