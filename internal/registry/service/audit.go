package service

import (
	"context"

	"github.com/jmerrifield20/mcptrust/internal/trustledger"
	"go.uber.org/zap"
)

// Auditor appends ownership events to the audit ledger.
// *trustledger.MemoryLedger and *trustledger.PostgresLedger satisfy it.
type Auditor interface {
	Append(ctx context.Context, domain, action, actor string, payload any) (*trustledger.Entry, error)
}

// audit records an event. A ledger failure is logged and never fails the
// operation that triggered it.
func audit(ctx context.Context, a Auditor, logger *zap.Logger, domain, action, actor string, payload any) {
	if a == nil {
		return
	}
	if actor == "" {
		actor = trustledger.SystemActor
	}
	if _, err := a.Append(ctx, domain, action, actor, payload); err != nil {
		logger.Warn("audit ledger append failed",
			zap.String("domain", domain),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
