package pipeline

import (
	"context"

	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
)

// Ledger applies per-file reconciliation decisions and records runs.
// *sqlite.Store is the production implementation.
type Ledger interface {
	ApplyMail(ctx context.Context, in sqlite.MailInput) (domain.ApplyResult, error)
	StartRun(ctx context.Context, source string) (string, error)
	FinishRun(ctx context.Context, runID string, counts domain.RunCounts, runErr error) error
}

// Enricher sets profession and category on a parsed event.
// *classifier.Classifier is the production implementation.
type Enricher interface {
	Enrich(ev *domain.MailEvent)
}
