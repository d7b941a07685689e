package domain

import "time"

// LedgerState is the reconciliation state of one source file.
type LedgerState string

const (
	StateUnseen         LedgerState = "UNSEEN"
	StateSeenComplete   LedgerState = "SEEN_COMPLETE"
	StateSeenIncomplete LedgerState = "SEEN_INCOMPLETE"
	StateChanged        LedgerState = "CHANGED"
)

// IngestionRecord is the bookkeeping row for one processed source file.
// Exactly one of SaleID and PurchaseID is non-zero.
type IngestionRecord struct {
	ID         int64
	MailID     string
	FilePath   string // absolute; the dedup key
	FileMTime  int64  // unix seconds
	Checksum   string // sha256 of the file content, hex
	InsertedAt time.Time
	RunID      string
	SaleID     int64
	PurchaseID int64
}

// Action is what the ledger did with one encountered file.
type Action string

const (
	ActionInserted  Action = "inserted"  // new transaction row
	ActionLinked    Action = "linked"    // new path attached to an existing matching transaction
	ActionCompleted Action = "completed" // missing fields recovered in place
	ActionUpdated   Action = "updated"   // changed file re-applied in place
	ActionSkipped   Action = "skipped"   // unchanged, nothing to do
)

// ApplyResult reports the ledger decision for one file.
type ApplyResult struct {
	Action     Action
	State      LedgerState // state after the decision
	SaleID     int64
	PurchaseID int64
}

// Run statuses recorded in ingest_runs.
const (
	RunRunning = "RUNNING"
	RunSuccess = "SUCCESS"
	RunPartial = "PARTIAL"
)

// RunCounts tallies what one ingestion pass did, one counter per outcome.
type RunCounts struct {
	Seen      int
	Inserted  int
	Linked    int
	Completed int
	Updated   int
	Skipped   int
	Ignored   int // files with no vendor transaction
	Failed    int
}

// Add counts one ledger action.
func (c *RunCounts) Add(a Action) {
	switch a {
	case ActionInserted:
		c.Inserted++
	case ActionLinked:
		c.Linked++
	case ActionCompleted:
		c.Completed++
	case ActionUpdated:
		c.Updated++
	case ActionSkipped:
		c.Skipped++
	}
}

// IngestRun is one recorded ingestion pass.
type IngestRun struct {
	ID           string
	Source       string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while running
	Status       string
	Counts       RunCounts
	ErrorMessage string
}
