package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
	"github.com/dvloznov/swg-merchant/internal/parser"
)

// PipelineStep represents a single step in the per-file ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all steps for one file.
type PipelineState struct {
	Path  string // absolute
	RunID string

	Content  []byte
	MTime    int64
	Checksum string

	Event  domain.MailEvent
	Result domain.ApplyResult

	// Done stops the pipeline without error, e.g. for mail that is not a vendor transaction.
	Done bool
}

// Step 1: ReadMailStep reads the file and records its mtime and checksum.
type ReadMailStep struct{}

func (s *ReadMailStep) Execute(ctx context.Context, state *PipelineState) error {
	info, err := os.Stat(state.Path)
	if err != nil {
		return fmt.Errorf("ReadMailStep: stat: %w", err)
	}
	content, err := os.ReadFile(state.Path)
	if err != nil {
		return fmt.Errorf("ReadMailStep: read: %w", err)
	}
	sum := sha256.Sum256(content)
	state.Content = content
	state.MTime = info.ModTime().Unix()
	state.Checksum = hex.EncodeToString(sum[:])
	return nil
}

// Step 2: ParseMailStep turns the content into an event. Unrelated mail ends the pipeline.
type ParseMailStep struct{}

func (s *ParseMailStep) Execute(ctx context.Context, state *PipelineState) error {
	ev, err := parser.Parse(state.Content)
	if err != nil {
		return fmt.Errorf("ParseMailStep: %w", err)
	}
	if ev.Kind == domain.EventNone {
		state.Done = true
		return nil
	}
	state.Event = ev
	return nil
}

// Step 3: ClassifyStep derives profession and category.
type ClassifyStep struct {
	Classifier Enricher
}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	s.Classifier.Enrich(&state.Event)
	return nil
}

// Step 4: ReconcileStep hands the event to the ledger.
type ReconcileStep struct {
	Ledger Ledger
}

func (s *ReconcileStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Ledger.ApplyMail(ctx, sqlite.MailInput{
		Path:     state.Path,
		MTime:    state.MTime,
		Checksum: state.Checksum,
		RunID:    state.RunID,
		Event:    state.Event,
	})
	if err != nil {
		return fmt.Errorf("ReconcileStep: %w", err)
	}
	state.Result = res
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs the steps sequentially until one fails or marks the state done.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		if state.Done {
			return nil
		}
	}
	return nil
}

// NewMailIngestionPipeline creates the standard 4-step pipeline for one mail file.
func NewMailIngestionPipeline(ledger Ledger, classifier Enricher) *Pipeline {
	return NewPipeline(
		&ReadMailStep{},
		&ParseMailStep{},
		&ClassifyStep{Classifier: classifier},
		&ReconcileStep{Ledger: ledger},
	)
}
