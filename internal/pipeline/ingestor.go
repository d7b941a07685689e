package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/logger"
	"github.com/dvloznov/swg-merchant/internal/parser"
)

// Summary reports one ingestion pass.
type Summary struct {
	RunID       string
	Counts      domain.RunCounts
	FailedPaths []string
}

// Ingestor drives the per-file pipeline over a set of files, one at a time.
type Ingestor struct {
	ledger   Ledger
	pipeline *Pipeline
}

// NewIngestor creates an Ingestor writing through ledger and classifying with c.
func NewIngestor(ledger Ledger, c Enricher) *Ingestor {
	return &Ingestor{
		ledger:   ledger,
		pipeline: NewMailIngestionPipeline(ledger, c),
	}
}

// Run ingests paths in lexicographic order. A failing file is logged and
// counted; it never stops the run. The returned error is only set when the
// run itself could not be recorded or the context was cancelled.
func (in *Ingestor) Run(ctx context.Context, source string, paths []string) (Summary, error) {
	log := logger.FromContext(ctx)

	sorted, err := absSorted(paths)
	if err != nil {
		return Summary{}, fmt.Errorf("Run: %w", err)
	}

	runID, err := in.ledger.StartRun(ctx, source)
	if err != nil {
		return Summary{}, fmt.Errorf("Run: start run: %w", err)
	}
	log = log.With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	sum := Summary{RunID: runID}
	var runErr error
	for _, path := range sorted {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		sum.Counts.Seen++

		state := &PipelineState{Path: path, RunID: runID}
		if err := in.pipeline.Execute(ctx, state); err != nil {
			sum.Counts.Failed++
			sum.FailedPaths = append(sum.FailedPaths, path)
			ev := log.Warn().Err(err).Str("path", path)
			if errors.Is(err, parser.ErrMalformed) {
				ev = ev.Bool("malformed", true)
			}
			ev.Msg("skipping file")
			continue
		}
		if state.Done {
			sum.Counts.Ignored++
			log.Debug().Str("path", path).Msg("not a vendor transaction")
			continue
		}

		sum.Counts.Add(state.Result.Action)
		log.Debug().
			Str("path", path).
			Str("action", string(state.Result.Action)).
			Str("state", string(state.Result.State)).
			Msg("applied")
	}

	if err := in.ledger.FinishRun(context.WithoutCancel(ctx), runID, sum.Counts, runErr); err != nil {
		return sum, fmt.Errorf("Run: finish run: %w", err)
	}

	c := sum.Counts
	log.Info().
		Int("seen", c.Seen).
		Int("inserted", c.Inserted).
		Int("linked", c.Linked).
		Int("completed", c.Completed).
		Int("updated", c.Updated).
		Int("skipped", c.Skipped).
		Int("ignored", c.Ignored).
		Int("failed", c.Failed).
		Msg("ingestion finished")

	if runErr != nil {
		return sum, fmt.Errorf("Run: %w", runErr)
	}
	return sum, nil
}

func absSorted(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("absolute path of %q: %w", p, err)
		}
		out = append(out, abs)
	}
	sort.Strings(out)
	return out, nil
}
