package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

type recordStep struct {
	name  string
	calls *[]string
	err   error
	done  bool
}

func (s *recordStep) Execute(ctx context.Context, state *PipelineState) error {
	*s.calls = append(*s.calls, s.name)
	if s.done {
		state.Done = true
	}
	return s.err
}

func TestPipeline_Execute(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		steps     func(calls *[]string) []PipelineStep
		wantCalls string
		wantErr   string
	}{
		{
			name: "all steps run in order",
			steps: func(calls *[]string) []PipelineStep {
				return []PipelineStep{&recordStep{name: "a", calls: calls}, &recordStep{name: "b", calls: calls}}
			},
			wantCalls: "a,b",
		},
		{
			name: "failure stops and names the step",
			steps: func(calls *[]string) []PipelineStep {
				return []PipelineStep{
					&recordStep{name: "a", calls: calls},
					&recordStep{name: "b", calls: calls, err: boom},
					&recordStep{name: "c", calls: calls},
				}
			},
			wantCalls: "a,b",
			wantErr:   "pipeline step 2 failed: boom",
		},
		{
			name: "done stops without error",
			steps: func(calls *[]string) []PipelineStep {
				return []PipelineStep{
					&recordStep{name: "a", calls: calls, done: true},
					&recordStep{name: "b", calls: calls},
				}
			},
			wantCalls: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			err := NewPipeline(tt.steps(&calls)...).Execute(context.Background(), &PipelineState{})
			if got := strings.Join(calls, ","); got != tt.wantCalls {
				t.Errorf("calls = %q, want %q", got, tt.wantCalls)
			}
			if tt.wantErr == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				if !errors.Is(err, boom) {
					t.Error("error should wrap the step error")
				}
			}
		})
	}
}

func TestReadAndParseSteps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mail")
	content := "id-1\nsender\nVendor Item Purchased\nTIMESTAMP: 1709251200\n" +
		`You have won the auction of "Blood Sample" from "Junk Dealer" for 40 credits.` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	state := &PipelineState{Path: path}
	if err := (&ReadMailStep{}).Execute(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	if len(state.Checksum) != 64 || state.MTime == 0 {
		t.Errorf("checksum %q mtime %d", state.Checksum, state.MTime)
	}
	if err := (&ParseMailStep{}).Execute(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	if state.Done || state.Event.Kind != domain.EventPurchase || state.Event.Amount != 40 {
		t.Errorf("state = %+v", state)
	}

	state = &PipelineState{Content: []byte("hello\nnot a vendor mail\n")}
	if err := (&ParseMailStep{}).Execute(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	if !state.Done {
		t.Error("unrelated mail should end the pipeline")
	}
}

func TestDiscoverMailFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mail", "a.MAIL", "notes.txt", filepath.Join("sub", "c.mail")} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := DiscoverMailFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "a.MAIL"),
		filepath.Join(dir, "b.mail"),
		filepath.Join(dir, "sub", "c.mail"),
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("got %v, want %v", got, want)
	}

	single, err := DiscoverMailFiles(filepath.Join(dir, "notes.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(single) != 1 {
		t.Errorf("single file target = %v", single)
	}

	if _, err := DiscoverMailFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing target")
	}
}
