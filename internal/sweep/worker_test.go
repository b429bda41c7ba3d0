package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/riverqueue/river"
)

type stubEscrows struct {
	mu      sync.Mutex
	pending []string
	listErr error
	checked []string
	fail    map[string]error
	funded  map[string]bool
}

func (s *stubEscrows) PendingTaskIDs(context.Context) ([]string, error) {
	return s.pending, s.listErr
}

func (s *stubEscrows) CheckFunding(_ context.Context, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = append(s.checked, taskID)
	if err := s.fail[taskID]; err != nil {
		return false, err
	}
	return s.funded[taskID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWork_ChecksEveryPendingEscrow(t *testing.T) {
	stub := &stubEscrows{
		pending: []string{"task_1", "task_2", "task_3"},
		funded:  map[string]bool{"task_2": true},
	}
	w := NewFundingSweepWorker(stub, testLogger())

	if err := w.Work(context.Background(), &river.Job[FundingSweepArgs]{}); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if len(stub.checked) != 3 {
		t.Errorf("checked %v, want all 3 pending tasks", stub.checked)
	}
}

func TestWork_OneFailureDoesNotStallTheSweep(t *testing.T) {
	stub := &stubEscrows{
		pending: []string{"task_1", "task_2", "task_3"},
		fail:    map[string]error{"task_2": errors.New("rpc timeout")},
	}
	w := NewFundingSweepWorker(stub, testLogger())

	if err := w.Work(context.Background(), &river.Job[FundingSweepArgs]{}); err != nil {
		t.Fatalf("Work returned %v, want nil despite per-task failure", err)
	}
	if len(stub.checked) != 3 {
		t.Errorf("checked %v, want the sweep to continue past the failure", stub.checked)
	}
}

func TestWork_ListFailurePropagates(t *testing.T) {
	listErr := errors.New("db down")
	stub := &stubEscrows{listErr: listErr}
	w := NewFundingSweepWorker(stub, testLogger())

	if err := w.Work(context.Background(), &river.Job[FundingSweepArgs]{}); !errors.Is(err, listErr) {
		t.Fatalf("got %v, want the list error so river retries the job", err)
	}
}
