package execution

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "actions.db"), filepath.Join(dir, "actions.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSaveGetList(t *testing.T) {
	store := openTestStore(t)

	rec := NewRecord(action.KindSwap, "simulator", "1")
	rec.AlertID = "alert-1"
	rec.Calls = append(rec.Calls, Call{
		StepID:  "swap",
		Type:    CallTypeSwap,
		ChainID: "1",
		Target:  "0x0000000000000000000000000000000000000001",
		Data:    "0x",
		Value:   "0",
	})
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(rec.ActionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Kind != action.KindSwap || len(got.Calls) != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}

	got.Status = StatusCompleted
	if err := store.Save(got); err != nil {
		t.Fatalf("Save update failed: %v", err)
	}
	completed, err := store.List(string(StatusCompleted), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected one completed action, got %d", len(completed))
	}
	planned, err := store.List(string(StatusPlanned), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(planned) != 0 {
		t.Fatalf("expected update to replace planned row, got %d", len(planned))
	}
}

func TestStoreListByAlert(t *testing.T) {
	store := openTestStore(t)
	for _, alert := range []string{"a", "a", "b"} {
		rec := NewRecord(action.KindRevoke, "simulator", "1")
		rec.AlertID = alert
		if err := store.Save(rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	got, err := store.ListByAlert("a")
	if err != nil {
		t.Fatalf("ListByAlert failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two records for alert a, got %d", len(got))
	}
	all, err := store.List("", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected three records, got %d err=%v", len(all), err)
	}
}

func TestStoreRejectsMissingIDAndUnknownGet(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(Record{}); err == nil {
		t.Fatal("expected missing action id error")
	}
	if _, err := store.Get("missing"); err == nil {
		t.Fatal("expected missing action error")
	}
}

func TestRecordPlainText(t *testing.T) {
	rec := Record{ActionID: "act_1", Kind: action.KindRevoke, Status: StatusFailed, ChainID: "1", Error: "transaction reverted"}
	want := `act_1 revoke failed chain=1 calls=0 error="transaction reverted"`
	if got := rec.PlainText(); got != want {
		t.Fatalf("unexpected plain text:\n got %s\nwant %s", got, want)
	}
	rec.Status = StatusCompleted
	rec.Error = ""
	rec.TxHash = "0xabc"
	rec.Calls = []Call{{StepID: "revoke"}}
	if got := rec.PlainText(); got != "act_1 revoke completed chain=1 calls=1 tx=0xabc" {
		t.Fatalf("unexpected plain text: %s", got)
	}
}

func TestStoreSummaryAndPrune(t *testing.T) {
	store := openTestStore(t)
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	seed := []struct {
		kind    action.Kind
		status  Status
		updated string
	}{
		{action.KindRevoke, StatusCompleted, old},
		{action.KindRevoke, StatusCompleted, ""},
		{action.KindRevoke, StatusFailed, ""},
		{action.KindSwap, StatusCompleted, ""},
	}
	for _, s := range seed {
		rec := NewRecord(s.kind, "simulator", "1")
		rec.Status = s.status
		if s.updated != "" {
			rec.CreatedAt, rec.UpdatedAt = s.updated, s.updated
		}
		if err := store.Save(rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	tallies, err := store.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(tallies) != 3 {
		t.Fatalf("expected three groups, got %+v", tallies)
	}
	if tallies[0].Kind != action.KindRevoke || tallies[0].Status != StatusCompleted || tallies[0].Count != 2 {
		t.Fatalf("unexpected first tally: %+v", tallies[0])
	}

	removed, err := store.Prune(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one pruned record, got %d", removed)
	}
	all, err := store.List("", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected three remaining records, got %d err=%v", len(all), err)
	}
}

func TestStoreConcurrentOpenAndSave(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "actions.db")
	lockPath := filepath.Join(dir, "actions.lock")

	const workers = 16
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			store, err := OpenStore(dbPath, lockPath)
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", workerID, err)
				return
			}
			defer store.Close()

			rec := NewRecord(action.KindMonitor, "simulator", "1")
			rec.AlertID = fmt.Sprintf("alert-%d", workerID)
			rec.Status = StatusCompleted
			if err := store.Save(rec); err != nil {
				errCh <- fmt.Errorf("worker %d save: %w", workerID, err)
			}
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}

	store, err := OpenStore(dbPath, lockPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	tallies, err := store.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	total := 0
	for _, tally := range tallies {
		total += tally.Count
	}
	if total != workers {
		t.Fatalf("expected %d journaled actions, got %d", workers, total)
	}
}
