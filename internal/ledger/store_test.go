package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"scribe/internal/extract"
	"scribe/internal/ledger"
	"scribe/internal/media"
	"scribe/internal/testsupport"
)

func newItem(source, locator string) extract.Item {
	return extract.Item{
		SourceID:     source,
		Kind:         media.KindAudio,
		Locator:      locator,
		DiscoveredAt: time.Now().UTC(),
	}
}

func TestCheckAndReserveAdmitsNewKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	item := newItem("/inbox/a.mp3", "/inbox/a.mp3")
	decision, err := store.CheckAndReserve(ctx, item)
	if err != nil {
		t.Fatalf("CheckAndReserve failed: %v", err)
	}
	if decision != ledger.Admitted {
		t.Fatalf("expected Admitted, got %s", decision)
	}

	record, err := store.Get(ctx, item.Key())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record == nil || record.Status != ledger.StatusPending {
		t.Fatalf("expected pending record, got %+v", record)
	}
	if record.Locator != item.Locator || record.SourceID != item.SourceID {
		t.Fatalf("record identity mismatch: %+v", record)
	}
}

func TestConcurrentReserveSameKeyAdmitsExactlyOne(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	item := newItem("evt-9", "https://cdn.example.com/a.mp3")

	const callers = 8
	decisions := make([]ledger.Decision, callers)
	errs := make([]error, callers)

	var start sync.WaitGroup
	var done sync.WaitGroup
	start.Add(1)
	for i := 0; i < callers; i++ {
		done.Add(1)
		go func(idx int) {
			defer done.Done()
			start.Wait()
			decisions[idx], errs[idx] = store.CheckAndReserve(ctx, item)
		}(i)
	}
	start.Done()
	done.Wait()

	admitted := 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		switch decisions[i] {
		case ledger.Admitted:
			admitted++
		case ledger.AlreadyPending:
		default:
			t.Fatalf("caller %d got unexpected decision %s", i, decisions[i])
		}
	}
	if admitted != 1 {
		t.Fatalf("expected exactly one admission, got %d", admitted)
	}
}

func TestConcurrentReserveDistinctKeysAllAdmitted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	const keys = 6
	decisions := make([]ledger.Decision, keys)
	errs := make([]error, keys)

	var wg sync.WaitGroup
	for i := 0; i < keys; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			item := newItem("evt", fmt.Sprintf("https://cdn.example.com/%d.mp3", idx))
			decisions[idx], errs[idx] = store.CheckAndReserve(ctx, item)
		}(i)
	}
	wg.Wait()

	for i := 0; i < keys; i++ {
		if errs[i] != nil {
			t.Fatalf("key %d failed: %v", i, errs[i])
		}
		if decisions[i] != ledger.Admitted {
			t.Fatalf("key %d expected Admitted, got %s", i, decisions[i])
		}
	}
}

func TestDoneIsMonotone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	item := newItem("/inbox/b.mp3", "/inbox/b.mp3")
	if _, err := store.CheckAndReserve(ctx, item); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.MarkDone(ctx, item.Key()); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	decision, err := store.CheckAndReserve(ctx, item)
	if err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
	if decision != ledger.AlreadyProcessed {
		t.Fatalf("done key must not re-admit, got %s", decision)
	}

	// MarkFailed after done must not demote the record.
	if err := store.MarkFailed(ctx, item.Key(), errors.New("late failure")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	record, err := store.Get(ctx, item.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != ledger.StatusDone {
		t.Fatalf("done record demoted to %s", record.Status)
	}
}

func TestFailedDoesNotReadmitWithinSameRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	item := newItem("/inbox/c.mp3", "/inbox/c.mp3")
	if _, err := store.CheckAndReserve(ctx, item); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.MarkFailed(ctx, item.Key(), errors.New("backend failure")); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	decision, err := store.CheckAndReserve(ctx, item)
	if err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
	if decision != ledger.AlreadyProcessed {
		t.Fatalf("in-run retry must be refused, got %s", decision)
	}
}

func TestFailedReadmitsOnceAfterRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	item := newItem("/inbox/d.mp3", "/inbox/d.mp3")

	store := testsupport.MustOpenLedger(t, cfg)
	if _, err := store.CheckAndReserve(ctx, item); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.MarkFailed(ctx, item.Key(), errors.New("backend failure")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close first store: %v", err)
	}

	// Simulated restart: a fresh store over the same database file.
	restarted := testsupport.MustOpenLedger(t, cfg)

	decision, err := restarted.CheckAndReserve(ctx, item)
	if err != nil {
		t.Fatalf("post-restart reserve: %v", err)
	}
	if decision != ledger.Admitted {
		t.Fatalf("failed key should re-admit once after restart, got %s", decision)
	}
	if err := restarted.MarkFailed(ctx, item.Key(), errors.New("failed again")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	decision, err = restarted.CheckAndReserve(ctx, item)
	if err != nil {
		t.Fatalf("second post-restart reserve: %v", err)
	}
	if decision != ledger.AlreadyProcessed {
		t.Fatalf("retry budget must be spent after one re-admission, got %s", decision)
	}

	record, err := restarted.Get(ctx, item.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Attempts != 2 {
		t.Fatalf("expected 2 attempts recorded, got %d", record.Attempts)
	}
}

func TestCrashedPendingRecordsReadmitOnOpen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	item := newItem("/inbox/e.mp3", "/inbox/e.mp3")

	store := testsupport.MustOpenLedger(t, cfg)
	if _, err := store.CheckAndReserve(ctx, item); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// No MarkDone/MarkFailed: simulate a crash mid-processing.
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	restarted := testsupport.MustOpenLedger(t, cfg)
	decision, err := restarted.CheckAndReserve(ctx, item)
	if err != nil {
		t.Fatalf("post-crash reserve: %v", err)
	}
	if decision != ledger.Admitted {
		t.Fatalf("crashed pending key must re-admit, got %s", decision)
	}
}

func TestForgetRefusesDoneRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	failed := newItem("/inbox/f.mp3", "/inbox/f.mp3")
	if _, err := store.CheckAndReserve(ctx, failed); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.MarkFailed(ctx, failed.Key(), errors.New("boom")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := store.Forget(ctx, failed.Key()); err != nil {
		t.Fatalf("Forget failed record: %v", err)
	}
	if decision, err := store.CheckAndReserve(ctx, failed); err != nil || decision != ledger.Admitted {
		t.Fatalf("forgotten key should admit fresh, got %s err %v", decision, err)
	}

	done := newItem("/inbox/g.mp3", "/inbox/g.mp3")
	if _, err := store.CheckAndReserve(ctx, done); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.MarkDone(ctx, done.Key()); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := store.Forget(ctx, done.Key()); err == nil {
		t.Fatal("Forget must refuse done records")
	}
}

func TestSummarizeCountsStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	a := newItem("/inbox/h.mp3", "/inbox/h.mp3")
	b := newItem("/inbox/i.mp3", "/inbox/i.mp3")
	c := newItem("/inbox/j.mp3", "/inbox/j.mp3")
	for _, item := range []extract.Item{a, b, c} {
		if _, err := store.CheckAndReserve(ctx, item); err != nil {
			t.Fatalf("reserve: %v", err)
		}
	}
	if err := store.MarkDone(ctx, a.Key()); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := store.MarkFailed(ctx, b.Key(), errors.New("boom")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	summary, err := store.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Total != 3 || summary.Done != 1 || summary.Failed != 1 || summary.Pending != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	failedOnly, err := store.List(ctx, ledger.StatusFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(failedOnly) != 1 || failedOnly[0].Key != b.Key() {
		t.Fatalf("unexpected failed list: %+v", failedOnly)
	}
	if failedOnly[0].LastError != "boom" {
		t.Fatalf("expected recorded cause, got %q", failedOnly[0].LastError)
	}
}
