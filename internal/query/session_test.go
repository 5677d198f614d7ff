package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/conure-db/graphdb/internal/graphmodel"
)

func TestSessionNoTxAutoCommitsCreateAndMatch(t *testing.T) {
	r := openRepo(t)
	s := NewSession(NewDriver(r))

	createRes, err := s.Dispatch(context.Background(), []Step{{Kind: StepCreate, Patterns: []*graphmodel.PropertyGraph{createPattern("Actor")}}})
	if err != nil {
		t.Fatalf("Dispatch create: %v", err)
	}
	actorID := createRes.Steps[0].Patterns[0].BoundVertices[0]

	var pattern graphmodel.PropertyGraph
	pattern.AddVertex(graphmodel.Vertex{Labels: []string{"Actor"}})
	matchRes, err := s.Dispatch(context.Background(), []Step{{Kind: StepMatch, Patterns: []*graphmodel.PropertyGraph{&pattern}}})
	if err != nil {
		t.Fatalf("Dispatch match: %v", err)
	}
	mappings := matchRes.Steps[0].Patterns[0].Mappings
	if len(mappings) != 1 || mappings[0].Vertices[0] != actorID {
		t.Fatalf("expected one match on %d, got %+v", actorID, mappings)
	}
}

func TestSessionExplicitTransactionSpansDispatches(t *testing.T) {
	r := openRepo(t)
	s := NewSession(NewDriver(r))
	ctx := context.Background()

	if err := s.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	createRes, err := s.Dispatch(ctx, []Step{{Kind: StepCreate, Patterns: []*graphmodel.PropertyGraph{createPattern("Actor")}}})
	if err != nil {
		t.Fatalf("Dispatch create inside tx: %v", err)
	}
	actorID := createRes.Steps[0].Patterns[0].BoundVertices[0]

	var pattern graphmodel.PropertyGraph
	pattern.AddVertex(graphmodel.Vertex{Labels: []string{"Actor"}})
	matchRes, err := s.Dispatch(ctx, []Step{{Kind: StepMatch, Patterns: []*graphmodel.PropertyGraph{&pattern}}})
	if err != nil {
		t.Fatalf("Dispatch match inside tx: %v", err)
	}
	if len(matchRes.Steps[0].Patterns[0].Mappings) != 1 {
		t.Fatalf("expected the in-progress write to be visible within its own session before commit")
	}

	if _, err := s.Commit(ctx, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	other := NewSession(NewDriver(r))
	res, err := other.Dispatch(ctx, []Step{{Kind: StepMatch, Patterns: []*graphmodel.PropertyGraph{&pattern}}})
	if err != nil {
		t.Fatalf("Dispatch from other session: %v", err)
	}
	if len(res.Steps[0].Patterns[0].Mappings) != 1 || res.Steps[0].Patterns[0].Mappings[0].Vertices[0] != actorID {
		t.Fatalf("expected a fresh session to observe the committed vertex, got %+v", res)
	}
}

// TestSessionSecondWriterWaitsForOpenTransaction exercises the
// TxConflict path: a second goroutine calling Begin on the same
// Session while a transaction is already open must block (observing
// WaitForCurrentTx internally) until the first goroutine commits.
func TestSessionSecondWriterWaitsForOpenTransaction(t *testing.T) {
	r := openRepo(t)
	s := NewSession(NewDriver(r))
	ctx := context.Background()

	if err := s.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	secondBegan := make(chan struct{})
	go func() {
		if err := s.Begin(ctx); err != nil {
			t.Errorf("second Begin: %v", err)
		}
		close(secondBegan)
	}()

	select {
	case <-secondBegan:
		t.Fatalf("second Begin returned before the first transaction committed")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := s.Commit(ctx, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	select {
	case <-secondBegan:
	case <-time.After(time.Second):
		t.Fatalf("second Begin never observed the first transaction's commit")
	}
	if _, err := s.Commit(ctx, nil); err != nil {
		t.Fatalf("second Commit: %v", err)
	}
}

// TestConcurrentSessionReadBlocksUntilWriterCommits exercises the
// repository-lock side of the concurrency scenario: a read dispatched
// from a second, independent Session while a first session's write
// transaction is open blocks on the repository's RWMutex and only
// observes the new vertex once that transaction commits — there is no
// MVCC layer, so "sees prior state" collapses to "blocks, then sees the
// post-commit state" (see DESIGN.md).
func TestConcurrentSessionReadBlocksUntilWriterCommits(t *testing.T) {
	r := openRepo(t)
	writer := NewSession(NewDriver(r))
	reader := NewSession(NewDriver(r))
	ctx := context.Background()

	if err := writer.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := writer.Dispatch(ctx, []Step{{Kind: StepCreate, Patterns: []*graphmodel.PropertyGraph{createPattern("Actor")}}}); err != nil {
		t.Fatalf("Dispatch create: %v", err)
	}

	var pattern graphmodel.PropertyGraph
	pattern.AddVertex(graphmodel.Vertex{Labels: []string{"Actor"}})

	var wg sync.WaitGroup
	var readRes Result
	var readErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		readRes, readErr = reader.Dispatch(ctx, []Step{{Kind: StepMatch, Patterns: []*graphmodel.PropertyGraph{&pattern}}})
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := writer.Commit(ctx, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	wg.Wait()

	if readErr != nil {
		t.Fatalf("reader Dispatch: %v", readErr)
	}
	if len(readRes.Steps[0].Patterns[0].Mappings) != 1 {
		t.Fatalf("expected the reader to observe the committed vertex, got %+v", readRes)
	}
}
