// Package tests exercises the full engine end to end — repository,
// proxy, VF2 matcher, and query driver together — the way
// conuredb-conuredb/tests' load/scale tests exercise db.DB end to end
// rather than unit-by-unit.
package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/conure-db/graphdb/internal/graphmodel"
	"github.com/conure-db/graphdb/internal/query"
	"github.com/conure-db/graphdb/internal/repository"
)

func openRepo(t *testing.T) *repository.Repository {
	t.Helper()
	r, err := repository.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func vertexPattern(labels ...string) *graphmodel.PropertyGraph {
	var g graphmodel.PropertyGraph
	g.AddVertex(graphmodel.Vertex{Labels: labels})
	return &g
}

// TestActorMoviePatternEndToEnd drives spec.md's concrete scenario 4
// (3 actors, 2 movies, all 6 PLAYED_IN edges, exactly 6 mappings)
// through the full stack: query.Session CREATE steps populate the
// repository, then a MATCH step runs the VF2 matcher over a Proxy.
func TestActorMoviePatternEndToEnd(t *testing.T) {
	r := openRepo(t)
	s := query.NewSession(query.NewDriver(r))
	ctx := context.Background()

	var actorIDs, movieIDs []graphmodel.VertexID
	for i := 0; i < 3; i++ {
		res, err := s.Dispatch(ctx, []query.Step{{Kind: query.StepCreate, Patterns: []*graphmodel.PropertyGraph{vertexPattern("Actor")}}})
		if err != nil {
			t.Fatalf("create actor %d: %v", i, err)
		}
		actorIDs = append(actorIDs, res.Steps[0].Patterns[0].BoundVertices[0])
	}
	for i := 0; i < 2; i++ {
		res, err := s.Dispatch(ctx, []query.Step{{Kind: query.StepCreate, Patterns: []*graphmodel.PropertyGraph{vertexPattern("Movie")}}})
		if err != nil {
			t.Fatalf("create movie %d: %v", i, err)
		}
		movieIDs = append(movieIDs, res.Steps[0].Patterns[0].BoundVertices[0])
	}
	for _, a := range actorIDs {
		for _, m := range movieIDs {
			var link graphmodel.PropertyGraph
			src := link.AddVertex(graphmodel.Vertex{ID: a})
			dst := link.AddVertex(graphmodel.Vertex{ID: m})
			if _, err := link.AddRelationship(graphmodel.Relationship{Type: "PLAYED_IN", Source: src, Target: dst}); err != nil {
				t.Fatalf("AddRelationship: %v", err)
			}
			if _, err := s.Dispatch(ctx, []query.Step{{Kind: query.StepCreate, Patterns: []*graphmodel.PropertyGraph{&link}}}); err != nil {
				t.Fatalf("link actor %d movie %d: %v", a, m, err)
			}
		}
	}

	var pattern graphmodel.PropertyGraph
	pa := pattern.AddVertex(graphmodel.Vertex{Labels: []string{"Actor"}})
	pm := pattern.AddVertex(graphmodel.Vertex{Labels: []string{"Movie"}})
	if _, err := pattern.AddRelationship(graphmodel.Relationship{Type: "PLAYED_IN", Source: pa, Target: pm}); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	res, err := s.Dispatch(ctx, []query.Step{{Kind: query.StepMatch, Patterns: []*graphmodel.PropertyGraph{&pattern}}})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	mappings := res.Steps[0].Patterns[0].Mappings
	if len(mappings) != 6 {
		t.Fatalf("got %d mappings, want 6: %+v", len(mappings), mappings)
	}
	seen := map[[2]graphmodel.VertexID]bool{}
	for _, m := range mappings {
		key := [2]graphmodel.VertexID{m.Vertices[pa], m.Vertices[pm]}
		if seen[key] {
			t.Fatalf("duplicate mapping %v", key)
		}
		seen[key] = true
	}
}

// TestSnapshotSurvivesFreshRepositoryInstance drives spec.md's "reload
// from a fresh store instance" property (scenario 3, generalized to
// the Graph Repository's own snapshot/restore pair rather than a
// single B+-tree key).
func TestSnapshotSurvivesFreshRepositoryInstance(t *testing.T) {
	dir := t.TempDir()
	r, err := repository.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	r.Lock()
	actor, err := r.CreateNode([]string{"Actor"}, graphmodel.Properties{"name": "Trinity"})
	if err != nil {
		r.Unlock()
		t.Fatalf("CreateNode: %v", err)
	}
	movie, err := r.CreateNode([]string{"Movie"}, nil)
	if err != nil {
		r.Unlock()
		t.Fatalf("CreateNode: %v", err)
	}
	if _, err := r.CreateRelationship("PLAYED_IN", actor, movie, nil); err != nil {
		r.Unlock()
		t.Fatalf("CreateRelationship: %v", err)
	}
	r.Unlock()

	r.RLock()
	err = r.Snapshot()
	r.RUnlock()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fresh, err := repository.Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer fresh.Close()

	fresh.RLock()
	defer fresh.RUnlock()
	v, err := fresh.RetrieveVertexDataByID(actor)
	if err != nil {
		t.Fatalf("RetrieveVertexDataByID: %v", err)
	}
	if v.Properties["name"] != "Trinity" {
		t.Fatalf("got properties %+v, want name=Trinity", v.Properties)
	}
	if v.FirstOutbound == 0 {
		t.Fatalf("expected the restored actor to still have its outbound PLAYED_IN edge")
	}
	ids, err := fresh.FetchNodeIDsWithLabels([]string{"Actor"})
	if err != nil {
		t.Fatalf("FetchNodeIDsWithLabels: %v", err)
	}
	if len(ids) != 1 || ids[0] != actor {
		t.Fatalf("got %v, want [%d] — label index must also survive the reopen", ids, actor)
	}
}

// TestManyVerticesOneLabel is a scale smoke test in the teacher's
// tests/scale_test.go style: many vertices under one label, searched
// back through the durable label index.
func TestManyVerticesOneLabel(t *testing.T) {
	const n = 500
	r := openRepo(t)

	r.Lock()
	ids := make(map[graphmodel.VertexID]bool, n)
	for i := 0; i < n; i++ {
		id, err := r.CreateNode([]string{"Person"}, graphmodel.Properties{"seq": int64(i)})
		if err != nil {
			r.Unlock()
			t.Fatalf("CreateNode %d: %v", i, err)
		}
		ids[id] = true
	}
	r.Unlock()

	r.RLock()
	got, err := r.FetchNodeIDsWithLabels([]string{"Person"})
	r.RUnlock()
	if err != nil {
		t.Fatalf("FetchNodeIDsWithLabels: %v", err)
	}
	if len(got) != n {
		t.Fatalf("got %d vertices, want %d", len(got), n)
	}
	for _, id := range got {
		if !ids[id] {
			t.Fatalf("unexpected vertex id %d in label index", id)
		}
	}
}

// TestConcurrentSessionsObserveCommittedState is the end-to-end form of
// spec.md's concurrency scenario 6, driven through two independent
// query.Session values sharing one Repository (see DESIGN.md's Open
// Question #7 on why a concurrent reader blocks rather than observing
// a stale pre-commit snapshot).
func TestConcurrentSessionsObserveCommittedState(t *testing.T) {
	r := openRepo(t)
	writer := query.NewSession(query.NewDriver(r))
	reader := query.NewSession(query.NewDriver(r))
	ctx := context.Background()

	if err := writer.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := writer.Dispatch(ctx, []query.Step{{Kind: query.StepCreate, Patterns: []*graphmodel.PropertyGraph{vertexPattern("Actor")}}}); err != nil {
		t.Fatalf("Dispatch create: %v", err)
	}

	pattern := vertexPattern("Actor")
	var wg sync.WaitGroup
	var readRes query.Result
	var readErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		readRes, readErr = reader.Dispatch(ctx, []query.Step{{Kind: query.StepMatch, Patterns: []*graphmodel.PropertyGraph{pattern}}})
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
		t.Fatalf("expected the reader to observe exactly one committed actor, got %+v", readRes)
	}
}
