package query

import (
	"context"
	"testing"

	"github.com/conure-db/graphdb/internal/graphmodel"
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

func createPattern(labels ...string) *graphmodel.PropertyGraph {
	var g graphmodel.PropertyGraph
	g.AddVertex(graphmodel.Vertex{Labels: labels})
	return &g
}

func TestDriverExecuteCreateThenMatch(t *testing.T) {
	r := openRepo(t)
	d := NewDriver(r)

	createStep := Step{Kind: StepCreate, Patterns: []*graphmodel.PropertyGraph{createPattern("Actor")}}
	r.Lock()
	res, err := d.Execute(context.Background(), []Step{createStep})
	r.Unlock()
	if err != nil {
		t.Fatalf("Execute create: %v", err)
	}
	if len(res.Steps) != 1 || len(res.Steps[0].Patterns) != 1 || len(res.Steps[0].Patterns[0].BoundVertices) != 1 {
		t.Fatalf("unexpected create result: %+v", res)
	}
	actorID := res.Steps[0].Patterns[0].BoundVertices[0]
	if actorID == 0 {
		t.Fatalf("expected a bound vertex id, got 0")
	}

	var pattern graphmodel.PropertyGraph
	pattern.AddVertex(graphmodel.Vertex{Labels: []string{"Actor"}})
	matchStep := Step{Kind: StepMatch, Patterns: []*graphmodel.PropertyGraph{&pattern}}

	r.RLock()
	res, err = d.Execute(context.Background(), []Step{matchStep})
	r.RUnlock()
	if err != nil {
		t.Fatalf("Execute match: %v", err)
	}
	mappings := res.Steps[0].Patterns[0].Mappings
	if len(mappings) != 1 || mappings[0].Vertices[0] != actorID {
		t.Fatalf("expected one match on the created actor, got %+v", mappings)
	}
}

func TestDriverExecuteCreateMergesOnConcreteID(t *testing.T) {
	r := openRepo(t)
	d := NewDriver(r)

	r.Lock()
	existing, err := r.CreateNode([]string{"Movie"}, nil)
	r.Unlock()
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	var pattern graphmodel.PropertyGraph
	actor := pattern.AddVertex(graphmodel.Vertex{Labels: []string{"Actor"}})
	movie := pattern.AddVertex(graphmodel.Vertex{ID: existing, Labels: []string{"Movie"}})
	if _, err := pattern.AddRelationship(graphmodel.Relationship{Type: "PLAYED_IN", Source: actor, Target: movie}); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	r.Lock()
	res, err := d.Execute(context.Background(), []Step{{Kind: StepCreate, Patterns: []*graphmodel.PropertyGraph{&pattern}}})
	r.Unlock()
	if err != nil {
		t.Fatalf("Execute create: %v", err)
	}
	bound := res.Steps[0].Patterns[0].BoundVertices
	if bound[movie] != existing {
		t.Fatalf("expected merge point to resolve to existing vertex %d, got %d", existing, bound[movie])
	}

	r.RLock()
	movieRow, err := r.RetrieveVertexDataByID(existing)
	r.RUnlock()
	if err != nil {
		t.Fatalf("RetrieveVertexDataByID: %v", err)
	}
	if movieRow.FirstInbound == 0 {
		t.Fatalf("expected the merged movie to gain an inbound PLAYED_IN edge")
	}
}

func TestDriverExecuteCreateRejectsUnknownMergePoint(t *testing.T) {
	r := openRepo(t)
	d := NewDriver(r)

	var pattern graphmodel.PropertyGraph
	pattern.AddVertex(graphmodel.Vertex{ID: 999, Labels: []string{"Movie"}})

	r.Lock()
	_, err := d.Execute(context.Background(), []Step{{Kind: StepCreate, Patterns: []*graphmodel.PropertyGraph{&pattern}}})
	r.Unlock()
	if err == nil {
		t.Fatalf("expected an error merging against a nonexistent vertex")
	}
}
