package graphmodel

import "testing"

func TestPropertyGraphAdjacency(t *testing.T) {
	var g PropertyGraph
	a := g.AddVertex(Vertex{Labels: []string{"Actor"}})
	m := g.AddVertex(Vertex{Labels: []string{"Movie"}})
	if _, err := g.AddRelationship(Relationship{Type: "PLAYED_IN", Source: a, Target: m}); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	if got := g.OutRelationships(a); len(got) != 1 {
		t.Fatalf("expected 1 outgoing relationship from actor, got %v", got)
	}
	if got := g.InRelationships(m); len(got) != 1 {
		t.Fatalf("expected 1 incoming relationship to movie, got %v", got)
	}
	if got := g.Degree(a); got != 1 {
		t.Fatalf("Degree(actor) = %d, want 1", got)
	}
}

func TestAddRelationshipRejectsOutOfRangeEndpoints(t *testing.T) {
	var g PropertyGraph
	g.AddVertex(Vertex{})
	if _, err := g.AddRelationship(Relationship{Source: 0, Target: 5}); err == nil {
		t.Fatalf("expected error for out-of-range target")
	}
}

func TestHasLabel(t *testing.T) {
	v := Vertex{Labels: []string{"Actor", "Person"}}
	if !v.HasLabel("Person") {
		t.Fatalf("expected HasLabel(Person) to be true")
	}
	if v.HasLabel("Movie") {
		t.Fatalf("expected HasLabel(Movie) to be false")
	}
}
