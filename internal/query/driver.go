package query

import (
	"context"
	"fmt"

	"github.com/conure-db/graphdb/internal/graphmodel"
	"github.com/conure-db/graphdb/internal/proxy"
	"github.com/conure-db/graphdb/internal/repository"
	"github.com/conure-db/graphdb/internal/vf2"
)

// Driver dispatches Steps against a Repository: StepMatch builds a
// fresh Proxy per pattern and asks VF2 for every embedding; StepCreate
// materializes a pattern's vertices/edges through the repository's
// write path. Driver itself never locks the repository — Execute
// assumes the caller already holds the appropriate lock; the exported
// NewSession/Session wraps that locking in the session-status
// automaton.
type Driver struct {
	repo *repository.Repository
}

func NewDriver(repo *repository.Repository) *Driver {
	return &Driver{repo: repo}
}

// Execute runs steps in order under whatever lock the caller already
// holds.
func (d *Driver) Execute(ctx context.Context, steps []Step) (Result, error) {
	var result Result
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		var (
			sr  StepResult
			err error
		)
		switch step.Kind {
		case StepMatch:
			sr, err = d.executeMatch(step)
		case StepCreate:
			sr, err = d.executeCreate(step)
		default:
			return Result{}, fmt.Errorf("query: unknown step kind %d", step.Kind)
		}
		if err != nil {
			return Result{}, err
		}
		result.Steps = append(result.Steps, sr)
	}
	return result, nil
}

func (d *Driver) executeMatch(step Step) (StepResult, error) {
	sr := StepResult{Kind: StepMatch}
	for _, pattern := range step.Patterns {
		target, err := proxy.NewFull(d.repo)
		if err != nil {
			return StepResult{}, fmt.Errorf("query: match: %w", err)
		}
		var mappings []vf2.Mapping
		err = vf2.FindAll(pattern, target, defaultVertexPredicate, defaultEdgePredicate, func(m vf2.Mapping) (bool, error) {
			mappings = append(mappings, m)
			return true, nil
		})
		if err != nil {
			return StepResult{}, fmt.Errorf("query: match: %w", err)
		}
		sr.Patterns = append(sr.Patterns, PatternResult{Pattern: pattern, Mappings: mappings})
	}
	return sr, nil
}

// executeCreate materializes each pattern's vertices, treating any
// vertex with a concrete (non-zero) id as a merge point resolved
// against the existing repository state rather than created anew, then
// wires up its relationships against the resulting bound ids.
func (d *Driver) executeCreate(step Step) (StepResult, error) {
	sr := StepResult{Kind: StepCreate}
	for _, pattern := range step.Patterns {
		bound := make([]graphmodel.VertexID, len(pattern.Vertices))
		for i, v := range pattern.Vertices {
			if v.ID != 0 {
				if _, err := d.repo.RetrieveVertexDataByID(v.ID); err != nil {
					return StepResult{}, fmt.Errorf("query: create: merge point vertex %d: %w", v.ID, err)
				}
				bound[i] = v.ID
				continue
			}
			id, err := d.repo.CreateNode(v.Labels, v.Properties)
			if err != nil {
				return StepResult{}, fmt.Errorf("query: create: %w", err)
			}
			bound[i] = id
		}
		for _, rel := range pattern.Relationships {
			if _, err := d.repo.CreateRelationship(rel.Type, bound[rel.Source], bound[rel.Target], rel.Properties); err != nil {
				return StepResult{}, fmt.Errorf("query: create: %w", err)
			}
		}
		sr.Patterns = append(sr.Patterns, PatternResult{Pattern: pattern, BoundVertices: bound})
	}
	return sr, nil
}
