// Package search narrows listing and unit candidates stage by stage before
// the final paged fetch.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_search/internal/idset"
)

// Outcome classifies what a stage did to the candidate set.
type Outcome string

const (
	OutcomePass         Outcome = "pass"
	OutcomeNarrowed     Outcome = "narrowed"
	OutcomeEmpty        Outcome = "empty"
	OutcomeShortCircuit Outcome = "short_circuit"
)

// StageObserver receives one call per stage per run.
type StageObserver func(stage string, outcome Outcome, dur time.Duration)

func nopObserver(string, Outcome, time.Duration) {}

// Stage transforms the incoming candidate set. A stage whose dimension is not
// requested returns its input unchanged.
type Stage struct {
	Name   string
	Narrow func(ctx context.Context, in idset.Set) (idset.Set, error)
}

type Pipeline struct {
	stages  []Stage
	observe StageObserver
}

func NewPipeline(observe StageObserver, stages ...Stage) *Pipeline {
	if observe == nil {
		observe = nopObserver
	}
	return &Pipeline{stages: stages, observe: observe}
}

// Run threads state through the stages. It stops at the first Empty result
// and checks ctx before every stage.
func (p *Pipeline) Run(ctx context.Context, state idset.Set) (idset.Set, error) {
	for i, st := range p.stages {
		if err := ctx.Err(); err != nil {
			return idset.Empty(), err
		}
		if state.IsEmpty() {
			for _, skipped := range p.stages[i:] {
				p.observe(skipped.Name, OutcomeShortCircuit, 0)
			}
			log.Debug().Str("stage", st.Name).Msg("search: short-circuit on empty set")
			return state, nil
		}

		start := time.Now()
		out, err := st.Narrow(ctx, state)
		dur := time.Since(start)
		if err != nil {
			return idset.Empty(), fmt.Errorf("stage %s: %w", st.Name, err)
		}

		outcome := classify(state, out)
		p.observe(st.Name, outcome, dur)
		log.Debug().
			Str("stage", st.Name).
			Int("in", state.Len()).
			Int("out", out.Len()).
			Str("outcome", string(outcome)).
			Dur("took", dur).
			Msg("search: stage")
		state = out
	}
	return state, nil
}

func classify(in, out idset.Set) Outcome {
	switch {
	case out.IsEmpty():
		return OutcomeEmpty
	case in.Equal(out):
		return OutcomePass
	}
	return OutcomeNarrowed
}

// narrowing builds the common stage shape: pass through when not requested,
// return Empty without querying on Empty input, otherwise query and intersect.
func narrowing(name string, requested bool, query func(ctx context.Context, in idset.Set) ([]int64, error)) Stage {
	return Stage{
		Name: name,
		Narrow: func(ctx context.Context, in idset.Set) (idset.Set, error) {
			if !requested {
				return in, nil
			}
			if in.IsEmpty() {
				return in, nil
			}
			ids, err := query(ctx, in)
			if err != nil {
				return idset.Empty(), err
			}
			return in.Intersect(ids), nil
		},
	}
}
