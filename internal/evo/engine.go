package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"dnasigil/internal/fitness"
	"dnasigil/internal/genotype"
	"dnasigil/internal/model"
)

// Result is the outcome of one evolution step.
type Result struct {
	Entity        model.EncodedEntity
	Diff          model.EvolutionDiff
	Pressures     Pressures
	Operators     []string
	FitnessBefore float64
	FitnessAfter  float64
}

func (r Result) FitnessImprovement() float64 {
	return r.FitnessAfter - r.FitnessBefore
}

// Engine runs an ordered operator pipeline resolved from its own registry.
type Engine struct {
	registry *Registry

	mu    sync.RWMutex
	order []string
}

// NewEngine returns an engine with the built-in operators registered in
// pipeline order.
func NewEngine() *Engine {
	e := &Engine{registry: NewRegistry()}
	for _, op := range DefaultOperators() {
		if err := e.Register(op); err != nil {
			panic(fmt.Sprintf("register built-in operator %s: %v", op.Name(), err))
		}
	}
	return e
}

// Register adds op to the registry and appends it to the pipeline.
func (e *Engine) Register(op Operator) error {
	if err := e.registry.Register(op); err != nil {
		return err
	}
	e.mu.Lock()
	e.order = append(e.order, op.Name())
	e.mu.Unlock()
	return nil
}

// Operators lists pipeline stages in execution order.
func (e *Engine) Operators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// Evolve applies the pipeline to a copy of entity under pressures. The input
// entity is never modified.
func (e *Engine) Evolve(ctx context.Context, entity model.EncodedEntity, pressures Pressures, rng *rand.Rand) (Result, error) {
	if rng == nil {
		return Result{}, ErrRandomSourceRequired
	}
	normalized := NormalizePressures(pressures)
	step := Step{Pressures: normalized, Rand: rng}
	order := e.Operators()

	work := genotype.CloneEntity(entity)
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		op, err := e.registry.Resolve(name, work.Genome)
		if err != nil {
			return Result{}, err
		}
		work, err = op.Apply(ctx, work, step)
		if err != nil {
			return Result{}, fmt.Errorf("apply %s: %w", name, err)
		}
	}

	clampPositions(&work.Genome)
	genotype.Reseal(&work.Signature, work.OriginalEntityID, work.Genome)
	work.EvolutionGeneration = entity.EvolutionGeneration + 1
	fitness.Refresh(&work)

	return Result{
		Entity:        work,
		Diff:          Diff(entity, work),
		Pressures:     normalized,
		Operators:     order,
		FitnessBefore: fitness.Composite(entity),
		FitnessAfter:  fitness.Composite(work),
	}, nil
}
