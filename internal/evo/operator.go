package evo

import (
	"context"
	"math/rand"

	"dnasigil/internal/model"
)

// Step carries the per-call inputs every operator sees.
type Step struct {
	Pressures Pressures
	Rand      *rand.Rand
}

// Operator is one stage of the evolution pipeline. The engine hands each
// operator a private copy of the entity, so Apply may modify nested
// collections in place before returning it.
type Operator interface {
	Name() string
	Apply(ctx context.Context, entity model.EncodedEntity, step Step) (model.EncodedEntity, error)
}

// OperatorFunc adapts a plain function to the Operator interface.
type OperatorFunc struct {
	OpName string
	Fn     func(ctx context.Context, entity model.EncodedEntity, step Step) (model.EncodedEntity, error)
}

func (o OperatorFunc) Name() string {
	return o.OpName
}

func (o OperatorFunc) Apply(ctx context.Context, entity model.EncodedEntity, step Step) (model.EncodedEntity, error) {
	return o.Fn(ctx, entity, step)
}
