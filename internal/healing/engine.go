package healing

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"dnasigil/internal/model"
)

var ErrRandomSourceRequired = errors.New("random source is required")

// Outcome bundles everything one heal produces.
type Outcome struct {
	Entity     model.EncodedEntity
	Assessment model.DamageAssessment
	Pattern    model.HealingPattern
	Result     model.HealingResult
}

type Engine struct {
	NewID func() string
	Now   func() time.Time
}

func NewEngine() *Engine {
	return &Engine{NewID: uuid.NewString, Now: time.Now}
}

// Heal assesses, plans and repairs a copy of entity. The input is never
// modified and healingCount on the result is one higher.
func (e *Engine) Heal(ctx context.Context, entity model.EncodedEntity, params DamageParams, rng *rand.Rand) (Outcome, error) {
	if rng == nil {
		return Outcome{}, ErrRandomSourceRequired
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	assessment := AssessDamage(entity, params, rng)
	assessment.AssessedAt = e.now()

	pattern := GeneratePattern(entity, assessment, rng)
	pattern.ID = e.newID()

	healed, result := ApplyPattern(entity, pattern, assessment.OverallSeverity)
	healed.HealingCount = entity.HealingCount + 1

	return Outcome{
		Entity:     healed,
		Assessment: assessment,
		Pattern:    pattern,
		Result:     result,
	}, nil
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Engine) newID() string {
	if e.NewID == nil {
		return uuid.NewString()
	}
	return e.NewID()
}
