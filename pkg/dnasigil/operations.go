package dnasigil

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dnasigil/internal/events"
	"dnasigil/internal/evo"
	"dnasigil/internal/genotype"
	"dnasigil/internal/healing"
	"dnasigil/internal/interaction"
	"dnasigil/internal/model"
	"dnasigil/internal/storage"
	"dnasigil/internal/telemetry"
)

// Encode derives a genome and signature for entity, persists them under a
// fresh encoded id and caches the result.
func (c *Client) Encode(ctx context.Context, entity model.SourceEntity, params EncodeParams) (_ model.EncodedEntity, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "encode", attribute.String("source.id", entity.ID))
	defer func() {
		telemetry.EndSpan(span, err)
		c.observe("encode", start, err)
	}()

	state := genotype.ResolveState(entity, params.State)
	encoded, err := genotype.Encode(entity, state, c.childRand())
	if err != nil {
		return model.EncodedEntity{}, err
	}
	encoded.ID = c.newID()
	encoded.CreatedAt = c.now()
	encoded.UpdatedAt = encoded.CreatedAt
	span.SetAttributes(attribute.String("entity.id", encoded.ID))

	unlock := c.locks.Lock(encoded.ID)
	defer unlock()

	batch := storage.NewBatch()
	if err := entityWrites(batch, encoded); err != nil {
		return model.EncodedEntity{}, err
	}
	if err := c.commit(ctx, "encode", encoded.ID, batch); err != nil {
		return model.EncodedEntity{}, err
	}
	c.cacheEntity(encoded)

	c.logger.Debug("entity encoded",
		zap.String("entity_id", encoded.ID),
		zap.String("source_id", encoded.OriginalEntityID),
		zap.Int("sequence_length", len(encoded.Genome.Sequence)),
		zap.Float64("fidelity", encoded.EncodingMetrics.Fidelity))
	c.publisher.Emit(events.EntityEncoded, genotype.CloneEntity(encoded))
	return encoded, nil
}

// Evolve applies one generation of mutation under pressures. Zero-valued
// pressure groups take their defaults.
func (c *Client) Evolve(ctx context.Context, id string, pressures evo.Pressures) (_ EvolveResult, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "evolve", attribute.String("entity.id", id))
	defer func() {
		telemetry.EndSpan(span, err)
		c.observe("evolve", start, err)
	}()

	unlock := c.locks.Lock(id)
	defer unlock()

	entity, err := c.loadEntity(ctx, id)
	if err != nil {
		return EvolveResult{}, err
	}
	res, err := c.evolver.Evolve(ctx, entity, pressures, c.childRand())
	if err != nil {
		return EvolveResult{}, err
	}
	evolved := res.Entity
	evolved.UpdatedAt = c.now()

	event := model.EvolutionEvent{
		VersionedRecord:    model.CurrentVersion(),
		ID:                 c.newID(),
		EntityID:           id,
		Generation:         evolved.EvolutionGeneration,
		Pressures:          res.Pressures,
		Operators:          res.Operators,
		Diff:               res.Diff,
		FitnessBefore:      res.FitnessBefore,
		FitnessAfter:       res.FitnessAfter,
		FitnessImprovement: res.FitnessImprovement(),
		Timestamp:          evolved.UpdatedAt,
	}
	eventData, err := storage.EncodeEvolutionEvent(event)
	if err != nil {
		return EvolveResult{}, err
	}
	batch := storage.NewBatch()
	if err := entityWrites(batch, evolved); err != nil {
		return EvolveResult{}, err
	}
	batch.Push(storage.EvolutionKey(id), eventData)
	if err := c.commit(ctx, "evolve", id, batch); err != nil {
		return EvolveResult{}, err
	}

	c.cacheEntity(evolved)
	c.mu.Lock()
	if history, ok := c.evolutions[id]; ok {
		c.evolutions[id] = append(history, event)
	}
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("generation", evolved.EvolutionGeneration))
	c.logger.Debug("entity evolved",
		zap.String("entity_id", id),
		zap.Int("generation", evolved.EvolutionGeneration),
		zap.Int("mutations", res.Diff.MutationCount),
		zap.Float64("fitness_improvement", event.FitnessImprovement))
	c.publisher.Emit(events.EntityEvolved, event)
	return EvolveResult{Entity: evolved, Event: event, Pressures: res.Pressures}, nil
}

// Heal assesses damage described by params, repairs the entity and records
// the outcome.
func (c *Client) Heal(ctx context.Context, id string, params healing.DamageParams) (_ HealResult, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "heal", attribute.String("entity.id", id))
	defer func() {
		telemetry.EndSpan(span, err)
		c.observe("heal", start, err)
	}()

	unlock := c.locks.Lock(id)
	defer unlock()

	entity, err := c.loadEntity(ctx, id)
	if err != nil {
		return HealResult{}, err
	}
	out, err := c.healer.Heal(ctx, entity, params, c.childRand())
	if err != nil {
		return HealResult{}, err
	}
	healed := out.Entity
	healed.UpdatedAt = c.now()

	event := model.HealingEvent{
		VersionedRecord: model.CurrentVersion(),
		ID:              c.newID(),
		EntityID:        id,
		HealCount:       healed.HealingCount,
		Params:          params,
		Assessment:      out.Assessment,
		Pattern:         out.Pattern,
		Result:          out.Result,
		Timestamp:       healed.UpdatedAt,
	}
	eventData, err := storage.EncodeHealingEvent(event)
	if err != nil {
		return HealResult{}, err
	}
	batch := storage.NewBatch()
	if err := entityWrites(batch, healed); err != nil {
		return HealResult{}, err
	}
	batch.Push(storage.HealingKey(id), eventData)
	if err := c.commit(ctx, "heal", id, batch); err != nil {
		return HealResult{}, err
	}

	c.cacheEntity(healed)
	c.mu.Lock()
	if history, ok := c.healings[id]; ok {
		c.healings[id] = append(history, event)
	}
	c.mu.Unlock()

	span.SetAttributes(
		attribute.String("priority", string(out.Assessment.HealingPriority)),
		attribute.Float64("severity", out.Assessment.OverallSeverity))
	c.logger.Debug("entity healed",
		zap.String("entity_id", id),
		zap.String("priority", string(out.Assessment.HealingPriority)),
		zap.Float64("severity", out.Assessment.OverallSeverity),
		zap.Int("instructions", out.Pattern.InstructionCount()),
		zap.Float64("effectiveness", out.Result.OverallEffectiveness))
	c.publisher.Emit(events.EntityHealed, event)
	return HealResult{
		Entity:     healed,
		Assessment: out.Assessment,
		Pattern:    out.Pattern,
		Result:     out.Result,
		Event:      event,
	}, nil
}

// Interact scores two entities against each other and appends the result to
// both interaction histories. Neither entity is modified.
func (c *Client) Interact(ctx context.Context, idA, idB string, params interaction.Params) (_ model.InteractionResult, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "interact",
		attribute.String("entity.a", idA),
		attribute.String("entity.b", idB))
	defer func() {
		telemetry.EndSpan(span, err)
		c.observe("interact", start, err)
	}()

	unlock := c.locks.LockPair(idA, idB)
	defer unlock()

	var a, b model.EncodedEntity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = c.loadEntity(gctx, idA)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = c.loadEntity(gctx, idB)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.InteractionResult{}, err
	}

	result, err := c.interactor.Interact(ctx, a, b, params, c.childRand())
	if err != nil {
		return model.InteractionResult{}, err
	}

	forA := model.InteractionEvent{
		VersionedRecord: model.CurrentVersion(),
		ID:              c.newID(),
		EntityID:        idA,
		PartnerID:       idB,
		Result:          result,
		Timestamp:       result.Timestamp,
	}
	forB := forA
	forB.ID = c.newID()
	forB.EntityID, forB.PartnerID = idB, idA

	dataA, err := storage.EncodeInteractionEvent(forA)
	if err != nil {
		return model.InteractionResult{}, err
	}
	dataB, err := storage.EncodeInteractionEvent(forB)
	if err != nil {
		return model.InteractionResult{}, err
	}
	batch := storage.NewBatch().
		Push(storage.InteractionKey(idA), dataA).
		Push(storage.InteractionKey(idB), dataB)
	if err := c.commit(ctx, "interact", idA, batch); err != nil {
		return model.InteractionResult{}, err
	}

	c.mu.Lock()
	for _, e := range []model.InteractionEvent{forA, forB} {
		if history, ok := c.interactions[e.EntityID]; ok {
			c.interactions[e.EntityID] = append(history, e)
		}
	}
	c.mu.Unlock()

	span.SetAttributes(
		attribute.String("interaction.type", string(result.Type)),
		attribute.Float64("interaction.strength", result.Strength))
	c.logger.Debug("entities interacted",
		zap.String("entity_a", idA),
		zap.String("entity_b", idB),
		zap.String("type", string(result.Type)),
		zap.Float64("strength", result.Strength),
		zap.Bool("exchange", result.DNA.Exchange.Occurred))
	c.publisher.Emit(events.EntitiesInteracted, result)
	return result, nil
}
