package dnasigil

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"dnasigil/internal/genotype"
	"dnasigil/internal/model"
	"dnasigil/internal/stats"
	"dnasigil/internal/storage"
)

// EncodedEntity returns a copy of the cached entity. Entities not yet
// cached by this client report false even when they exist in the store.
func (c *Client) EncodedEntity(id string) (model.EncodedEntity, bool) {
	c.mu.RLock()
	entity, ok := c.entities[id]
	c.mu.RUnlock()
	if !ok {
		return model.EncodedEntity{}, false
	}
	return genotype.CloneEntity(entity), true
}

func (c *Client) Genome(id string) (model.Genome, bool) {
	entity, ok := c.EncodedEntity(id)
	return entity.Genome, ok
}

func (c *Client) Signature(id string) (model.Signature, bool) {
	entity, ok := c.EncodedEntity(id)
	return entity.Signature, ok
}

// EncodingMetrics averages encoder quality over cached entities only.
func (c *Client) EncodingMetrics() stats.EncodingMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return stats.Aggregate(c.entities)
}

// EvolutionaryHistory returns evolution events for id, oldest first. An id
// with no history yields an empty slice.
func (c *Client) EvolutionaryHistory(ctx context.Context, id string) ([]model.EvolutionEvent, error) {
	return loadHistory(ctx, c, id, c.evolutions, storage.EvolutionKey(id), storage.DecodeEvolutionHistory)
}

func (c *Client) HealingHistory(ctx context.Context, id string) ([]model.HealingEvent, error) {
	return loadHistory(ctx, c, id, c.healings, storage.HealingKey(id), storage.DecodeHealingHistory)
}

func (c *Client) InteractionHistory(ctx context.Context, id string) ([]model.InteractionEvent, error) {
	return loadHistory(ctx, c, id, c.interactions, storage.InteractionKey(id), storage.DecodeInteractionHistory)
}

// loadHistory serves a history from cache or fills the cache from the store.
// The fill runs under the entity lock so it cannot interleave with an append.
func loadHistory[T any](ctx context.Context, c *Client, id string, cache map[string][]T, key string, decode func([][]byte) ([]T, error)) ([]T, error) {
	c.mu.RLock()
	history, ok := cache[id]
	c.mu.RUnlock()
	if ok {
		return slices.Clone(history), nil
	}

	v, err, _ := c.loads.Do(key, func() (any, error) {
		unlock := c.locks.Lock(id)
		defer unlock()

		c.mu.RLock()
		history, ok := cache[id]
		c.mu.RUnlock()
		if ok {
			return history, nil
		}

		items, err := c.store.List(ctx, key)
		if err != nil {
			return nil, err
		}
		history, err = decode(items)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		c.mu.Lock()
		cache[id] = history
		c.mu.Unlock()
		return history, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]T)), nil
}

// Warm loads every persisted entity into the cache and returns how many were
// added. Records with an unknown version are skipped. Entities already cached
// are kept and not counted.
func (c *Client) Warm(ctx context.Context) (int, error) {
	all, err := c.store.All(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for key, data := range all {
		if !storage.IsEntityKey(key) {
			continue
		}
		entity, err := storage.DecodeEntity(data)
		if err != nil {
			if errors.Is(err, storage.ErrVersionMismatch) {
				c.logger.Warn("skip entity with unknown version", zap.String("key", key))
				continue
			}
			return loaded, fmt.Errorf("decode entity %s: %w", key, err)
		}
		c.mu.Lock()
		if _, ok := c.entities[entity.ID]; !ok {
			c.entities[entity.ID] = entity
			loaded++
		}
		c.mu.Unlock()
	}

	c.mu.RLock()
	cached := len(c.entities)
	c.mu.RUnlock()
	c.metrics.SetCached(cached)
	c.logger.Debug("cache warmed", zap.Int("entities", loaded))
	return loaded, nil
}

// Export writes the entity and its three histories under dir/<id> and
// returns that directory.
func (c *Client) Export(ctx context.Context, id, dir string) (string, error) {
	unlock := c.locks.Lock(id)
	entity, err := c.loadEntity(ctx, id)
	unlock()
	if err != nil {
		return "", err
	}

	evolutions, err := c.EvolutionaryHistory(ctx, id)
	if err != nil {
		return "", err
	}
	healings, err := c.HealingHistory(ctx, id)
	if err != nil {
		return "", err
	}
	interactions, err := c.InteractionHistory(ctx, id)
	if err != nil {
		return "", err
	}

	path, err := stats.WriteDossier(dir, stats.Dossier{
		Entity:       entity,
		Evolution:    evolutions,
		Healing:      healings,
		Interactions: interactions,
	}, c.now())
	if err != nil {
		return "", err
	}
	c.logger.Debug("entity exported", zap.String("entity_id", id), zap.String("dir", path))
	return path, nil
}
