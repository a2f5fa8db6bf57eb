// Package dnasigil is the public entry point: a Client that encodes entities
// into genome/signature pairs and evolves, heals and pairs them over time,
// persisting every step through a key-value store.
package dnasigil

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"dnasigil/internal/events"
	"dnasigil/internal/evo"
	"dnasigil/internal/genotype"
	"dnasigil/internal/healing"
	"dnasigil/internal/interaction"
	"dnasigil/internal/model"
	"dnasigil/internal/storage"
	"dnasigil/internal/telemetry"
)

const defaultDBPath = "dnasigil.db"

var ErrNotFound = errors.New("encoded entity not found")

type Options struct {
	// StoreKind selects a backend when Store is nil: memory, sqlite or
	// badger.
	StoreKind string
	DBPath    string
	// Store overrides StoreKind. The client does not close a store it did
	// not create.
	Store storage.Store
	// Seed fixes the random source. Zero seeds from the clock.
	Seed      int64
	Logger    *zap.Logger
	Publisher events.Publisher
	// Metrics is optional; nil disables Prometheus collection.
	Metrics *telemetry.Metrics
	// Evolution replaces the default operator pipeline.
	Evolution   *evo.Engine
	Clock       func() time.Time
	IDGenerator func() string
}

type EncodeParams struct {
	// State overrides the entity's own consciousness state.
	State *model.ConsciousnessState
}

type EvolveResult struct {
	Entity    model.EncodedEntity
	Event     model.EvolutionEvent
	Pressures evo.Pressures
}

type HealResult struct {
	Entity     model.EncodedEntity
	Assessment model.DamageAssessment
	Pattern    model.HealingPattern
	Result     model.HealingResult
	Event      model.HealingEvent
}

type Client struct {
	store     storage.Store
	ownsStore bool

	logger    *zap.Logger
	publisher events.Publisher
	metrics   *telemetry.Metrics
	now       func() time.Time
	newID     func() string

	evolver    *evo.Engine
	healer     *healing.Engine
	interactor *interaction.Engine

	rngMu sync.Mutex
	rng   *rand.Rand

	locks *keyedMutex
	loads singleflight.Group

	mu           sync.RWMutex
	entities     map[string]model.EncodedEntity
	evolutions   map[string][]model.EvolutionEvent
	healings     map[string][]model.HealingEvent
	interactions map[string][]model.InteractionEvent
}

// New builds a client and initialises its store.
func New(ctx context.Context, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, owns := opts.Store, false
	if store == nil {
		dbPath := opts.DBPath
		if dbPath == "" && opts.StoreKind == storage.KindSQLite {
			dbPath = defaultDBPath
		}
		var err error
		store, err = storage.NewStore(opts.StoreKind, dbPath, logger)
		if err != nil {
			return nil, err
		}
		owns = true
	}
	if err := store.Init(ctx); err != nil {
		if owns {
			_ = storage.CloseIfSupported(store)
		}
		return nil, fmt.Errorf("init store: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	now := func() time.Time { return clock().UTC() }
	evolver := opts.Evolution
	if evolver == nil {
		evolver = evo.NewEngine()
	}

	return &Client{
		store:        store,
		ownsStore:    owns,
		logger:       logger,
		publisher:    publisher,
		metrics:      opts.Metrics,
		now:          now,
		newID:        newID,
		evolver:      evolver,
		healer:       &healing.Engine{NewID: newID, Now: now},
		interactor:   &interaction.Engine{NewID: newID, Now: now},
		rng:          rand.New(rand.NewSource(seed)),
		locks:        newKeyedMutex(),
		entities:     make(map[string]model.EncodedEntity),
		evolutions:   make(map[string][]model.EvolutionEvent),
		healings:     make(map[string][]model.HealingEvent),
		interactions: make(map[string][]model.InteractionEvent),
	}, nil
}

func (c *Client) Close() error {
	if !c.ownsStore {
		return nil
	}
	return storage.CloseIfSupported(c.store)
}

// childRand draws an independent generator for one operation. Sequential
// calls on a client with a fixed seed see the same sequence of generators.
func (c *Client) childRand() *rand.Rand {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return rand.New(rand.NewSource(c.rng.Int63()))
}

// loadEntity returns the cached entity or reads it from the store. Callers
// hold the entity lock and must not modify the returned value.
func (c *Client) loadEntity(ctx context.Context, id string) (model.EncodedEntity, error) {
	c.mu.RLock()
	entity, ok := c.entities[id]
	c.mu.RUnlock()
	if ok {
		return entity, nil
	}

	v, err, _ := c.loads.Do("entity:"+id, func() (any, error) {
		data, ok, err := c.store.Get(ctx, storage.EntityKey(id))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		entity, err := storage.DecodeEntity(data)
		if err != nil {
			return nil, fmt.Errorf("decode entity %s: %w", id, err)
		}
		c.cacheEntity(entity)
		return entity, nil
	})
	if err != nil {
		return model.EncodedEntity{}, err
	}
	return v.(model.EncodedEntity), nil
}

// cacheEntity stores a private copy of entity; callers keep ownership of the
// value they pass in.
func (c *Client) cacheEntity(entity model.EncodedEntity) {
	entity = genotype.CloneEntity(entity)
	c.mu.Lock()
	c.entities[entity.ID] = entity
	n := len(c.entities)
	c.mu.Unlock()
	c.metrics.SetCached(n)
}

func (c *Client) observe(op string, start time.Time, err error) {
	outcome := telemetry.OutcomeOK
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = telemetry.OutcomeNotFound
	case err != nil:
		outcome = telemetry.OutcomeError
	}
	c.metrics.Observe(op, outcome, time.Since(start))
}

// commit writes batch and logs store failures. Store errors are returned
// unchanged.
func (c *Client) commit(ctx context.Context, op, id string, batch *storage.Batch) error {
	if err := c.store.Commit(ctx, batch); err != nil {
		c.logger.Warn("persist failed",
			zap.String("op", op),
			zap.String("entity_id", id),
			zap.Int("writes", batch.Len()),
			zap.Error(err))
		if c.metrics != nil {
			c.metrics.PersistFailures.Inc()
		}
		return err
	}
	return nil
}

func entityWrites(batch *storage.Batch, entity model.EncodedEntity) error {
	entityData, err := storage.EncodeEntity(entity)
	if err != nil {
		return err
	}
	genomeData, err := storage.EncodeGenome(entity.Genome)
	if err != nil {
		return err
	}
	signatureData, err := storage.EncodeSignature(entity.Signature)
	if err != nil {
		return err
	}
	batch.Set(storage.EntityKey(entity.ID), entityData).
		Set(storage.GenomeKey(entity.OriginalEntityID), genomeData).
		Set(storage.SignatureKey(entity.OriginalEntityID), signatureData)
	return nil
}
