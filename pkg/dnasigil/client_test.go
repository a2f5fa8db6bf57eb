package dnasigil

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"dnasigil/internal/events"
	"dnasigil/internal/evo"
	"dnasigil/internal/healing"
	"dnasigil/internal/interaction"
	"dnasigil/internal/model"
	"dnasigil/internal/stats"
	"dnasigil/internal/storage"
	"dnasigil/internal/telemetry"
)

var fixedTime = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return fixedTime }
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = sequentialIDs("id")
	}
	c, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sourceEntity(id string, state model.ConsciousnessState) model.SourceEntity {
	return model.SourceEntity{ID: id, ConsciousnessState: &state}
}

func TestEncodePersistsAndCaches(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	c := newTestClient(t, Options{Store: store})

	encoded, err := c.Encode(ctx, sourceEntity("src-1", model.ConsciousnessState{Phi: 0.7, Awareness: 0.6, Coherence: 0.8, Integration: 0.5}), EncodeParams{})
	require.NoError(t, err)
	assert.Equal(t, "src-1", encoded.OriginalEntityID)
	assert.Equal(t, fixedTime, encoded.CreatedAt)
	assert.Zero(t, encoded.EvolutionGeneration)

	cached, ok := c.EncodedEntity(encoded.ID)
	require.True(t, ok)
	if diff := cmp.Diff(encoded, cached); diff != "" {
		t.Fatalf("cached entity mismatch (-want +got):\n%s", diff)
	}
	genome, ok := c.Genome(encoded.ID)
	require.True(t, ok)
	assert.Equal(t, encoded.Genome.Sequence, genome.Sequence)
	sig, ok := c.Signature(encoded.ID)
	require.True(t, ok)
	assert.Equal(t, encoded.Signature.AuthenticationHash, sig.AuthenticationHash)

	for _, key := range []string{
		storage.EntityKey(encoded.ID),
		storage.GenomeKey("src-1"),
		storage.SignatureKey("src-1"),
	} {
		has, err := store.Has(ctx, key)
		require.NoError(t, err)
		assert.True(t, has, key)
	}
}

func TestEncodeParamsStateOverridesEntityState(t *testing.T) {
	c := newTestClient(t, Options{})
	override := model.ConsciousnessState{Phi: 0.1, Awareness: 0.2, Coherence: 0.3, Integration: 0.4}

	encoded, err := c.Encode(context.Background(), sourceEntity("src-1", model.ConsciousnessState{Phi: 0.9}), EncodeParams{State: &override})
	require.NoError(t, err)
	assert.Equal(t, override, encoded.EncodingState)
}

func TestEncodeRejectsMissingSourceID(t *testing.T) {
	c := newTestClient(t, Options{})
	_, err := c.Encode(context.Background(), model.SourceEntity{}, EncodeParams{})
	require.Error(t, err)
	assert.Zero(t, c.EncodingMetrics().Count)
}

func TestGettersReturnCopies(t *testing.T) {
	c := newTestClient(t, Options{})
	encoded, err := c.Encode(context.Background(), sourceEntity("src-1", model.ConsciousnessState{Phi: 0.9}), EncodeParams{})
	require.NoError(t, err)
	require.NotEmpty(t, encoded.Genome.EvolutionaryMarkers)

	genome, _ := c.Genome(encoded.ID)
	genome.EvolutionaryMarkers[0].Strength = 99

	again, _ := c.Genome(encoded.ID)
	assert.NotEqual(t, 99.0, again.EvolutionaryMarkers[0].Strength)

	_, ok := c.EncodedEntity("missing")
	assert.False(t, ok)
}

func scribble(e *model.EncodedEntity) {
	e.Genome.HealingSequences["dna_repair"] = model.HealingSequence{Sequence: "X"}
	e.Genome.InteractionCodons["scribbled"] = model.Codon{}
	for i := range e.Genome.EvolutionaryMarkers {
		e.Genome.EvolutionaryMarkers[i].Strength = 0
	}
	for i := range e.Genome.StabilityRegions {
		e.Genome.StabilityRegions[i].Strength = 0
	}
	e.Signature.InteractionProtocols["phase_lock"] = model.Protocol{Type: "scribbled"}
	for i := range e.Signature.ResonancePattern.Harmonics {
		e.Signature.ResonancePattern.Harmonics[i] = -1
	}
}

func TestOperationResultsDoNotShareCache(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	bus.Subscribe(events.EntityEncoded, func(e events.Event) {
		entity := e.Payload.(model.EncodedEntity)
		scribble(&entity)
	})
	c := newTestClient(t, Options{Publisher: bus})

	checkUntouched := func(id string, op func() model.EncodedEntity) {
		t.Helper()
		returned := op()
		cached, ok := c.EncodedEntity(id)
		require.True(t, ok)
		require.Empty(t, cmp.Diff(returned, cached))

		scribble(&returned)
		after, _ := c.EncodedEntity(id)
		if diff := cmp.Diff(cached, after); diff != "" {
			t.Fatalf("cached entity changed through returned value (-before +after):\n%s", diff)
		}
	}

	encoded, err := c.Encode(ctx, sourceEntity("src-1", model.ConsciousnessState{Phi: 0.9}), EncodeParams{})
	require.NoError(t, err)
	require.NotEmpty(t, encoded.Genome.EvolutionaryMarkers)
	cached, _ := c.EncodedEntity(encoded.ID)
	require.Empty(t, cmp.Diff(encoded, cached), "event subscriber reached the cache")
	checkUntouched(encoded.ID, func() model.EncodedEntity { return encoded })

	checkUntouched(encoded.ID, func() model.EncodedEntity {
		res, err := c.Evolve(ctx, encoded.ID, evo.Pressures{})
		require.NoError(t, err)
		return res.Entity
	})
	checkUntouched(encoded.ID, func() model.EncodedEntity {
		res, err := c.Heal(ctx, encoded.ID, healing.DamageParams{SequenceCorruption: 0.8, PhiDegradation: 0.5})
		require.NoError(t, err)
		return res.Entity
	})

	stored, ok, err := c.store.Get(ctx, storage.EntityKey(encoded.ID))
	require.NoError(t, err)
	require.True(t, ok)
	persisted, err := storage.DecodeEntity(stored)
	require.NoError(t, err)
	assert.NotEqual(t, "scribbled", persisted.Signature.InteractionProtocols["phase_lock"].Type)
	assert.NotEqual(t, "X", persisted.Genome.HealingSequences["dna_repair"].Sequence)
}

func TestEvolveIncrementsGenerationAndHistory(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})
	encoded, err := c.Encode(ctx, sourceEntity("src-1", model.ConsciousnessState{Phi: 0.6, Awareness: 0.6, Coherence: 0.6, Integration: 0.6}), EncodeParams{})
	require.NoError(t, err)

	const n = 5
	for i := 1; i <= n; i++ {
		res, err := c.Evolve(ctx, encoded.ID, evo.Pressures{})
		require.NoError(t, err)
		assert.Equal(t, i, res.Entity.EvolutionGeneration)
		assert.Equal(t, i, res.Event.Generation)
		assert.Equal(t, evo.DefaultPressures(), res.Pressures)
	}

	current, ok := c.EncodedEntity(encoded.ID)
	require.True(t, ok)
	assert.Equal(t, n, current.EvolutionGeneration)
	assert.Equal(t, encoded.ID, current.ID)

	history, err := c.EvolutionaryHistory(ctx, encoded.ID)
	require.NoError(t, err)
	require.Len(t, history, n)
	for i, event := range history {
		assert.Equal(t, i+1, event.Generation)
		assert.Equal(t, encoded.ID, event.EntityID)
		assert.Equal(t, model.CurrentVersion(), event.VersionedRecord)
	}
}

func TestUnknownEntityIsNotFound(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})

	_, err := c.Evolve(ctx, "missing", evo.Pressures{})
	assert.True(t, errors.Is(err, ErrNotFound), "evolve: %v", err)

	_, err = c.Heal(ctx, "missing", healing.DamageParams{})
	assert.ErrorIs(t, err, ErrNotFound)

	encoded, err := c.Encode(ctx, sourceEntity("src-1", model.ConsciousnessState{}), EncodeParams{})
	require.NoError(t, err)
	_, err = c.Interact(ctx, encoded.ID, "missing", interaction.Params{})
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := c.InteractionHistory(ctx, encoded.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = c.Export(ctx, "missing", t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHealMovesPhiTowardCanonical(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})
	encoded, err := c.Encode(ctx, sourceEntity("src-1", model.ConsciousnessState{Phi: 0.2, Awareness: 0.3, Coherence: 0.3, Integration: 0.3}), EncodeParams{})
	require.NoError(t, err)

	res, err := c.Heal(ctx, encoded.ID, healing.DamageParams{ConsciousnessDisruption: 0.5})
	require.NoError(t, err)

	before := math.Abs(encoded.EncodingState.Phi - healing.CanonicalState.Phi)
	after := math.Abs(res.Entity.EncodingState.Phi - healing.CanonicalState.Phi)
	assert.Less(t, after, before)
	assert.Equal(t, 1, res.Entity.HealingCount)
	assert.Equal(t, 1, res.Event.HealCount)

	history, err := c.HealingHistory(ctx, encoded.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.Event.ID, history[0].ID)

	_, err = c.Heal(ctx, encoded.ID, healing.DamageParams{})
	require.NoError(t, err)
	history, err = c.HealingHistory(ctx, encoded.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "cached history is appended after load")
}

func TestInteractRecordsBothSides(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})
	a, err := c.Encode(ctx, sourceEntity("src-a", model.ConsciousnessState{Phi: 0.8, Awareness: 0.8, Coherence: 0.8, Integration: 0.8}), EncodeParams{})
	require.NoError(t, err)
	b, err := c.Encode(ctx, sourceEntity("src-b", model.ConsciousnessState{Phi: 0.81, Awareness: 0.79, Coherence: 0.8, Integration: 0.8}), EncodeParams{})
	require.NoError(t, err)

	result, err := c.Interact(ctx, a.ID, b.ID, interaction.Params{Context: "pairing"})
	require.NoError(t, err)
	assert.Contains(t, []model.InteractionType{model.InteractionSynergistic, model.InteractionCooperative}, result.Type)
	assert.Equal(t, "pairing", result.Context)

	histA, err := c.InteractionHistory(ctx, a.ID)
	require.NoError(t, err)
	histB, err := c.InteractionHistory(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, histA, 1)
	require.Len(t, histB, 1)
	assert.Equal(t, b.ID, histA[0].PartnerID)
	assert.Equal(t, a.ID, histB[0].PartnerID)
	assert.Equal(t, result.ID, histA[0].Result.ID)
	assert.Equal(t, result.ID, histB[0].Result.ID)

	unchangedA, _ := c.EncodedEntity(a.ID)
	if diff := cmp.Diff(a, unchangedA); diff != "" {
		t.Fatalf("interaction modified entity (-want +got):\n%s", diff)
	}
}

func TestInteractWithSelf(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})
	a, err := c.Encode(ctx, sourceEntity("src-a", model.ConsciousnessState{Phi: 0.5}), EncodeParams{})
	require.NoError(t, err)

	result, err := c.Interact(ctx, a.ID, a.ID, interaction.Params{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.ConsciousnessAlignment)

	history, err := c.InteractionHistory(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSameSeedIsDeterministic(t *testing.T) {
	run := func() (model.EncodedEntity, model.HealingEvent) {
		ctx := context.Background()
		c := newTestClient(t, Options{Seed: 7, IDGenerator: sequentialIDs("det")})
		encoded, err := c.Encode(ctx, sourceEntity("src-1", model.ConsciousnessState{Phi: 0.4, Awareness: 0.7, Coherence: 0.2, Integration: 0.9}), EncodeParams{})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := c.Evolve(ctx, encoded.ID, evo.Pressures{})
			require.NoError(t, err)
		}
		res, err := c.Heal(ctx, encoded.ID, healing.DamageParams{Ambient: true, SequenceCorruption: 0.6})
		require.NoError(t, err)
		return res.Entity, res.Event
	}

	entityA, eventA := run()
	entityB, eventB := run()
	if diff := cmp.Diff(entityA, entityB); diff != "" {
		t.Fatalf("entities diverged (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(eventA, eventB); diff != "" {
		t.Fatalf("healing events diverged (-first +second):\n%s", diff)
	}
}

func TestConcurrentEvolveSerialisesPerEntity(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	c, err := New(ctx, Options{Seed: 3})
	require.NoError(t, err)
	defer c.Close()

	encoded, err := c.Encode(ctx, sourceEntity("src-1", model.ConsciousnessState{Phi: 0.5}), EncodeParams{})
	require.NoError(t, err)

	const workers, perWorker = 8, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := c.Evolve(ctx, encoded.ID, evo.Pressures{}); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("evolve: %v", err)
	}

	current, ok := c.EncodedEntity(encoded.ID)
	require.True(t, ok)
	assert.Equal(t, workers*perWorker, current.EvolutionGeneration)

	history, err := c.EvolutionaryHistory(ctx, encoded.ID)
	require.NoError(t, err)
	require.Len(t, history, workers*perWorker)
	for i, event := range history {
		assert.Equal(t, i+1, event.Generation)
	}
	assert.Zero(t, c.locks.size())
}

func TestHistorySurvivesNewClientOnSharedStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := newTestClient(t, Options{Store: store})
	encoded, err := first.Encode(ctx, sourceEntity("src-1", model.ConsciousnessState{Phi: 0.5}), EncodeParams{})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := first.Evolve(ctx, encoded.ID, evo.Pressures{})
		require.NoError(t, err)
	}
	_, err = first.Heal(ctx, encoded.ID, healing.DamageParams{MarkerLoss: 0.4})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newTestClient(t, Options{Store: store, IDGenerator: sequentialIDs("second")})
	_, ok := second.EncodedEntity(encoded.ID)
	assert.False(t, ok, "new client starts with an empty cache")

	evolutions, err := second.EvolutionaryHistory(ctx, encoded.ID)
	require.NoError(t, err)
	assert.Len(t, evolutions, 2)
	healings, err := second.HealingHistory(ctx, encoded.ID)
	require.NoError(t, err)
	assert.Len(t, healings, 1)

	res, err := second.Evolve(ctx, encoded.ID, evo.Pressures{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Entity.EvolutionGeneration)
	assert.Equal(t, 1, res.Entity.HealingCount)
}

func TestBadgerStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "badger")

	first, err := New(ctx, Options{StoreKind: storage.KindBadger, DBPath: dir, Seed: 1})
	require.NoError(t, err)
	encoded, err := first.Encode(ctx, sourceEntity("src-1", model.ConsciousnessState{Phi: 0.5}), EncodeParams{})
	require.NoError(t, err)
	_, err = first.Evolve(ctx, encoded.ID, evo.Pressures{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(ctx, Options{StoreKind: storage.KindBadger, DBPath: dir, Seed: 1})
	require.NoError(t, err)
	defer second.Close()

	n, err := second.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	reloaded, ok := second.EncodedEntity(encoded.ID)
	require.True(t, ok)
	assert.Equal(t, 1, reloaded.EvolutionGeneration)

	history, err := second.EvolutionaryHistory(ctx, encoded.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestWarmRepopulatesMetrics(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	first := newTestClient(t, Options{Store: store})
	for _, id := range []string{"src-a", "src-b", "src-c"} {
		_, err := first.Encode(ctx, sourceEntity(id, model.ConsciousnessState{Phi: 0.5, Awareness: 0.5}), EncodeParams{})
		require.NoError(t, err)
	}
	want := first.EncodingMetrics()
	require.Equal(t, 3, want.Count)

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	second := newTestClient(t, Options{Store: store, Metrics: metrics})
	assert.Zero(t, second.EncodingMetrics().Count)

	n, err := second.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	if diff := cmp.Diff(want, second.EncodingMetrics()); diff != "" {
		t.Fatalf("metrics mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CachedEntities))

	n, err = second.Warm(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "already cached entities are not counted again")
	assert.Equal(t, 3, second.EncodingMetrics().Count)
}

func TestWarmSkipsUnknownVersions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(ctx))
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "fixtures", "encoded_entity_v2.json"))
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "future-entity", data))

	c := newTestClient(t, Options{Store: store})
	n, err := c.Warm(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExportWritesDossier(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})
	a, err := c.Encode(ctx, sourceEntity("src-a", model.ConsciousnessState{Phi: 0.6}), EncodeParams{})
	require.NoError(t, err)
	b, err := c.Encode(ctx, sourceEntity("src-b", model.ConsciousnessState{Phi: 0.4}), EncodeParams{})
	require.NoError(t, err)
	_, err = c.Evolve(ctx, a.ID, evo.Pressures{})
	require.NoError(t, err)
	_, err = c.Interact(ctx, a.ID, b.ID, interaction.Params{})
	require.NoError(t, err)

	base := t.TempDir()
	dir, err := c.Export(ctx, a.ID, base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, a.ID), dir)

	dossier, err := stats.ReadDossier(dir)
	require.NoError(t, err)
	assert.Equal(t, a.ID, dossier.Entity.ID)
	assert.Len(t, dossier.Evolution, 1)
	assert.Empty(t, dossier.Healing)
	assert.Len(t, dossier.Interactions, 1)

	index, err := stats.ListExportIndex(base)
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, a.ID, index[0].EntityID)
	assert.Equal(t, fixedTime.Format(time.RFC3339), index[0].ExportedAtUTC)
}

func TestPublisherReceivesEventsAfterCommit(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	var names []events.Name
	bus.SubscribeAll(func(e events.Event) { names = append(names, e.Name) })

	c := newTestClient(t, Options{Publisher: bus})
	a, err := c.Encode(ctx, sourceEntity("src-a", model.ConsciousnessState{Phi: 0.6}), EncodeParams{})
	require.NoError(t, err)
	_, err = c.Evolve(ctx, a.ID, evo.Pressures{})
	require.NoError(t, err)
	_, err = c.Heal(ctx, a.ID, healing.DamageParams{})
	require.NoError(t, err)
	_, err = c.Interact(ctx, a.ID, a.ID, interaction.Params{})
	require.NoError(t, err)

	assert.Equal(t, []events.Name{
		events.EntityEncoded,
		events.EntityEvolved,
		events.EntityHealed,
		events.EntitiesInteracted,
	}, names)
}

type failingStore struct {
	*storage.MemoryStore
}

var errDiskFull = errors.New("disk full")

func (failingStore) Commit(context.Context, *storage.Batch) error {
	return errDiskFull
}

func TestPersistFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	bus := events.NewBus()
	emitted := 0
	bus.SubscribeAll(func(events.Event) { emitted++ })

	c := newTestClient(t, Options{Store: failingStore{storage.NewMemoryStore()}, Metrics: metrics, Publisher: bus})
	_, err := c.Encode(ctx, sourceEntity("src-1", model.ConsciousnessState{}), EncodeParams{})
	require.ErrorIs(t, err, errDiskFull)

	assert.Zero(t, c.EncodingMetrics().Count)
	assert.Zero(t, emitted)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PersistFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues("encode", telemetry.OutcomeError)))
}

func TestNewRejectsUnknownStoreKind(t *testing.T) {
	_, err := New(context.Background(), Options{StoreKind: "etcd"})
	require.Error(t, err)
}
