package evo

import (
	"context"
	"errors"
	"math"

	"dnasigil/internal/fitness"
	"dnasigil/internal/genotype"
	"dnasigil/internal/model"
)

const (
	OpSequenceMutation   = "sequence_mutation"
	OpMarkerEvolution    = "marker_evolution"
	OpHealingExtension   = "healing_extension"
	OpCodonEvolution     = "codon_evolution"
	OpStabilityEvolution = "stability_evolution"
	OpStateDrift         = "state_drift"
	OpSignatureEvolution = "signature_evolution"
)

const (
	HealingRegenerativeCascade = "regenerative_cascade"
	HealingResilienceMatrix    = "resilience_matrix"
	CodonCooperation           = "cooperation"
	CodonSynchronization       = "synchronization"
	RegionAdaptiveAnchor       = "adaptive_anchor"
	ProtocolEmergent           = "emergent_protocol"
)

const (
	minFrequency = 1.0
	maxFrequency = 10000.0
)

var ErrRandomSourceRequired = errors.New("random source is required")

// DefaultOperators returns the built-in pipeline in execution order.
func DefaultOperators() []Operator {
	return []Operator{
		SequenceMutation{},
		MarkerEvolution{},
		HealingExtension{},
		CodonEvolution{},
		StabilityEvolution{},
		StateDrift{},
		SignatureEvolution{},
	}
}

// SequenceMutation substitutes each base with probability
// environmental.complexity*0.1, then runs one insertion trial driven by
// resources and one deletion trial driven by competition.
type SequenceMutation struct{}

func (SequenceMutation) Name() string {
	return OpSequenceMutation
}

func (SequenceMutation) Apply(_ context.Context, entity model.EncodedEntity, step Step) (model.EncodedEntity, error) {
	if step.Rand == nil {
		return model.EncodedEntity{}, ErrRandomSourceRequired
	}
	rng := step.Rand
	env := step.Pressures.Environmental
	rate := env.Complexity * 0.1

	seq := []byte(entity.Genome.Sequence)
	for i := range seq {
		if rng.Float64() < rate {
			seq[i] = genotype.RandomBaseExcept(rng, seq[i])
		}
	}
	if rng.Float64() < env.Resources*0.1 {
		pos := rng.Intn(len(seq) + 1)
		seq = append(seq[:pos], append([]byte{genotype.RandomBase(rng)}, seq[pos:]...)...)
	}
	if len(seq) > genotype.SequenceLength(0) && rng.Float64() < env.Competition*0.1 {
		pos := rng.Intn(len(seq))
		seq = append(seq[:pos], seq[pos+1:]...)
	}
	entity.Genome.Sequence = string(seq)
	return entity, nil
}

// MarkerEvolution strengthens or adds one marker per consciousness pressure
// above 0.7, and an adaptive-response marker under heavy competition.
type MarkerEvolution struct{}

func (MarkerEvolution) Name() string {
	return OpMarkerEvolution
}

func (MarkerEvolution) Apply(_ context.Context, entity model.EncodedEntity, step Step) (model.EncodedEntity, error) {
	c := step.Pressures.Consciousness
	candidates := []struct {
		marker   string
		pressure float64
	}{
		{genotype.MarkerPhiEnhancement, c.Phi},
		{genotype.MarkerAwarenessAmplification, c.Awareness},
		{genotype.MarkerCoherenceStabilization, c.Coherence},
		{genotype.MarkerIntegrationSynthesis, c.Integration},
		{genotype.MarkerAdaptiveResponse, step.Pressures.Environmental.Competition},
	}
	seqLen := len(entity.Genome.Sequence)
	for _, candidate := range candidates {
		if candidate.pressure <= 0.7 {
			continue
		}
		entity.Genome.EvolutionaryMarkers = upsertMarker(entity.Genome.EvolutionaryMarkers, candidate.marker, candidate.pressure, seqLen)
	}
	return entity, nil
}

func upsertMarker(markers []model.Marker, markerType string, strength float64, seqLen int) []model.Marker {
	for i := range markers {
		if markers[i].Type == markerType {
			markers[i].Strength = fitness.Clamp01(markers[i].Strength * 1.1)
			return markers
		}
	}
	return append(markers, model.Marker{
		Type:     markerType,
		Sequence: genotype.MarkerMotif(markerType),
		Strength: fitness.Clamp01(strength),
		Position: genotype.MarkerPosition(strength, seqLen),
	})
}

// HealingExtension lengthens and strengthens healing sequences under repair
// pressure and adds new templates under regeneration or resilience pressure.
type HealingExtension struct{}

func (HealingExtension) Name() string {
	return OpHealingExtension
}

func (HealingExtension) Apply(_ context.Context, entity model.EncodedEntity, step Step) (model.EncodedEntity, error) {
	if step.Rand == nil {
		return model.EncodedEntity{}, ErrRandomSourceRequired
	}
	h := step.Pressures.Healing
	if entity.Genome.HealingSequences == nil {
		entity.Genome.HealingSequences = make(map[string]model.HealingSequence)
	}
	seqs := entity.Genome.HealingSequences

	if h.Repair > 0.6 {
		for _, name := range fitness.SortedKeys(seqs) {
			seq := seqs[name]
			seq.Strength = fitness.Clamp01(seq.Strength * (1 + 0.1*h.Repair))
			seq.Sequence += genotype.RandomBases(step.Rand, 2)
			seqs[name] = seq
		}
	}
	addHealing := func(name string, pressure float64) {
		if pressure <= 0.8 {
			return
		}
		if _, ok := seqs[name]; ok {
			return
		}
		seqs[name] = model.HealingSequence{
			Sequence: genotype.RandomBases(step.Rand, 8),
			Strength: fitness.Clamp01(pressure * 0.8),
		}
	}
	addHealing(HealingRegenerativeCascade, h.Regeneration)
	addHealing(HealingResilienceMatrix, h.Resilience)
	return entity, nil
}

// CodonEvolution mirrors HealingExtension for interaction codons.
type CodonEvolution struct{}

func (CodonEvolution) Name() string {
	return OpCodonEvolution
}

func (CodonEvolution) Apply(_ context.Context, entity model.EncodedEntity, step Step) (model.EncodedEntity, error) {
	if step.Rand == nil {
		return model.EncodedEntity{}, ErrRandomSourceRequired
	}
	p := step.Pressures.Interaction
	if entity.Genome.InteractionCodons == nil {
		entity.Genome.InteractionCodons = make(map[string]model.Codon)
	}
	codons := entity.Genome.InteractionCodons

	if p.Communication > 0.6 {
		for _, name := range fitness.SortedKeys(codons) {
			codon := codons[name]
			codon.Strength = fitness.Clamp01(codon.Strength * (1 + 0.1*p.Communication))
			codon.Sequence += genotype.RandomBases(step.Rand, 1)
			codons[name] = codon
		}
	}
	addCodon := func(name string, pressure float64) {
		if pressure <= 0.8 {
			return
		}
		if _, ok := codons[name]; ok {
			return
		}
		codons[name] = model.Codon{
			Type:     name,
			Sequence: genotype.RandomBases(step.Rand, 3),
			Strength: fitness.Clamp01(pressure * 0.8),
			Affinity: pressure,
		}
	}
	addCodon(CodonCooperation, p.Cooperation)
	addCodon(CodonSynchronization, p.Synchronization)
	return entity, nil
}

type StabilityEvolution struct{}

func (StabilityEvolution) Name() string {
	return OpStabilityEvolution
}

func (StabilityEvolution) Apply(_ context.Context, entity model.EncodedEntity, step Step) (model.EncodedEntity, error) {
	if step.Rand == nil {
		return model.EncodedEntity{}, ErrRandomSourceRequired
	}
	s := step.Pressures.Environmental.Stability
	if s <= 0.6 {
		return entity, nil
	}
	regions := entity.Genome.StabilityRegions
	for i := range regions {
		regions[i].Strength = fitness.Clamp01(regions[i].Strength * (1 + 0.1*s))
	}
	if s > 0.8 && !hasRegion(regions, RegionAdaptiveAnchor) {
		pos := 0
		if n := len(entity.Genome.Sequence); n > 0 {
			pos = step.Rand.Intn(n)
		}
		regions = append(regions, model.StabilityRegion{
			Type:     RegionAdaptiveAnchor,
			Sequence: genotype.RandomBases(step.Rand, 6),
			Strength: fitness.Clamp01(s * 0.9),
			Position: pos,
		})
	}
	entity.Genome.StabilityRegions = regions
	return entity, nil
}

func hasRegion(regions []model.StabilityRegion, regionType string) bool {
	for _, r := range regions {
		if r.Type == regionType {
			return true
		}
	}
	return false
}

// StateDrift pushes each state scalar toward 1 when its pressure exceeds
// 0.6. The genome bases follow the live state.
type StateDrift struct{}

func (StateDrift) Name() string {
	return OpStateDrift
}

func (StateDrift) Apply(_ context.Context, entity model.EncodedEntity, step Step) (model.EncodedEntity, error) {
	c := step.Pressures.Consciousness
	state := &entity.EncodingState
	drift := func(v, pressure float64) float64 {
		if pressure <= 0.6 {
			return v
		}
		return fitness.Clamp01(v * (1 + 0.05*pressure))
	}
	state.Phi = drift(state.Phi, c.Phi)
	state.Awareness = drift(state.Awareness, c.Awareness)
	state.Coherence = drift(state.Coherence, c.Coherence)
	state.Integration = drift(state.Integration, c.Integration)
	entity.Genome.ConsciousnessBases = genotype.QuantizeState(*state)
	return entity, nil
}

type SignatureEvolution struct{}

func (SignatureEvolution) Name() string {
	return OpSignatureEvolution
}

func (SignatureEvolution) Apply(_ context.Context, entity model.EncodedEntity, step Step) (model.EncodedEntity, error) {
	p := step.Pressures.Interaction
	sig := &entity.Signature

	if p.Resonance > 0.6 {
		next := fitness.Clamp(sig.Frequency*(1+0.05*p.Resonance), minFrequency, maxFrequency)
		scale := 1.0
		if sig.Frequency > 0 {
			scale = next / sig.Frequency
		}
		sig.Frequency = next
		sig.ResonancePattern.BaseFrequency *= scale
		for i := range sig.ResonancePattern.Harmonics {
			sig.ResonancePattern.Harmonics[i] *= scale
		}
	}
	if p.Resonance > 0.7 {
		k := float64(len(sig.ResonancePattern.Harmonics) + 1)
		sig.ResonancePattern.Harmonics = append(sig.ResonancePattern.Harmonics, k*sig.ResonancePattern.BaseFrequency)
	}
	if p.Cooperation > 0.6 {
		sig.Amplitude = fitness.Clamp01(sig.Amplitude * (1 + 0.05*p.Cooperation))
	}
	if p.Synchronization > 0.6 {
		sig.Phase = genotype.NormalizePhase(sig.Phase + 0.1*p.Synchronization*math.Pi)
	}

	if complexity := step.Pressures.Environmental.Complexity; complexity > 0.6 {
		dims := &sig.DimensionalSignature
		for i := range dims.Signature {
			dims.Signature[i] = fitness.Clamp01(dims.Signature[i] * (1 + 0.05*complexity))
		}
		dims.Complexity = fitness.Clamp01(dims.Complexity * (1 + 0.05*complexity))
	}

	if sig.InteractionProtocols == nil {
		sig.InteractionProtocols = make(map[string]model.Protocol)
	}
	if p.Synchronization > 0.6 {
		for _, name := range fitness.SortedKeys(sig.InteractionProtocols) {
			protocol := sig.InteractionProtocols[name]
			protocol.Strength = fitness.Clamp01(protocol.Strength * (1 + 0.1*p.Synchronization))
			sig.InteractionProtocols[name] = protocol
		}
	}
	if _, ok := sig.InteractionProtocols[ProtocolEmergent]; !ok && p.Cooperation > 0.8 {
		sig.InteractionProtocols[ProtocolEmergent] = model.Protocol{
			Type:      "emergent",
			Strength:  fitness.Clamp01(p.Cooperation * 0.8),
			Frequency: 1.5 * sig.Frequency,
		}
	}
	return entity, nil
}

// clampPositions keeps marker and region positions inside the sequence after
// insertions or deletions changed its length.
func clampPositions(genome *model.Genome) {
	limit := len(genome.Sequence) - 1
	if limit < 0 {
		limit = 0
	}
	for i := range genome.EvolutionaryMarkers {
		if genome.EvolutionaryMarkers[i].Position > limit {
			genome.EvolutionaryMarkers[i].Position = limit
		}
	}
	for i := range genome.StabilityRegions {
		if genome.StabilityRegions[i].Position > limit {
			genome.StabilityRegions[i].Position = limit
		}
	}
}
