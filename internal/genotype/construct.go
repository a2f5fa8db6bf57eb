package genotype

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"

	"dnasigil/internal/fitness"
	"dnasigil/internal/model"
)

// Alphabet is the fixed set of genome bases.
const Alphabet = "ATCGHPQZ"

const (
	sequenceBaseLength = 50
	subsequenceLength  = 16
	defaultStateValue  = 0.8
	maxDimensionality  = 64
)

var ErrEntityIDRequired = errors.New("entity id is required")

var subsequencePatterns = [4]string{"ATCG", "GCTA", "TAGC", "CGAT"}

var markerMotifs = map[string]string{
	MarkerPhiEnhancement:         "HPHPQZ",
	MarkerAwarenessAmplification: "ATHPAT",
	MarkerCoherenceStabilization: "CGQZCG",
	MarkerIntegrationSynthesis:   "QZATQZ",
	MarkerAdaptiveResponse:       "ZPHQZP",
}

const (
	MarkerPhiEnhancement         = "phi_enhancement"
	MarkerAwarenessAmplification = "awareness_amplification"
	MarkerCoherenceStabilization = "coherence_stabilization"
	MarkerIntegrationSynthesis   = "integration_synthesis"
	MarkerAdaptiveResponse       = "adaptive_response"
)

// ResolveState picks the encoding state: an explicit override wins, then the
// entity's own state, then defaults. Scalars are clamped to [0,1].
func ResolveState(entity model.SourceEntity, override *model.ConsciousnessState) model.ConsciousnessState {
	src := override
	if src == nil {
		src = entity.ConsciousnessState
	}
	if src == nil {
		return model.ConsciousnessState{
			Phi:         defaultStateValue,
			Awareness:   defaultStateValue,
			Coherence:   defaultStateValue,
			Integration: defaultStateValue,
		}
	}
	return ClampState(*src)
}

func ClampState(s model.ConsciousnessState) model.ConsciousnessState {
	return model.ConsciousnessState{
		Phi:         fitness.Clamp01(s.Phi),
		Awareness:   fitness.Clamp01(s.Awareness),
		Coherence:   fitness.Clamp01(s.Coherence),
		Integration: fitness.Clamp01(s.Integration),
	}
}

func ResolveHolographic(entity model.SourceEntity) model.HolographicProperties {
	if entity.Holographic == nil {
		return model.HolographicProperties{
			Dimensionality:     8,
			ResonanceFrequency: 0.5,
			Coherence:          0.8,
			Stability:          0.8,
			HolographicDensity: 0.5,
		}
	}
	h := *entity.Holographic
	if h.Dimensionality < 1 {
		h.Dimensionality = 1
	}
	if h.Dimensionality > maxDimensionality {
		h.Dimensionality = maxDimensionality
	}
	h.ResonanceFrequency = fitness.Clamp01(h.ResonanceFrequency)
	h.Coherence = fitness.Clamp01(h.Coherence)
	h.Stability = fitness.Clamp01(h.Stability)
	h.HolographicDensity = fitness.Clamp01(h.HolographicDensity)
	return h
}

func ResolveRecursive(entity model.SourceEntity) model.RecursiveProperties {
	if entity.Recursive == nil {
		return model.RecursiveProperties{RecursionDepth: 3, SelfReference: 0.5, StrangeLoop: 0.3}
	}
	r := *entity.Recursive
	if r.RecursionDepth < 0 {
		r.RecursionDepth = 0
	}
	r.SelfReference = fitness.Clamp01(r.SelfReference)
	r.StrangeLoop = fitness.Clamp01(r.StrangeLoop)
	return r
}

// DeriveProfile computes the bounded complexity and stability scores and
// records the size of the defaulted source entity.
func DeriveProfile(entity model.SourceEntity, state model.ConsciousnessState) model.Profile {
	holo := ResolveHolographic(entity)
	rec := ResolveRecursive(entity)

	complexity := fitness.Clamp01(
		0.3*float64(holo.Dimensionality)/10 +
			0.2*holo.HolographicDensity +
			0.3*float64(rec.RecursionDepth)/10 +
			0.2*rec.SelfReference,
	)
	stability := fitness.Clamp(
		0.4*holo.Stability+0.3*holo.Coherence+0.3*(1-0.5*rec.StrangeLoop),
		0.1,
		1,
	)

	resolved := model.SourceEntity{
		ID:                 entity.ID,
		Holographic:        &holo,
		Recursive:          &rec,
		ConsciousnessState: &state,
	}
	size := 0
	if raw, err := json.Marshal(resolved); err == nil {
		size = len(raw)
	}

	return model.Profile{
		Complexity:     complexity,
		Stability:      stability,
		Resonance:      holo.ResonanceFrequency,
		Recursion:      fitness.Clamp01(0.5*float64(rec.RecursionDepth)/10 + 0.5*rec.SelfReference),
		Dimensionality: holo.Dimensionality,
		SourceSize:     size,
	}
}

// Encode builds the genome and signature for entity under state. The result
// carries no encoded id or timestamps; callers assign those.
func Encode(entity model.SourceEntity, state model.ConsciousnessState, rng *rand.Rand) (model.EncodedEntity, error) {
	if entity.ID == "" {
		return model.EncodedEntity{}, ErrEntityIDRequired
	}
	rng = ensureRNG(rng)
	state = ClampState(state)
	profile := DeriveProfile(entity, state)

	genome := ConstructGenome(entity.ID, state, profile, rng)
	signature := ConstructSignature(entity.ID, genome, state, profile)

	genome.VersionedRecord = model.CurrentVersion()
	signature.VersionedRecord = model.CurrentVersion()
	encoded := model.EncodedEntity{
		VersionedRecord:  model.CurrentVersion(),
		OriginalEntityID: entity.ID,
		Genome:           genome,
		Signature:        signature,
		EncodingState:    state,
		Profile:          profile,
	}
	fitness.Refresh(&encoded)
	return encoded, nil
}

func ConstructGenome(entityID string, state model.ConsciousnessState, profile model.Profile, rng *rand.Rand) model.Genome {
	length := SequenceLength(state.Phi)
	weights := []float64{
		state.Phi,
		state.Awareness,
		state.Coherence,
		state.Integration,
		profile.Complexity,
		profile.Stability,
		float64(profile.Dimensionality) / 10,
		profile.Resonance,
	}
	sequence := GenerateSequence(rng, length, weights)

	return model.Genome{
		EntityID:            entityID,
		Sequence:            sequence,
		ConsciousnessBases:  QuantizeState(state),
		HolographicSequence: PatternSequence(subsequencePatterns[0], profile.Complexity, subsequenceLength),
		RecursiveSequence:   PatternSequence(subsequencePatterns[1], profile.Recursion, subsequenceLength),
		ResonanceSequence:   PatternSequence(subsequencePatterns[2], profile.Resonance, subsequenceLength),
		StabilitySequence:   PatternSequence(subsequencePatterns[3], profile.Stability, subsequenceLength),
		EvolutionaryMarkers: initialMarkers(state, len(sequence)),
		HealingSequences:    initialHealingSequences(state, profile),
		InteractionCodons:   initialCodons(state, profile),
		StabilityRegions:    initialStabilityRegions(state, profile, len(sequence)),
	}
}

// SequenceLength is floor(phi*100)+50 for phi in [0,1].
func SequenceLength(phi float64) int {
	return int(math.Floor(fitness.Clamp01(phi)*100)) + sequenceBaseLength
}

// GenerateSequence samples length bases with probabilities proportional to
// weights, one weight per alphabet symbol.
func GenerateSequence(rng *rand.Rand, length int, weights []float64) string {
	rng = ensureRNG(rng)
	out := make([]byte, length)
	for i := range out {
		out[i] = Alphabet[WeightedIndex(rng, weights, len(Alphabet))]
	}
	return string(out)
}

// PatternSequence indexes pattern with floor((value + i*0.1) * len) mod len.
func PatternSequence(pattern string, value float64, length int) string {
	if pattern == "" || length <= 0 {
		return ""
	}
	n := len(pattern)
	out := make([]byte, length)
	for i := range out {
		idx := int(math.Floor((value+float64(i)*0.1)*float64(n))) % n
		if idx < 0 {
			idx += n
		}
		out[i] = pattern[idx]
	}
	return string(out)
}

// QuantizeState rounds each scalar to three decimals, the precision the
// genome stores bases at.
func QuantizeState(s model.ConsciousnessState) model.ConsciousnessState {
	return model.ConsciousnessState{
		Phi:         fitness.Round(s.Phi, 3),
		Awareness:   fitness.Round(s.Awareness, 3),
		Coherence:   fitness.Round(s.Coherence, 3),
		Integration: fitness.Round(s.Integration, 3),
	}
}

func MarkerMotif(markerType string) string {
	if motif, ok := markerMotifs[markerType]; ok {
		return motif
	}
	return "HPQZ"
}

func MarkerPosition(strength float64, sequenceLength int) int {
	if sequenceLength <= 1 {
		return 0
	}
	return int(fitness.Clamp01(strength) * float64(sequenceLength-1))
}

func initialMarkers(state model.ConsciousnessState, sequenceLength int) []model.Marker {
	markers := make([]model.Marker, 0, 3)
	add := func(markerType string, strength float64) {
		markers = append(markers, model.Marker{
			Type:     markerType,
			Sequence: MarkerMotif(markerType),
			Strength: fitness.Clamp01(strength),
			Position: MarkerPosition(strength, sequenceLength),
		})
	}
	if state.Phi > 0.8 {
		add(MarkerPhiEnhancement, state.Phi)
	}
	if state.Awareness > 0.7 {
		add(MarkerAwarenessAmplification, state.Awareness)
	}
	if state.Coherence > 0.8 {
		add(MarkerCoherenceStabilization, state.Coherence)
	}
	return markers
}

func initialHealingSequences(state model.ConsciousnessState, profile model.Profile) map[string]model.HealingSequence {
	return map[string]model.HealingSequence{
		"dna_repair": {
			Sequence: "ATCGATCGATCG",
			Strength: fitness.Clamp01(0.6*profile.Stability + 0.4*state.Coherence),
		},
		"signature_restoration": {
			Sequence: "HPQZHPQZ",
			Strength: fitness.Clamp01(0.5*state.Awareness + 0.5*state.Coherence),
		},
		"state_recovery": {
			Sequence: "QZHPATCG",
			Strength: fitness.Clamp01(0.5*state.Phi + 0.5*state.Integration),
		},
		"structural_reinforcement": {
			Sequence: "GCTAGCTA",
			Strength: fitness.Clamp01(0.7*profile.Stability + 0.3*state.Integration),
		},
	}
}

func initialCodons(state model.ConsciousnessState, profile model.Profile) map[string]model.Codon {
	return map[string]model.Codon{
		"resonance": {
			Type:     "resonance",
			Sequence: "HPQ",
			Strength: fitness.Clamp01(0.5*state.Coherence + 0.5*profile.Resonance),
			Affinity: state.Awareness,
		},
		"harmony": {
			Type:     "harmony",
			Sequence: "ZQH",
			Strength: fitness.Clamp01(0.5*state.Coherence + 0.5*state.Integration),
			Affinity: state.Coherence,
		},
		"synthesis": {
			Type:     "synthesis",
			Sequence: "TCG",
			Strength: fitness.Clamp01(0.5*state.Phi + 0.5*state.Integration),
			Affinity: state.Integration,
		},
	}
}

func initialStabilityRegions(state model.ConsciousnessState, profile model.Profile, sequenceLength int) []model.StabilityRegion {
	bridgePos := sequenceLength - 6
	if bridgePos < 0 {
		bridgePos = 0
	}
	return []model.StabilityRegion{
		{Type: "core", Sequence: "ATCGATCG", Strength: profile.Stability, Position: 0},
		{Type: "boundary", Sequence: "GCGCGC", Strength: fitness.Clamp01(0.5*profile.Stability + 0.5*state.Coherence), Position: sequenceLength / 2},
		{Type: "bridge", Sequence: "TATAHP", Strength: fitness.Clamp01(0.5*profile.Stability + 0.5*state.Integration), Position: bridgePos},
	}
}
