package interaction

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"dnasigil/internal/fitness"
	"dnasigil/internal/model"
)

type Params = model.InteractionParams

var ErrRandomSourceRequired = errors.New("random source is required")

const (
	goldenRatio          = 0.618
	goldenRatioTolerance = 0.1
	successThreshold     = 0.6
	minFragment          = 4
	maxFragment          = 8
)

const (
	DirectionAToB = "a_to_b"
	DirectionBToA = "b_to_a"
)

type Engine struct {
	NewID func() string
	Now   func() time.Time
}

func NewEngine() *Engine {
	return &Engine{NewID: uuid.NewString, Now: time.Now}
}

// Interact scores a pair of entities. Scores are computed over the pair
// ordered by encoded id, so swapping a and b yields identical strength, type
// and stability; only mutual-effect direction follows the caller's order.
// Neither entity is modified.
func (e *Engine) Interact(ctx context.Context, a, b model.EncodedEntity, params Params, rng *rand.Rand) (model.InteractionResult, error) {
	if rng == nil {
		return model.InteractionResult{}, ErrRandomSourceRequired
	}
	if err := ctx.Err(); err != nil {
		return model.InteractionResult{}, err
	}

	x, y, swapped := a, b, false
	if b.ID < a.ID {
		x, y, swapped = b, a, true
	}
	intensity := params.Intensity
	if intensity == 0 {
		intensity = 1
	}
	intensity = fitness.Clamp01(intensity)

	dna := DNACompatibility(x.Genome, y.Genome)
	sigil := SigilResonance(x.Signature, y.Signature)
	alignment := ConsciousnessAlignment(x.EncodingState, y.EncodingState)
	strength := fitness.Clamp01(fitness.Mean(dna, sigil, alignment))
	stability := 1 / (1 + fitness.Variance(dna, sigil, alignment))

	dnaRecord := dnaInteraction(x, y, strength*0.1*intensity, rng)
	if swapped {
		dnaRecord.Exchange.Direction = flipDirection(dnaRecord.Exchange.Direction)
	}

	effectX, effectY := mutualEffects(x, y, alignment, strength)
	effects := model.MutualEffects{OnA: effectX, OnB: effectY}
	if swapped {
		effects = model.MutualEffects{OnA: effectY, OnB: effectX}
	}

	return model.InteractionResult{
		ID:                     e.newID(),
		EntityA:                a.ID,
		EntityB:                b.ID,
		Context:                params.Context,
		DNACompatibility:       dna,
		SigilResonance:         sigil,
		ConsciousnessAlignment: alignment,
		Strength:               strength,
		Type:                   Classify(strength),
		Stability:              stability,
		DNA:                    dnaRecord,
		Sigil:                  sigilInteraction(x.Signature, y.Signature),
		Consciousness:          consciousnessInteraction(x.EncodingState, y.EncodingState),
		Outcome:                outcome(dna, sigil, alignment, stability),
		MutualEffects:          effects,
		Timestamp:              e.now(),
	}, nil
}

func dnaInteraction(x, y model.EncodedEntity, rate float64, rng *rand.Rand) model.DNAInteraction {
	_, codons := codonScore(x.Genome, y.Genome)
	_, markers := markerScore(x.Genome, y.Genome)
	record := model.DNAInteraction{
		Exchange:      model.SequenceExchange{Rate: rate},
		CodonMatches:  codons,
		MarkerMatches: markers,
	}
	if rng.Float64() >= rate {
		return record
	}

	src, dir := x.Genome.Sequence, DirectionAToB
	if rng.Intn(2) == 1 {
		src, dir = y.Genome.Sequence, DirectionBToA
	}
	length := minFragment + rng.Intn(maxFragment-minFragment+1)
	if length > len(src) {
		length = len(src)
	}
	pos := 0
	if span := len(src) - length; span > 0 {
		pos = rng.Intn(span + 1)
	}
	record.Exchange.Occurred = true
	record.Exchange.Position = pos
	record.Exchange.Length = length
	record.Exchange.Fragment = src[pos : pos+length]
	record.Exchange.Direction = dir
	return record
}

func sigilInteraction(x, y model.Signature) model.SigilInteraction {
	hx, hy := x.ResonancePattern.Harmonics, y.ResonancePattern.Harmonics
	n := min(len(hx), len(hy))
	ratios := make([]float64, n)
	for i := 0; i < n; i++ {
		if hi := math.Max(hx[i], hy[i]); hi > 0 {
			ratios[i] = math.Min(hx[i], hy[i]) / hi
		}
	}

	var syncs []model.ProtocolSync
	for _, name := range fitness.SortedKeys(x.InteractionProtocols) {
		other, ok := y.InteractionProtocols[name]
		if !ok {
			continue
		}
		syncs = append(syncs, model.ProtocolSync{
			Protocol:        name,
			Synchronization: fitness.Clamp01(1 - math.Abs(x.InteractionProtocols[name].Strength-other.Strength)),
		})
	}

	return model.SigilInteraction{
		HarmonicRatios:      ratios,
		AmplitudeModulation: fitness.Clamp01(x.Amplitude * y.Amplitude),
		PhaseCoherence:      phaseCoherence(x.Phase, y.Phase),
		ProtocolSync:        syncs,
	}
}

func consciousnessInteraction(x, y model.ConsciousnessState) model.ConsciousnessInteraction {
	meanPhi := (x.Phi + y.Phi) / 2
	return model.ConsciousnessInteraction{
		Phi: model.PhiResonance{
			MeanPhi:              meanPhi,
			Resonance:            fitness.Clamp01(1 - math.Abs(x.Phi-y.Phi)),
			GoldenRatioAlignment: math.Abs(meanPhi-goldenRatio) <= goldenRatioTolerance,
		},
		AwarenessAmplification:   fitness.Clamp01(math.Sqrt(x.Awareness * y.Awareness)),
		CoherenceSynchronization: fitness.Clamp01(1 - math.Abs(x.Coherence-y.Coherence)),
		IntegrationSynthesis:     fitness.Clamp01((x.Integration + y.Integration) / 2),
	}
}

func outcome(dna, sigil, alignment, stability float64) model.InteractionOutcome {
	o := model.InteractionOutcome{
		DNASuccess:           dna > successThreshold,
		SigilSuccess:         sigil > successThreshold,
		ConsciousnessSuccess: alignment > successThreshold,
		StabilityFactor:      stability,
	}
	successes := 0
	for _, ok := range []bool{o.DNASuccess, o.SigilSuccess, o.ConsciousnessSuccess} {
		if ok {
			successes++
		}
	}
	o.SuccessRate = float64(successes) / 3

	o.Dominant = "dna"
	best := dna
	if sigil > best {
		o.Dominant, best = "sigil", sigil
	}
	if alignment > best {
		o.Dominant = "consciousness"
	}

	if dna > 0.6 && sigil > 0.6 {
		o.EmergentProperties = append(o.EmergentProperties, "genetic_resonance")
	}
	if sigil > 0.7 && alignment > 0.7 {
		o.EmergentProperties = append(o.EmergentProperties, "harmonic_awareness")
	}
	if dna > 0.6 && alignment > 0.7 {
		o.EmergentProperties = append(o.EmergentProperties, "integrated_evolution")
	}
	if dna > 0.8 && sigil > 0.8 && alignment > 0.8 {
		o.EmergentProperties = append(o.EmergentProperties, "collective_emergence")
	}
	return o
}

// mutualEffects returns the descriptive pull each entity feels toward the
// other. The second effect is the exact negation of the first.
func mutualEffects(x, y model.EncodedEntity, alignment, strength float64) (model.EntityEffect, model.EntityEffect) {
	k := alignment * strength * 0.1
	sx, sy := x.EncodingState, y.EncodingState
	change := model.ConsciousnessState{
		Phi:         (sy.Phi - sx.Phi) * k,
		Awareness:   (sy.Awareness - sx.Awareness) * k,
		Coherence:   (sy.Coherence - sx.Coherence) * k,
		Integration: (sy.Integration - sx.Integration) * k,
	}
	onX := model.EntityEffect{
		EntityID:            x.ID,
		PartnerID:           y.ID,
		ConsciousnessChange: change,
		FrequencyShift:      (y.Signature.Frequency - x.Signature.Frequency) * k,
		AmplitudeShift:      (y.Signature.Amplitude - x.Signature.Amplitude) * k,
		Influence:           k,
	}
	onY := model.EntityEffect{
		EntityID:  y.ID,
		PartnerID: x.ID,
		ConsciousnessChange: model.ConsciousnessState{
			Phi:         -change.Phi,
			Awareness:   -change.Awareness,
			Coherence:   -change.Coherence,
			Integration: -change.Integration,
		},
		FrequencyShift: -onX.FrequencyShift,
		AmplitudeShift: -onX.AmplitudeShift,
		Influence:      k,
	}
	return onX, onY
}

func flipDirection(dir string) string {
	switch dir {
	case DirectionAToB:
		return DirectionBToA
	case DirectionBToA:
		return DirectionAToB
	}
	return dir
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
