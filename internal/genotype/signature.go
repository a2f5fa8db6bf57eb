package genotype

import (
	"fmt"
	"math"

	"dnasigil/internal/fitness"
	"dnasigil/internal/model"
)

// Glyphs is the fixed symbol set a signature draws from.
var Glyphs = []string{"◈", "◉", "◊", "⬡", "⬢", "✦", "✧", "❖"}

const harmonicCount = 7

const (
	ProtocolResonanceSync    = "resonance_sync"
	ProtocolHarmonicExchange = "harmonic_exchange"
	ProtocolPhaseLock        = "phase_lock"
)

func ConstructSignature(entityID string, genome model.Genome, state model.ConsciousnessState, profile model.Profile) model.Signature {
	checksum := Checksum(entityID, genome)
	frequency := TargetFrequency(state, profile)

	return model.Signature{
		EntityID:           entityID,
		Symbol:             Glyphs[checksum%uint32(len(Glyphs))],
		AuthenticationHash: formatChecksum(checksum),
		Frequency:          frequency,
		Amplitude:          TargetAmplitude(state),
		Phase:              TargetPhase(state),
		ResonancePattern: model.ResonancePattern{
			BaseFrequency: frequency,
			Harmonics:     Harmonics(frequency, harmonicCount),
		},
		DimensionalSignature: model.DimensionalSignature{
			Dimensions: profile.Dimensionality,
			Signature:  DimensionalValues(state, profile.Dimensionality),
			Complexity: profile.Complexity,
			Stability:  profile.Stability,
		},
		InteractionProtocols: map[string]model.Protocol{
			ProtocolResonanceSync: {
				Type:      "resonance",
				Strength:  state.Coherence,
				Frequency: frequency,
			},
			ProtocolHarmonicExchange: {
				Type:      "harmonic",
				Strength:  fitness.Clamp01(0.5*state.Awareness + 0.5*profile.Resonance),
				Frequency: 2 * frequency,
			},
			ProtocolPhaseLock: {
				Type:      "phase",
				Strength:  state.Integration,
				Frequency: frequency / 2,
			},
		},
	}
}

// TargetFrequency is the frequency a signature settles at for state.
func TargetFrequency(state model.ConsciousnessState, profile model.Profile) float64 {
	return 40 + 60*state.Phi + 20*profile.Resonance
}

func TargetAmplitude(state model.ConsciousnessState) float64 {
	return fitness.Clamp01(0.6*state.Awareness + 0.4*state.Coherence)
}

func TargetPhase(state model.ConsciousnessState) float64 {
	return NormalizePhase(state.Integration * 2 * math.Pi)
}

// NormalizePhase maps p onto [0, 2π).
func NormalizePhase(p float64) float64 {
	p = math.Mod(p, 2*math.Pi)
	if p < 0 {
		p += 2 * math.Pi
	}
	return p
}

// Harmonics returns count integer multiples of base, starting at base itself.
func Harmonics(base float64, count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = base * float64(i+1)
	}
	return out
}

func DimensionalValues(state model.ConsciousnessState, dims int) []float64 {
	if dims < 0 {
		dims = 0
	}
	out := make([]float64, dims)
	for i := range out {
		out[i] = fitness.Clamp01(0.5 + 0.5*math.Sin(float64(i+1)*state.Phi*math.Pi)*state.Coherence)
	}
	return out
}

// Checksum is an additive, position-weighted sum over the entity id and
// genome sequence. It detects accidental drift between a genome and its
// signature and is not an integrity guarantee.
func Checksum(entityID string, genome model.Genome) uint32 {
	var sum uint32
	data := entityID + "|" + genome.Sequence
	for i := 0; i < len(data); i++ {
		sum += uint32(data[i]) * uint32(i%31+1)
	}
	return sum
}

func formatChecksum(sum uint32) string {
	return fmt.Sprintf("%08x", sum)
}

// Reseal recomputes the authentication hash after the genome sequence has
// changed. The symbol is an identity glyph and is left untouched.
func Reseal(signature *model.Signature, entityID string, genome model.Genome) {
	signature.AuthenticationHash = formatChecksum(Checksum(entityID, genome))
}

// Verify reports whether the stored authentication hash matches genome.
func Verify(signature model.Signature, entityID string, genome model.Genome) bool {
	return signature.AuthenticationHash == formatChecksum(Checksum(entityID, genome))
}
