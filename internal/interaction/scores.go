package interaction

import (
	"math"

	"dnasigil/internal/fitness"
	"dnasigil/internal/model"
)

// codonAffinity is the symmetric compatibility table between codon types.
// Identical types score 1; unlisted pairs fall back to neutralCompatibility.
var codonAffinity = map[[2]string]float64{
	{"harmony", "resonance"}:           0.8,
	{"resonance", "synthesis"}:         0.6,
	{"harmony", "synthesis"}:           0.7,
	{"cooperation", "harmony"}:         0.8,
	{"cooperation", "resonance"}:       0.7,
	{"cooperation", "synthesis"}:       0.75,
	{"harmony", "synchronization"}:     0.75,
	{"resonance", "synchronization"}:   0.8,
	{"synchronization", "synthesis"}:   0.65,
	{"cooperation", "synchronization"}: 0.85,
}

const (
	neutralCompatibility = 0.5
	frequencySpan        = 100.0
)

// CodonCompatibility looks up the table entry for two codon types in either
// order.
func CodonCompatibility(a, b string) float64 {
	if a == b {
		return 1
	}
	if a > b {
		a, b = b, a
	}
	if v, ok := codonAffinity[[2]string{a, b}]; ok {
		return v
	}
	return neutralCompatibility
}

// PositionalSimilarity is the share of aligned positions holding the same
// base, measured against the longer sequence.
func PositionalSimilarity(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	shortest := min(len(a), len(b))
	matches := 0
	for i := 0; i < shortest; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(longest)
}

func codonScore(x, y model.Genome) (float64, []model.CodonMatch) {
	xs := fitness.SortedKeys(x.InteractionCodons)
	ys := fitness.SortedKeys(y.InteractionCodons)
	if len(xs) == 0 || len(ys) == 0 {
		return neutralCompatibility, nil
	}
	sum := 0.0
	var matches []model.CodonMatch
	for _, xn := range xs {
		for _, yn := range ys {
			c := CodonCompatibility(x.InteractionCodons[xn].Type, y.InteractionCodons[yn].Type)
			sum += c
			if c >= 0.7 {
				matches = append(matches, model.CodonMatch{CodonA: xn, CodonB: yn, Compatibility: c})
			}
		}
	}
	return sum / float64(len(xs)*len(ys)), matches
}

func markerScore(x, y model.Genome) (float64, []model.MarkerMatch) {
	byType := make(map[string]model.Marker, len(y.EvolutionaryMarkers))
	for _, m := range y.EvolutionaryMarkers {
		if _, ok := byType[m.Type]; !ok {
			byType[m.Type] = m
		}
	}
	var matches []model.MarkerMatch
	seen := make(map[string]bool)
	sum := 0.0
	for _, m := range x.EvolutionaryMarkers {
		other, ok := byType[m.Type]
		if !ok || seen[m.Type] {
			continue
		}
		seen[m.Type] = true
		combined := (m.Strength + other.Strength) / 2
		sum += combined
		matches = append(matches, model.MarkerMatch{Type: m.Type, StrengthA: m.Strength, StrengthB: other.Strength, Combined: combined})
	}
	if len(matches) == 0 {
		return neutralCompatibility, nil
	}
	return fitness.Clamp01(sum / float64(len(matches))), matches
}

// DNACompatibility averages positional similarity, codon-table compatibility
// and shared-marker strength.
func DNACompatibility(x, y model.Genome) float64 {
	codons, _ := codonScore(x, y)
	markers, _ := markerScore(x, y)
	return fitness.Clamp01(fitness.Mean(PositionalSimilarity(x.Sequence, y.Sequence), codons, markers))
}

// SigilResonance averages frequency ratio, frequency-delta cosine,
// amplitude agreement and phase cosine.
func SigilResonance(x, y model.Signature) float64 {
	ratio := 0.0
	if hi := math.Max(x.Frequency, y.Frequency); hi > 0 {
		ratio = math.Min(x.Frequency, y.Frequency) / hi
	}
	delta := math.Min(1, math.Abs(x.Frequency-y.Frequency)/frequencySpan)
	return fitness.Clamp01(fitness.Mean(
		ratio,
		(1+math.Cos(delta*math.Pi))/2,
		1-math.Abs(x.Amplitude-y.Amplitude),
		phaseCoherence(x.Phase, y.Phase),
	))
}

func ConsciousnessAlignment(x, y model.ConsciousnessState) float64 {
	return fitness.Clamp01(fitness.Mean(
		1-math.Abs(x.Phi-y.Phi),
		1-math.Abs(x.Awareness-y.Awareness),
		1-math.Abs(x.Coherence-y.Coherence),
		1-math.Abs(x.Integration-y.Integration),
	))
}

// Classify maps an interaction strength onto its type band.
func Classify(strength float64) model.InteractionType {
	switch {
	case strength > 0.8:
		return model.InteractionSynergistic
	case strength > 0.6:
		return model.InteractionCooperative
	case strength > 0.4:
		return model.InteractionNeutral
	case strength > 0.2:
		return model.InteractionCompetitive
	default:
		return model.InteractionAntagonistic
	}
}

func phaseCoherence(a, b float64) float64 {
	return (1 + math.Cos(a-b)) / 2
}
