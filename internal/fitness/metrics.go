package fitness

import (
	"math"
	"sort"

	"dnasigil/internal/model"
)

// AlphabetBits is log2 of the genome alphabet size.
const AlphabetBits = 3.0

// Fidelity is one minus the mean absolute deviation between the state an
// entity was encoded under and the bases the genome actually carries, scaled
// by how well the dimensional signature preserves the source dimensionality.
func Fidelity(original, encoded model.ConsciousnessState, sourceDims, encodedDims int) float64 {
	deviation := Mean(
		math.Abs(original.Phi-encoded.Phi),
		math.Abs(original.Awareness-encoded.Awareness),
		math.Abs(original.Coherence-encoded.Coherence),
		math.Abs(original.Integration-encoded.Integration),
	)
	return Clamp01((1 - deviation) * dimensionalAgreement(sourceDims, encodedDims))
}

func dimensionalAgreement(a, b int) float64 {
	if a <= 0 || b <= 0 {
		if a == b {
			return 1
		}
		return 0
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(lo) / float64(hi)
}

// CompressionRatio is encoded size over original size.
func CompressionRatio(encodedSize, originalSize int) float64 {
	if originalSize <= 0 {
		return 0
	}
	return Clamp01(float64(encodedSize) / float64(originalSize))
}

// InformationDensity estimates the Shannon information carried by sequence
// and divides it by the bit capacity of the bytes used to store it.
func InformationDensity(sequence string) float64 {
	if len(sequence) == 0 {
		return 0
	}
	bits := Entropy(sequence) * float64(len(sequence))
	capacity := float64(len(sequence)) * AlphabetBits
	return Clamp01(bits / capacity)
}

func QuantumCoherence(coherence, amplitude, phase float64) float64 {
	alignment := (1 + math.Cos(phase-coherence*math.Pi)) / 2
	return Clamp01(0.4*coherence + 0.3*amplitude + 0.3*alignment)
}

// EncodedSize approximates the packed byte size of a genome and signature:
// three bits per base plus eight bytes per stored signature scalar.
func EncodedSize(genome model.Genome, signature model.Signature) int {
	bases := len(genome.Sequence)
	sequenceBytes := (bases*3 + 7) / 8
	scalars := 3 + len(signature.ResonancePattern.Harmonics) + len(signature.DimensionalSignature.Signature)
	return sequenceBytes + scalars*8
}

func EvolutionaryPotential(genome model.Genome, signature model.Signature) model.EvolutionaryPotential {
	regionMean := meanRegionStrength(genome.StabilityRegions)
	markerStrength := 0.0
	if len(genome.EvolutionaryMarkers) > 0 {
		sum := 0.0
		for _, m := range genome.EvolutionaryMarkers {
			sum += m.Strength
		}
		markerStrength = Clamp01(sum / float64(len(genome.EvolutionaryMarkers)))
	}
	diversity := InformationDensity(genome.Sequence)

	p := model.EvolutionaryPotential{
		MutationRate:         Clamp01(0.1 + 0.4*(1-regionMean)),
		AdaptationCapacity:   Clamp01(0.5*CountScore(len(genome.EvolutionaryMarkers), 5) + 0.5*diversity),
		MarkerStrength:       markerStrength,
		SignatureFlexibility: Clamp01(0.5*signature.Amplitude + 0.5*CountScore(len(signature.ResonancePattern.Harmonics), 12)),
	}
	p.Overall = Clamp01(Mean(p.MutationRate, p.AdaptationCapacity, p.MarkerStrength, p.SignatureFlexibility))
	return p
}

func HealingCapabilities(genome model.Genome, signature model.Signature) model.HealingCapabilities {
	names := SortedKeys(genome.HealingSequences)
	strength := 0.0
	length := 0.0
	for _, name := range names {
		seq := genome.HealingSequences[name]
		strength += seq.Strength
		length += math.Min(1, float64(len(seq.Sequence))/16)
	}
	if len(names) > 0 {
		strength /= float64(len(names))
		length /= float64(len(names))
	}

	c := model.HealingCapabilities{
		SequenceCount:    len(names),
		RepairStrength:   Clamp01(strength),
		RegenerationRate: Clamp01(0.5*CountScore(len(names), 6) + 0.5*length),
		StructuralGuard:  Clamp01(meanRegionStrength(genome.StabilityRegions) * signature.DimensionalSignature.Stability),
	}
	c.Overall = Clamp01(Mean(c.RepairStrength, c.RegenerationRate, c.StructuralGuard))
	return c
}

func InteractionProperties(genome model.Genome, signature model.Signature) model.InteractionProperties {
	codons := SortedKeys(genome.InteractionCodons)
	affinity := 0.0
	for _, name := range codons {
		codon := genome.InteractionCodons[name]
		affinity += codon.Strength * codon.Affinity
	}
	if len(codons) > 0 {
		affinity /= float64(len(codons))
	}

	protocols := SortedKeys(signature.InteractionProtocols)
	protocolStrength := 0.0
	for _, name := range protocols {
		protocolStrength += signature.InteractionProtocols[name].Strength
	}
	if len(protocols) > 0 {
		protocolStrength /= float64(len(protocols))
	}

	p := model.InteractionProperties{
		CodonCount:        len(codons),
		AffinityStrength:  Clamp01(affinity),
		ProtocolCount:     len(protocols),
		ResonanceCapacity: Clamp01(0.5*protocolStrength + 0.5*signature.Amplitude),
	}
	p.Overall = Clamp01(Mean(p.AffinityStrength, p.ResonanceCapacity, CountScore(len(codons)+len(protocols), 10)))
	return p
}

// Refresh recomputes every derived structure on e from its genome, signature,
// state and profile.
func Refresh(e *model.EncodedEntity) {
	e.EncodingMetrics = model.EncodingMetrics{
		Fidelity:           Fidelity(e.EncodingState, e.Genome.ConsciousnessBases, e.Profile.Dimensionality, e.Signature.DimensionalSignature.Dimensions),
		CompressionRatio:   CompressionRatio(EncodedSize(e.Genome, e.Signature), e.Profile.SourceSize),
		InformationDensity: InformationDensity(e.Genome.Sequence),
		QuantumCoherence:   QuantumCoherence(e.EncodingState.Coherence, e.Signature.Amplitude, e.Signature.Phase),
	}
	e.EvolutionaryPotential = EvolutionaryPotential(e.Genome, e.Signature)
	e.HealingCapabilities = HealingCapabilities(e.Genome, e.Signature)
	e.InteractionProperties = InteractionProperties(e.Genome, e.Signature)
}

// Composite is the single fitness figure used to compare an entity before and
// after an evolution step.
func Composite(e model.EncodedEntity) float64 {
	return Clamp01(Mean(
		e.EncodingMetrics.Fidelity,
		e.EncodingMetrics.QuantumCoherence,
		e.EvolutionaryPotential.Overall,
		e.HealingCapabilities.Overall,
		e.InteractionProperties.Overall,
	))
}

func meanRegionStrength(regions []model.StabilityRegion) float64 {
	if len(regions) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range regions {
		sum += r.Strength
	}
	return Clamp01(sum / float64(len(regions)))
}

// SortedKeys returns the keys of m in ascending order. Every float reduction
// over a map goes through it so results do not depend on iteration order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
