package genotype

import (
	"maps"
	"slices"

	"dnasigil/internal/model"
)

func CloneGenome(g model.Genome) model.Genome {
	out := g
	out.EvolutionaryMarkers = slices.Clone(g.EvolutionaryMarkers)
	out.StabilityRegions = slices.Clone(g.StabilityRegions)
	out.HealingSequences = maps.Clone(g.HealingSequences)
	out.InteractionCodons = maps.Clone(g.InteractionCodons)
	return out
}

func CloneSignature(s model.Signature) model.Signature {
	out := s
	out.ResonancePattern.Harmonics = slices.Clone(s.ResonancePattern.Harmonics)
	out.DimensionalSignature.Signature = slices.Clone(s.DimensionalSignature.Signature)
	out.InteractionProtocols = maps.Clone(s.InteractionProtocols)
	return out
}

// CloneEntity returns a deep copy of e. Mutating the copy never affects e.
func CloneEntity(e model.EncodedEntity) model.EncodedEntity {
	out := e
	out.Genome = CloneGenome(e.Genome)
	out.Signature = CloneSignature(e.Signature)
	return out
}
