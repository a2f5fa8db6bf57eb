package stats

import (
	"dnasigil/internal/fitness"
	"dnasigil/internal/model"
)

// EncodingMetrics aggregates encoder quality over a set of entities.
type EncodingMetrics struct {
	Count                 int     `json:"count"`
	AvgFidelity           float64 `json:"avg_fidelity"`
	AvgCompressionRatio   float64 `json:"avg_compression_ratio"`
	AvgInformationDensity float64 `json:"avg_information_density"`
	AvgQuantumCoherence   float64 `json:"avg_quantum_coherence"`
	AvgGeneration         float64 `json:"avg_generation"`
	TotalHealings         int     `json:"total_healings"`
}

// Aggregate averages the encoding metrics of entities, visiting them in id
// order so the float sums do not depend on map iteration. An empty input
// yields the zero value.
func Aggregate(entities map[string]model.EncodedEntity) EncodingMetrics {
	if len(entities) == 0 {
		return EncodingMetrics{}
	}

	var out EncodingMetrics
	for _, id := range fitness.SortedKeys(entities) {
		e := entities[id]
		out.AvgFidelity += e.EncodingMetrics.Fidelity
		out.AvgCompressionRatio += e.EncodingMetrics.CompressionRatio
		out.AvgInformationDensity += e.EncodingMetrics.InformationDensity
		out.AvgQuantumCoherence += e.EncodingMetrics.QuantumCoherence
		out.AvgGeneration += float64(e.EvolutionGeneration)
		out.TotalHealings += e.HealingCount
	}
	n := float64(len(entities))
	out.Count = len(entities)
	out.AvgFidelity /= n
	out.AvgCompressionRatio /= n
	out.AvgInformationDensity /= n
	out.AvgQuantumCoherence /= n
	out.AvgGeneration /= n
	return out
}
