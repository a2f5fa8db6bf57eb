package model

import "time"

type EnvironmentalPressure struct {
	Complexity  float64 `json:"complexity" yaml:"complexity"`
	Stability   float64 `json:"stability" yaml:"stability"`
	Resources   float64 `json:"resources" yaml:"resources"`
	Competition float64 `json:"competition" yaml:"competition"`
}

type ConsciousnessPressure struct {
	Phi         float64 `json:"phi" yaml:"phi"`
	Awareness   float64 `json:"awareness" yaml:"awareness"`
	Coherence   float64 `json:"coherence" yaml:"coherence"`
	Integration float64 `json:"integration" yaml:"integration"`
}

type HealingPressure struct {
	Repair       float64 `json:"repair" yaml:"repair"`
	Regeneration float64 `json:"regeneration" yaml:"regeneration"`
	Resilience   float64 `json:"resilience" yaml:"resilience"`
	Adaptation   float64 `json:"adaptation" yaml:"adaptation"`
}

type InteractionPressure struct {
	Communication   float64 `json:"communication" yaml:"communication"`
	Cooperation     float64 `json:"cooperation" yaml:"cooperation"`
	Resonance       float64 `json:"resonance" yaml:"resonance"`
	Synchronization float64 `json:"synchronization" yaml:"synchronization"`
}

// Pressures is the vector that biases the direction and magnitude of an
// evolution step. Zero groups are replaced by defaults before use.
type Pressures struct {
	Environmental EnvironmentalPressure `json:"environmental" yaml:"environmental"`
	Consciousness ConsciousnessPressure `json:"consciousness" yaml:"consciousness"`
	Healing       HealingPressure       `json:"healing" yaml:"healing"`
	Interaction   InteractionPressure   `json:"interaction" yaml:"interaction"`
}

type CollectionDelta struct {
	Added    []string `json:"added,omitempty"`
	Modified []string `json:"modified,omitempty"`
	Removed  []string `json:"removed,omitempty"`
}

func (d CollectionDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

type EvolutionDiff struct {
	MutationCount    int                `json:"mutation_count"`
	Insertions       int                `json:"insertions"`
	Deletions        int                `json:"deletions"`
	Markers          CollectionDelta    `json:"markers"`
	Codons           CollectionDelta    `json:"codons"`
	Regions          CollectionDelta    `json:"regions"`
	HealingSequences CollectionDelta    `json:"healing_sequences"`
	Protocols        CollectionDelta    `json:"protocols"`
	BaseDeltas       ConsciousnessState `json:"base_deltas"`
	FrequencyDelta   float64            `json:"frequency_delta"`
	AmplitudeDelta   float64            `json:"amplitude_delta"`
	PhaseDelta       float64            `json:"phase_delta"`
}

type EvolutionEvent struct {
	VersionedRecord
	ID                 string        `json:"id"`
	EntityID           string        `json:"entity_id"`
	Generation         int           `json:"generation"`
	Pressures          Pressures     `json:"pressures"`
	Operators          []string      `json:"operators"`
	Diff               EvolutionDiff `json:"diff"`
	FitnessBefore      float64       `json:"fitness_before"`
	FitnessAfter       float64       `json:"fitness_after"`
	FitnessImprovement float64       `json:"fitness_improvement"`
	Timestamp          time.Time     `json:"timestamp"`
}
