package model

import "time"

type HealingPriority string

const (
	PriorityCritical HealingPriority = "critical"
	PriorityHigh     HealingPriority = "high"
	PriorityMedium   HealingPriority = "medium"
	PriorityLow      HealingPriority = "low"
	PriorityMinimal  HealingPriority = "minimal"
)

// DamageParams are caller-reported damage intensities. Every field is
// optional; zero means "not reported".
type DamageParams struct {
	SequenceCorruption   float64 `json:"sequence_corruption,omitempty" yaml:"sequence_corruption"`
	MarkerLoss           float64 `json:"marker_loss,omitempty" yaml:"marker_loss"`
	CodonDegradation     float64 `json:"codon_degradation,omitempty" yaml:"codon_degradation"`
	RegionInstability    float64 `json:"region_instability,omitempty" yaml:"region_instability"`
	HealingSequenceDecay float64 `json:"healing_sequence_decay,omitempty" yaml:"healing_sequence_decay"`

	FrequencyDrift     float64 `json:"frequency_drift,omitempty" yaml:"frequency_drift"`
	AmplitudeDecay     float64 `json:"amplitude_decay,omitempty" yaml:"amplitude_decay"`
	PhaseDistortion    float64 `json:"phase_distortion,omitempty" yaml:"phase_distortion"`
	ProtocolCorruption float64 `json:"protocol_corruption,omitempty" yaml:"protocol_corruption"`

	ConsciousnessDisruption float64 `json:"consciousness_disruption,omitempty" yaml:"consciousness_disruption"`
	PhiDegradation          float64 `json:"phi_degradation,omitempty" yaml:"phi_degradation"`
	AwarenessLoss           float64 `json:"awareness_loss,omitempty" yaml:"awareness_loss"`
	CoherenceLoss           float64 `json:"coherence_loss,omitempty" yaml:"coherence_loss"`
	IntegrationLoss         float64 `json:"integration_loss,omitempty" yaml:"integration_loss"`

	StructuralStress    float64 `json:"structural_stress,omitempty" yaml:"structural_stress"`
	DimensionalCollapse float64 `json:"dimensional_collapse,omitempty" yaml:"dimensional_collapse"`
	ResonanceLoss       float64 `json:"resonance_loss,omitempty" yaml:"resonance_loss"`
	BoundaryErosion     float64 `json:"boundary_erosion,omitempty" yaml:"boundary_erosion"`

	FunctionalImpairment float64 `json:"functional_impairment,omitempty" yaml:"functional_impairment"`
	InteractionLoss      float64 `json:"interaction_loss,omitempty" yaml:"interaction_loss"`
	EvolutionBlock       float64 `json:"evolution_block,omitempty" yaml:"evolution_block"`
	HealingResistance    float64 `json:"healing_resistance,omitempty" yaml:"healing_resistance"`

	// Ambient adds a random background term of at most 0.1 to every sub-score.
	Ambient bool `json:"ambient,omitempty" yaml:"ambient"`
}

type DNADamage struct {
	SequenceDamage        float64 `json:"sequence_damage"`
	MarkerDamage          float64 `json:"marker_damage"`
	CodonDamage           float64 `json:"codon_damage"`
	RegionDamage          float64 `json:"region_damage"`
	HealingSequenceDamage float64 `json:"healing_sequence_damage"`
	DiversityDeficit      float64 `json:"diversity_deficit"`
	OverallDNADamage      float64 `json:"overall_dna_damage"`
}

type SigilDamage struct {
	FrequencyDamage    float64 `json:"frequency_damage"`
	AmplitudeDamage    float64 `json:"amplitude_damage"`
	PhaseDamage        float64 `json:"phase_damage"`
	ProtocolDamage     float64 `json:"protocol_damage"`
	ChecksumMismatch   float64 `json:"checksum_mismatch"`
	OverallSigilDamage float64 `json:"overall_sigil_damage"`
}

type ConsciousnessDamage struct {
	PhiDamage                  float64 `json:"phi_damage"`
	AwarenessDamage            float64 `json:"awareness_damage"`
	CoherenceDamage            float64 `json:"coherence_damage"`
	IntegrationDamage          float64 `json:"integration_damage"`
	TargetDeviation            float64 `json:"target_deviation"`
	OverallConsciousnessDamage float64 `json:"overall_consciousness_damage"`
}

type StructuralDamage struct {
	StressDamage            float64 `json:"stress_damage"`
	DimensionalDamage       float64 `json:"dimensional_damage"`
	ResonanceDamage         float64 `json:"resonance_damage"`
	BoundaryDamage          float64 `json:"boundary_damage"`
	RegionWeakness          float64 `json:"region_weakness"`
	OverallStructuralDamage float64 `json:"overall_structural_damage"`
}

type FunctionalDamage struct {
	ImpairmentDamage        float64 `json:"impairment_damage"`
	InteractionDamage       float64 `json:"interaction_damage"`
	EvolutionDamage         float64 `json:"evolution_damage"`
	HealingDamage           float64 `json:"healing_damage"`
	CapabilityDeficit       float64 `json:"capability_deficit"`
	OverallFunctionalDamage float64 `json:"overall_functional_damage"`
}

type DamageAssessment struct {
	EntityID             string              `json:"entity_id"`
	DNADamage            DNADamage           `json:"dna_damage"`
	SigilDamage          SigilDamage         `json:"sigil_damage"`
	ConsciousnessDamage  ConsciousnessDamage `json:"consciousness_damage"`
	StructuralDamage     StructuralDamage    `json:"structural_damage"`
	FunctionalDamage     FunctionalDamage    `json:"functional_damage"`
	OverallSeverity      float64             `json:"overall_severity"`
	HealingPriority      HealingPriority     `json:"healing_priority"`
	EstimatedHealingTime time.Duration       `json:"estimated_healing_time"`
	AssessedAt           time.Time           `json:"assessed_at"`
}

// RepairInstruction is one step of a healing pattern. Which fields are
// meaningful depends on Kind.
type RepairInstruction struct {
	Kind        string  `json:"kind"`
	Target      string  `json:"target,omitempty"`
	Intensity   float64 `json:"intensity"`
	TargetValue float64 `json:"target_value,omitempty"`
	Positions   []int   `json:"positions,omitempty"`
	Bases       string  `json:"bases,omitempty"`
}

type HealingPattern struct {
	ID            string              `json:"id"`
	EntityID      string              `json:"entity_id"`
	Priority      HealingPriority     `json:"priority"`
	DNA           []RepairInstruction `json:"dna,omitempty"`
	Sigil         []RepairInstruction `json:"sigil,omitempty"`
	Consciousness []RepairInstruction `json:"consciousness,omitempty"`
	Structural    []RepairInstruction `json:"structural,omitempty"`
	Functional    []RepairInstruction `json:"functional,omitempty"`
	HealingPower  float64             `json:"healing_power"`
}

func (p HealingPattern) InstructionCount() int {
	return len(p.DNA) + len(p.Sigil) + len(p.Consciousness) + len(p.Structural) + len(p.Functional)
}

type ComponentResult struct {
	Applied       int      `json:"applied"`
	Skipped       int      `json:"skipped"`
	Effectiveness float64  `json:"effectiveness"`
	Notes         []string `json:"notes,omitempty"`
}

// RepairRecord describes a structural or functional repair. It is a record
// only; stored numeric fields are not altered by it.
type RepairRecord struct {
	Kind      string  `json:"kind"`
	Target    string  `json:"target,omitempty"`
	Intensity float64 `json:"intensity"`
	Outcome   string  `json:"outcome"`
}

type HealingResult struct {
	DNA                  *ComponentResult   `json:"dna,omitempty"`
	Sigil                *ComponentResult   `json:"sigil,omitempty"`
	Consciousness        *ComponentResult   `json:"consciousness,omitempty"`
	Structural           *ComponentResult   `json:"structural,omitempty"`
	Functional           *ComponentResult   `json:"functional,omitempty"`
	StructuralRepairs    []RepairRecord     `json:"structural_repairs,omitempty"`
	FunctionalRepairs    []RepairRecord     `json:"functional_repairs,omitempty"`
	StateBefore          ConsciousnessState `json:"state_before"`
	StateAfter           ConsciousnessState `json:"state_after"`
	OverallEffectiveness float64            `json:"overall_effectiveness"`
	HealingEffectiveness float64            `json:"healing_effectiveness"`
	HealingPower         float64            `json:"healing_power"`
}

type HealingEvent struct {
	VersionedRecord
	ID         string           `json:"id"`
	EntityID   string           `json:"entity_id"`
	HealCount  int              `json:"heal_count"`
	Params     DamageParams     `json:"params"`
	Assessment DamageAssessment `json:"assessment"`
	Pattern    HealingPattern   `json:"pattern"`
	Result     HealingResult    `json:"result"`
	Timestamp  time.Time        `json:"timestamp"`
}
