package model

import "time"

type InteractionType string

const (
	InteractionSynergistic  InteractionType = "synergistic"
	InteractionCooperative  InteractionType = "cooperative"
	InteractionNeutral      InteractionType = "neutral"
	InteractionCompetitive  InteractionType = "competitive"
	InteractionAntagonistic InteractionType = "antagonistic"
)

type InteractionParams struct {
	Context string `json:"context,omitempty" yaml:"context"`
	// Intensity scales the sequence-exchange trial rate. Zero means 1.
	Intensity float64 `json:"intensity,omitempty" yaml:"intensity"`
}

type SequenceExchange struct {
	Rate      float64 `json:"rate"`
	Occurred  bool    `json:"occurred"`
	Position  int     `json:"position,omitempty"`
	Length    int     `json:"length,omitempty"`
	Fragment  string  `json:"fragment,omitempty"`
	Direction string  `json:"direction,omitempty"`
}

type CodonMatch struct {
	CodonA        string  `json:"codon_a"`
	CodonB        string  `json:"codon_b"`
	Compatibility float64 `json:"compatibility"`
}

type MarkerMatch struct {
	Type      string  `json:"type"`
	StrengthA float64 `json:"strength_a"`
	StrengthB float64 `json:"strength_b"`
	Combined  float64 `json:"combined"`
}

type DNAInteraction struct {
	Exchange      SequenceExchange `json:"exchange"`
	CodonMatches  []CodonMatch     `json:"codon_matches,omitempty"`
	MarkerMatches []MarkerMatch    `json:"marker_matches,omitempty"`
}

type ProtocolSync struct {
	Protocol        string  `json:"protocol"`
	Synchronization float64 `json:"synchronization"`
}

type SigilInteraction struct {
	HarmonicRatios      []float64      `json:"harmonic_ratios"`
	AmplitudeModulation float64        `json:"amplitude_modulation"`
	PhaseCoherence      float64        `json:"phase_coherence"`
	ProtocolSync        []ProtocolSync `json:"protocol_sync,omitempty"`
}

type PhiResonance struct {
	MeanPhi              float64 `json:"mean_phi"`
	Resonance            float64 `json:"resonance"`
	GoldenRatioAlignment bool    `json:"golden_ratio_alignment"`
}

type ConsciousnessInteraction struct {
	Phi                      PhiResonance `json:"phi"`
	AwarenessAmplification   float64      `json:"awareness_amplification"`
	CoherenceSynchronization float64      `json:"coherence_synchronization"`
	IntegrationSynthesis     float64      `json:"integration_synthesis"`
}

type InteractionOutcome struct {
	DNASuccess           bool     `json:"dna_success"`
	SigilSuccess         bool     `json:"sigil_success"`
	ConsciousnessSuccess bool     `json:"consciousness_success"`
	SuccessRate          float64  `json:"success_rate"`
	Dominant             string   `json:"dominant"`
	EmergentProperties   []string `json:"emergent_properties,omitempty"`
	StabilityFactor      float64  `json:"stability_factor"`
}

// EntityEffect describes how an interaction would move one participant. It is
// descriptive; the participant is not modified.
type EntityEffect struct {
	EntityID            string             `json:"entity_id"`
	PartnerID           string             `json:"partner_id"`
	ConsciousnessChange ConsciousnessState `json:"consciousness_change"`
	FrequencyShift      float64            `json:"frequency_shift"`
	AmplitudeShift      float64            `json:"amplitude_shift"`
	Influence           float64            `json:"influence"`
}

type MutualEffects struct {
	OnA EntityEffect `json:"on_a"`
	OnB EntityEffect `json:"on_b"`
}

type InteractionResult struct {
	ID                     string                   `json:"id"`
	EntityA                string                   `json:"entity_a"`
	EntityB                string                   `json:"entity_b"`
	Context                string                   `json:"context,omitempty"`
	DNACompatibility       float64                  `json:"dna_compatibility"`
	SigilResonance         float64                  `json:"sigil_resonance"`
	ConsciousnessAlignment float64                  `json:"consciousness_alignment"`
	Strength               float64                  `json:"strength"`
	Type                   InteractionType          `json:"type"`
	Stability              float64                  `json:"stability"`
	DNA                    DNAInteraction           `json:"dna"`
	Sigil                  SigilInteraction         `json:"sigil"`
	Consciousness          ConsciousnessInteraction `json:"consciousness"`
	Outcome                InteractionOutcome       `json:"outcome"`
	MutualEffects          MutualEffects            `json:"mutual_effects"`
	Timestamp              time.Time                `json:"timestamp"`
}

type InteractionEvent struct {
	VersionedRecord
	ID        string            `json:"id"`
	EntityID  string            `json:"entity_id"`
	PartnerID string            `json:"partner_id"`
	Result    InteractionResult `json:"result"`
	Timestamp time.Time         `json:"timestamp"`
}
