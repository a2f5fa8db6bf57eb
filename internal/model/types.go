package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// CurrentVersion is the version stamp written on every new record.
func CurrentVersion() VersionedRecord {
	return VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

// ConsciousnessState is the four-scalar state descriptor an entity is encoded
// under. Every scalar lives in [0,1].
type ConsciousnessState struct {
	Phi         float64 `json:"phi" yaml:"phi"`
	Awareness   float64 `json:"awareness" yaml:"awareness"`
	Coherence   float64 `json:"coherence" yaml:"coherence"`
	Integration float64 `json:"integration" yaml:"integration"`
}

type HolographicProperties struct {
	Dimensionality     int     `json:"dimensionality" yaml:"dimensionality"`
	ResonanceFrequency float64 `json:"resonance_frequency" yaml:"resonance_frequency"`
	Coherence          float64 `json:"coherence" yaml:"coherence"`
	Stability          float64 `json:"stability" yaml:"stability"`
	HolographicDensity float64 `json:"holographic_density" yaml:"holographic_density"`
}

type RecursiveProperties struct {
	RecursionDepth int     `json:"recursion_depth" yaml:"recursion_depth"`
	SelfReference  float64 `json:"self_reference" yaml:"self_reference"`
	StrangeLoop    float64 `json:"strange_loop" yaml:"strange_loop"`
}

// SourceEntity is the application object handed to the encoder. All property
// groups are optional and defaulted during encoding.
type SourceEntity struct {
	ID                 string                 `json:"id" yaml:"id"`
	Holographic        *HolographicProperties `json:"holographic_properties,omitempty" yaml:"holographic_properties,omitempty"`
	Recursive          *RecursiveProperties   `json:"recursive_properties,omitempty" yaml:"recursive_properties,omitempty"`
	ConsciousnessState *ConsciousnessState    `json:"consciousness_state,omitempty" yaml:"consciousness_state,omitempty"`
}

type Marker struct {
	Type     string  `json:"type"`
	Sequence string  `json:"sequence"`
	Strength float64 `json:"strength"`
	Position int     `json:"position"`
}

type HealingSequence struct {
	Sequence string  `json:"sequence"`
	Strength float64 `json:"strength"`
}

type Codon struct {
	Type     string  `json:"type"`
	Sequence string  `json:"sequence"`
	Strength float64 `json:"strength"`
	Affinity float64 `json:"affinity"`
}

type StabilityRegion struct {
	Type     string  `json:"type"`
	Sequence string  `json:"sequence"`
	Strength float64 `json:"strength"`
	Position int     `json:"position"`
}

type Genome struct {
	VersionedRecord
	EntityID            string                     `json:"entity_id"`
	Sequence            string                     `json:"sequence"`
	ConsciousnessBases  ConsciousnessState         `json:"consciousness_bases"`
	HolographicSequence string                     `json:"holographic_sequence"`
	RecursiveSequence   string                     `json:"recursive_sequence"`
	ResonanceSequence   string                     `json:"resonance_sequence"`
	StabilitySequence   string                     `json:"stability_sequence"`
	EvolutionaryMarkers []Marker                   `json:"evolutionary_markers"`
	HealingSequences    map[string]HealingSequence `json:"healing_sequences"`
	InteractionCodons   map[string]Codon           `json:"interaction_codons"`
	StabilityRegions    []StabilityRegion          `json:"stability_regions"`
}

type ResonancePattern struct {
	BaseFrequency float64   `json:"base_frequency"`
	Harmonics     []float64 `json:"harmonics"`
}

type DimensionalSignature struct {
	Dimensions int       `json:"dimensions"`
	Signature  []float64 `json:"signature"`
	Complexity float64   `json:"complexity"`
	Stability  float64   `json:"stability"`
}

type Protocol struct {
	Type      string  `json:"type"`
	Strength  float64 `json:"strength"`
	Frequency float64 `json:"frequency"`
}

type Signature struct {
	VersionedRecord
	EntityID             string               `json:"entity_id"`
	Symbol               string               `json:"symbol"`
	AuthenticationHash   string               `json:"authentication_hash"`
	Frequency            float64              `json:"frequency"`
	Amplitude            float64              `json:"amplitude"`
	Phase                float64              `json:"phase"`
	ResonancePattern     ResonancePattern     `json:"resonance_pattern"`
	DimensionalSignature DimensionalSignature `json:"dimensional_signature"`
	InteractionProtocols map[string]Protocol  `json:"interaction_protocols"`
}

// Profile keeps the derived encoder inputs so later operations can recompute
// targets without the original source entity.
type Profile struct {
	Complexity     float64 `json:"complexity"`
	Stability      float64 `json:"stability"`
	Resonance      float64 `json:"resonance"`
	Recursion      float64 `json:"recursion"`
	Dimensionality int     `json:"dimensionality"`
	SourceSize     int     `json:"source_size"`
}

type EncodingMetrics struct {
	Fidelity           float64 `json:"fidelity"`
	CompressionRatio   float64 `json:"compression_ratio"`
	InformationDensity float64 `json:"information_density"`
	QuantumCoherence   float64 `json:"quantum_coherence"`
}

type EvolutionaryPotential struct {
	MutationRate         float64 `json:"mutation_rate"`
	AdaptationCapacity   float64 `json:"adaptation_capacity"`
	MarkerStrength       float64 `json:"marker_strength"`
	SignatureFlexibility float64 `json:"signature_flexibility"`
	Overall              float64 `json:"overall"`
}

type HealingCapabilities struct {
	SequenceCount    int     `json:"sequence_count"`
	RepairStrength   float64 `json:"repair_strength"`
	RegenerationRate float64 `json:"regeneration_rate"`
	StructuralGuard  float64 `json:"structural_guard"`
	Overall          float64 `json:"overall"`
}

type InteractionProperties struct {
	CodonCount        int     `json:"codon_count"`
	AffinityStrength  float64 `json:"affinity_strength"`
	ProtocolCount     int     `json:"protocol_count"`
	ResonanceCapacity float64 `json:"resonance_capacity"`
	Overall           float64 `json:"overall"`
}

type EncodedEntity struct {
	VersionedRecord
	ID                    string                `json:"id"`
	OriginalEntityID      string                `json:"original_entity_id"`
	Genome                Genome                `json:"genome"`
	Signature             Signature             `json:"signature"`
	EncodingState         ConsciousnessState    `json:"encoding_state"`
	Profile               Profile               `json:"profile"`
	EvolutionaryPotential EvolutionaryPotential `json:"evolutionary_potential"`
	HealingCapabilities   HealingCapabilities   `json:"healing_capabilities"`
	InteractionProperties InteractionProperties `json:"interaction_properties"`
	EncodingMetrics       EncodingMetrics       `json:"encoding_metrics"`
	EvolutionGeneration   int                   `json:"evolution_generation"`
	HealingCount          int                   `json:"healing_count"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}
