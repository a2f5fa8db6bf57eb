package healing

import (
	"math"
	"math/rand"
	"time"

	"dnasigil/internal/fitness"
	"dnasigil/internal/genotype"
	"dnasigil/internal/model"
)

type DamageParams = model.DamageParams

// Category thresholds above which a pattern carries repair instructions.
const (
	DNAThreshold           = 0.3
	SigilThreshold         = 0.2
	ConsciousnessThreshold = 0.1
	StructuralThreshold    = 0.3
	FunctionalThreshold    = 0.3
)

const ambientCeiling = 0.1

// Observed sub-scores report how far a measured value has fallen below its
// floor; values at or above the floor contribute no damage.
const (
	diversityFloor = 0.6
	healthyFloor   = 0.5
)

// CanonicalState is the state consciousness restoration steers toward.
var CanonicalState = model.ConsciousnessState{
	Phi:         0.862,
	Awareness:   0.8,
	Coherence:   0.85,
	Integration: 0.9,
}

var priorityBaseTimes = map[model.HealingPriority]time.Duration{
	model.PriorityCritical: time.Hour,
	model.PriorityHigh:     30 * time.Minute,
	model.PriorityMedium:   15 * time.Minute,
	model.PriorityLow:      5 * time.Minute,
	model.PriorityMinimal:  time.Minute,
}

// Per-category multipliers applied to the base time for every category whose
// damage crosses its threshold.
const (
	dnaTimeFactor           = 1.5
	sigilTimeFactor         = 1.2
	consciousnessTimeFactor = 2.0
	structuralTimeFactor    = 1.3
	functionalTimeFactor    = 1.1
)

// AssessDamage scores reported and observed damage on entity. rng is only
// drawn from when params.Ambient is set.
func AssessDamage(entity model.EncodedEntity, params DamageParams, rng *rand.Rand) model.DamageAssessment {
	ambient := func() float64 {
		if !params.Ambient || rng == nil {
			return 0
		}
		return rng.Float64() * ambientCeiling
	}
	score := func(v float64) float64 {
		return fitness.Clamp01(fitness.Clamp01(v) + ambient())
	}

	diversity := deficit(fitness.InformationDensity(entity.Genome.Sequence), diversityFloor)
	dna := model.DNADamage{
		SequenceDamage:        math.Max(score(params.SequenceCorruption), diversity),
		MarkerDamage:          score(params.MarkerLoss),
		CodonDamage:           score(params.CodonDegradation),
		RegionDamage:          score(params.RegionInstability),
		HealingSequenceDamage: score(params.HealingSequenceDecay),
		DiversityDeficit:      diversity,
	}
	dna.OverallDNADamage = fitness.Mean(dna.SequenceDamage, dna.MarkerDamage, dna.CodonDamage, dna.RegionDamage, dna.HealingSequenceDamage)

	mismatch := 0.0
	if !genotype.Verify(entity.Signature, entity.OriginalEntityID, entity.Genome) {
		mismatch = 1
	}
	sigil := model.SigilDamage{
		FrequencyDamage:  score(params.FrequencyDrift),
		AmplitudeDamage:  score(params.AmplitudeDecay),
		PhaseDamage:      score(params.PhaseDistortion),
		ProtocolDamage:   score(params.ProtocolCorruption),
		ChecksumMismatch: mismatch,
	}
	sigil.OverallSigilDamage = fitness.Mean(sigil.FrequencyDamage, sigil.AmplitudeDamage, sigil.PhaseDamage, sigil.ProtocolDamage, sigil.ChecksumMismatch)

	disruption := fitness.Clamp01(params.ConsciousnessDisruption)
	state := entity.EncodingState
	consciousness := model.ConsciousnessDamage{
		PhiDamage:         score(params.PhiDegradation + 0.8*disruption),
		AwarenessDamage:   score(params.AwarenessLoss + 0.6*disruption),
		CoherenceDamage:   score(params.CoherenceLoss + 0.7*disruption),
		IntegrationDamage: score(params.IntegrationLoss + 0.5*disruption),
		TargetDeviation: fitness.Mean(
			math.Abs(state.Phi-CanonicalState.Phi),
			math.Abs(state.Awareness-CanonicalState.Awareness),
			math.Abs(state.Coherence-CanonicalState.Coherence),
			math.Abs(state.Integration-CanonicalState.Integration),
		),
	}
	consciousness.OverallConsciousnessDamage = fitness.Mean(consciousness.PhiDamage, consciousness.AwarenessDamage, consciousness.CoherenceDamage, consciousness.IntegrationDamage, consciousness.TargetDeviation)

	stress := fitness.Clamp01(params.StructuralStress)
	structural := model.StructuralDamage{
		StressDamage:      score(stress),
		DimensionalDamage: score(params.DimensionalCollapse + 0.5*stress),
		ResonanceDamage:   score(params.ResonanceLoss + 0.3*stress),
		BoundaryDamage:    score(params.BoundaryErosion + 0.4*stress),
		RegionWeakness:    deficit(meanRegionStrength(entity.Genome.StabilityRegions), healthyFloor),
	}
	structural.OverallStructuralDamage = fitness.Mean(structural.StressDamage, structural.DimensionalDamage, structural.ResonanceDamage, structural.BoundaryDamage, structural.RegionWeakness)

	impairment := fitness.Clamp01(params.FunctionalImpairment)
	functional := model.FunctionalDamage{
		ImpairmentDamage:  score(impairment),
		InteractionDamage: score(params.InteractionLoss + 0.5*impairment),
		EvolutionDamage:   score(params.EvolutionBlock + 0.4*impairment),
		HealingDamage:     score(params.HealingResistance + 0.3*impairment),
		CapabilityDeficit: deficit(fitness.Mean(
			entity.EvolutionaryPotential.Overall,
			entity.HealingCapabilities.Overall,
			entity.InteractionProperties.Overall,
		), healthyFloor),
	}
	functional.OverallFunctionalDamage = fitness.Mean(functional.ImpairmentDamage, functional.InteractionDamage, functional.EvolutionDamage, functional.HealingDamage, functional.CapabilityDeficit)

	severity := fitness.Clamp01(fitness.Mean(
		dna.OverallDNADamage,
		sigil.OverallSigilDamage,
		consciousness.OverallConsciousnessDamage,
		structural.OverallStructuralDamage,
		functional.OverallFunctionalDamage,
	))
	priority := PriorityFor(severity)

	multiplier := 1.0
	for _, c := range []struct {
		damage, threshold, factor float64
	}{
		{dna.OverallDNADamage, DNAThreshold, dnaTimeFactor},
		{sigil.OverallSigilDamage, SigilThreshold, sigilTimeFactor},
		{consciousness.OverallConsciousnessDamage, ConsciousnessThreshold, consciousnessTimeFactor},
		{structural.OverallStructuralDamage, StructuralThreshold, structuralTimeFactor},
		{functional.OverallFunctionalDamage, FunctionalThreshold, functionalTimeFactor},
	} {
		if c.damage > c.threshold {
			multiplier *= c.factor
		}
	}

	return model.DamageAssessment{
		EntityID:             entity.ID,
		DNADamage:            dna,
		SigilDamage:          sigil,
		ConsciousnessDamage:  consciousness,
		StructuralDamage:     structural,
		FunctionalDamage:     functional,
		OverallSeverity:      severity,
		HealingPriority:      priority,
		EstimatedHealingTime: time.Duration(float64(priorityBaseTimes[priority]) * multiplier),
	}
}

// PriorityFor maps a severity in [0,1] onto a priority band.
func PriorityFor(severity float64) model.HealingPriority {
	switch {
	case severity > 0.8:
		return model.PriorityCritical
	case severity > 0.6:
		return model.PriorityHigh
	case severity > 0.4:
		return model.PriorityMedium
	case severity > 0.2:
		return model.PriorityLow
	default:
		return model.PriorityMinimal
	}
}

func deficit(v, floor float64) float64 {
	return fitness.Clamp01((floor - v) / floor)
}

func meanRegionStrength(regions []model.StabilityRegion) float64 {
	if len(regions) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range regions {
		sum += r.Strength
	}
	return fitness.Clamp01(sum / float64(len(regions)))
}
