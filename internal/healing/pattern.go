package healing

import (
	"math"
	"math/rand"
	"sort"

	"dnasigil/internal/fitness"
	"dnasigil/internal/genotype"
	"dnasigil/internal/model"
)

// Repair instruction kinds.
const (
	KindBaseReplacement            = "base_replacement"
	KindMarkerRestoration          = "marker_restoration"
	KindCodonRestoration           = "codon_restoration"
	KindRegionReinforcement        = "region_reinforcement"
	KindHealingSequenceRestoration = "healing_sequence_restoration"
	KindFrequencyRestoration       = "frequency_restoration"
	KindAmplitudeRestoration       = "amplitude_restoration"
	KindPhaseRestoration           = "phase_restoration"
	KindProtocolRestoration        = "protocol_restoration"
	KindReseal                     = "reseal"
	KindStateRestoration           = "state_restoration"
	KindStressRelief               = "stress_relief"
	KindDimensionalStabilization   = "dimensional_stabilization"
	KindResonanceRestoration       = "resonance_restoration"
	KindBoundaryReinforcement      = "boundary_reinforcement"
	KindStructuralRegionSupport    = "structural_region_support"
	KindImpairmentRepair           = "impairment_repair"
	KindInteractionRestoration     = "interaction_restoration"
	KindEvolutionUnblock           = "evolution_unblock"
	KindHealingEnhancement         = "healing_enhancement"
	KindCapabilityRestoration      = "capability_restoration"
)

const (
	minIntensity = 0.05
	maxIntensity = 0.95
)

// GeneratePattern turns an assessment into per-category repair instructions.
// A category contributes instructions only for sub-scores above its
// threshold. rng picks base-replacement positions and bases.
func GeneratePattern(entity model.EncodedEntity, a model.DamageAssessment, rng *rand.Rand) model.HealingPattern {
	p := model.HealingPattern{
		EntityID: entity.ID,
		Priority: a.HealingPriority,
	}

	dna := a.DNADamage
	if dna.SequenceDamage > DNAThreshold {
		p.DNA = append(p.DNA, baseReplacement(entity, dna.SequenceDamage, rng))
	}
	p.DNA = appendAbove(p.DNA, DNAThreshold, []candidate{
		{KindMarkerRestoration, "", dna.MarkerDamage, 0},
		{KindCodonRestoration, "", dna.CodonDamage, 0},
		{KindRegionReinforcement, "", dna.RegionDamage, 0},
		{KindHealingSequenceRestoration, "", dna.HealingSequenceDamage, 0},
	})

	sig := a.SigilDamage
	p.Sigil = appendAbove(p.Sigil, SigilThreshold, []candidate{
		{KindFrequencyRestoration, "frequency", sig.FrequencyDamage, genotype.TargetFrequency(entity.EncodingState, entity.Profile)},
		{KindAmplitudeRestoration, "amplitude", sig.AmplitudeDamage, genotype.TargetAmplitude(entity.EncodingState)},
		{KindPhaseRestoration, "phase", sig.PhaseDamage, genotype.TargetPhase(entity.EncodingState)},
		{KindProtocolRestoration, "", sig.ProtocolDamage, 0},
		{KindReseal, "", sig.ChecksumMismatch, 0},
	})

	cd := a.ConsciousnessDamage
	if overall := cd.OverallConsciousnessDamage; overall > ConsciousnessThreshold {
		for _, s := range []struct {
			target string
			damage float64
			value  float64
		}{
			{"phi", cd.PhiDamage, CanonicalState.Phi},
			{"awareness", cd.AwarenessDamage, CanonicalState.Awareness},
			{"coherence", cd.CoherenceDamage, CanonicalState.Coherence},
			{"integration", cd.IntegrationDamage, CanonicalState.Integration},
		} {
			p.Consciousness = append(p.Consciousness, model.RepairInstruction{
				Kind:        KindStateRestoration,
				Target:      s.target,
				Intensity:   intensity(0.5 * (s.damage + overall)),
				TargetValue: s.value,
			})
		}
	}

	st := a.StructuralDamage
	p.Structural = appendAbove(p.Structural, StructuralThreshold, []candidate{
		{KindStressRelief, "", st.StressDamage, 0},
		{KindDimensionalStabilization, "", st.DimensionalDamage, 0},
		{KindResonanceRestoration, "", st.ResonanceDamage, 0},
		{KindBoundaryReinforcement, "", st.BoundaryDamage, 0},
		{KindStructuralRegionSupport, "", st.RegionWeakness, 0},
	})

	fn := a.FunctionalDamage
	p.Functional = appendAbove(p.Functional, FunctionalThreshold, []candidate{
		{KindImpairmentRepair, "", fn.ImpairmentDamage, 0},
		{KindInteractionRestoration, "", fn.InteractionDamage, 0},
		{KindEvolutionUnblock, "", fn.EvolutionDamage, 0},
		{KindHealingEnhancement, "", fn.HealingDamage, 0},
		{KindCapabilityRestoration, "", fn.CapabilityDeficit, 0},
	})

	p.HealingPower = healingPower(p)
	return p
}

type candidate struct {
	kind   string
	target string
	damage float64
	value  float64
}

func appendAbove(dst []model.RepairInstruction, threshold float64, candidates []candidate) []model.RepairInstruction {
	for _, c := range candidates {
		if c.damage <= threshold {
			continue
		}
		dst = append(dst, model.RepairInstruction{
			Kind:        c.kind,
			Target:      c.target,
			Intensity:   intensity(c.damage),
			TargetValue: c.value,
		})
	}
	return dst
}

// baseReplacement picks ceil(damage*len*0.1) distinct positions and draws
// replacement bases with the same weight vector the encoder uses, taken from
// the genome's current bases and profile.
func baseReplacement(entity model.EncodedEntity, damage float64, rng *rand.Rand) model.RepairInstruction {
	n := len(entity.Genome.Sequence)
	count := int(math.Ceil(damage * float64(n) * 0.1))
	if count > n {
		count = n
	}
	inst := model.RepairInstruction{
		Kind:      KindBaseReplacement,
		Intensity: intensity(damage),
	}
	if count == 0 || rng == nil {
		return inst
	}

	positions := rng.Perm(n)[:count]
	sort.Ints(positions)

	bases := entity.Genome.ConsciousnessBases
	profile := entity.Profile
	weights := []float64{
		bases.Phi,
		bases.Awareness,
		bases.Coherence,
		bases.Integration,
		profile.Complexity,
		profile.Stability,
		float64(profile.Dimensionality) / 10,
		profile.Resonance,
	}
	out := make([]byte, count)
	for i := range out {
		out[i] = genotype.Alphabet[genotype.WeightedIndex(rng, weights, len(genotype.Alphabet))]
	}
	inst.Positions = positions
	inst.Bases = string(out)
	return inst
}

func intensity(damage float64) float64 {
	return fitness.Clamp(damage, minIntensity, maxIntensity)
}

func healingPower(p model.HealingPattern) float64 {
	sum := 0.0
	n := 0
	for _, group := range [][]model.RepairInstruction{p.DNA, p.Sigil, p.Consciousness, p.Structural, p.Functional} {
		for _, inst := range group {
			sum += inst.Intensity
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return fitness.Clamp01(sum / float64(n))
}
