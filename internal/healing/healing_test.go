package healing

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnasigil/internal/genotype"
	"dnasigil/internal/model"
)

func encodeDefault(t *testing.T) model.EncodedEntity {
	t.Helper()
	entity := model.SourceEntity{ID: "heal-me"}
	encoded, err := genotype.Encode(entity, genotype.ResolveState(entity, nil), rand.New(rand.NewSource(10)))
	require.NoError(t, err)
	encoded.ID = "enc-heal-me"
	return encoded
}

func fixedEngine() *Engine {
	return &Engine{
		NewID: func() string { return "pattern-1" },
		Now:   func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func TestHealMovesPhiTowardCanonical(t *testing.T) {
	entity := encodeDefault(t)
	out, err := fixedEngine().Heal(context.Background(), entity, DamageParams{ConsciousnessDisruption: 0.5}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	damage := out.Assessment.ConsciousnessDamage.OverallConsciousnessDamage
	assert.Greater(t, damage, 0.0)
	assert.LessOrEqual(t, damage, 1.0)

	before := math.Abs(entity.EncodingState.Phi - CanonicalState.Phi)
	after := math.Abs(out.Entity.EncodingState.Phi - CanonicalState.Phi)
	assert.Less(t, after, before)

	beforeBase := math.Abs(entity.Genome.ConsciousnessBases.Phi - CanonicalState.Phi)
	afterBase := math.Abs(out.Entity.Genome.ConsciousnessBases.Phi - CanonicalState.Phi)
	assert.Less(t, afterBase, beforeBase)

	assert.Equal(t, entity.EncodingState, out.Result.StateBefore)
	assert.Equal(t, out.Entity.EncodingState, out.Result.StateAfter)
	assert.Len(t, out.Pattern.Consciousness, 4)
	assert.Equal(t, "pattern-1", out.Pattern.ID)
}

func TestHealIncrementsCountAndKeepsInput(t *testing.T) {
	entity := encodeDefault(t)
	snapshot := genotype.CloneEntity(entity)

	out, err := fixedEngine().Heal(context.Background(), entity, DamageParams{
		SequenceCorruption: 0.9,
		MarkerLoss:         0.9,
		FrequencyDrift:     0.9,
		PhiDegradation:     0.9,
	}, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	assert.Equal(t, entity.HealingCount+1, out.Entity.HealingCount)
	if diff := cmp.Diff(snapshot, entity); diff != "" {
		t.Fatalf("input entity mutated (-before +after):\n%s", diff)
	}
	assert.True(t, genotype.Verify(out.Entity.Signature, out.Entity.OriginalEntityID, out.Entity.Genome))
}

func TestAssessDamageBounded(t *testing.T) {
	entity := encodeDefault(t)
	all := DamageParams{
		SequenceCorruption: 1, MarkerLoss: 1, CodonDegradation: 1, RegionInstability: 1, HealingSequenceDecay: 1,
		FrequencyDrift: 1, AmplitudeDecay: 1, PhaseDistortion: 1, ProtocolCorruption: 1,
		ConsciousnessDisruption: 1, PhiDegradation: 1, AwarenessLoss: 1, CoherenceLoss: 1, IntegrationLoss: 1,
		StructuralStress: 1, DimensionalCollapse: 1, ResonanceLoss: 1, BoundaryErosion: 1,
		FunctionalImpairment: 1, InteractionLoss: 1, EvolutionBlock: 1, HealingResistance: 1,
		Ambient: true,
	}
	over := all
	over.SequenceCorruption = 7
	over.PhiDegradation = -3

	for _, params := range []DamageParams{{}, {Ambient: true}, all, over} {
		a := AssessDamage(entity, params, rand.New(rand.NewSource(4)))
		for name, v := range map[string]float64{
			"dna":           a.DNADamage.OverallDNADamage,
			"sigil":         a.SigilDamage.OverallSigilDamage,
			"consciousness": a.ConsciousnessDamage.OverallConsciousnessDamage,
			"structural":    a.StructuralDamage.OverallStructuralDamage,
			"functional":    a.FunctionalDamage.OverallFunctionalDamage,
			"severity":      a.OverallSeverity,
			"sequence":      a.DNADamage.SequenceDamage,
			"phi":           a.ConsciousnessDamage.PhiDamage,
		} {
			assert.GreaterOrEqual(t, v, 0.0, name)
			assert.LessOrEqual(t, v, 1.0, name)
		}
		assert.Equal(t, PriorityFor(a.OverallSeverity), a.HealingPriority)
	}

	a := AssessDamage(entity, all, rand.New(rand.NewSource(4)))
	assert.Equal(t, 1.0, a.DNADamage.SequenceDamage)
	assert.Contains(t, []model.HealingPriority{model.PriorityHigh, model.PriorityCritical}, a.HealingPriority)
}

func TestAssessHealthyEntityIsMinimal(t *testing.T) {
	entity := encodeDefault(t)
	a := AssessDamage(entity, DamageParams{}, nil)

	assert.Equal(t, model.PriorityMinimal, a.HealingPriority)
	assert.Equal(t, time.Minute, a.EstimatedHealingTime)
	assert.Zero(t, a.SigilDamage.ChecksumMismatch)

	p := GeneratePattern(entity, a, rand.New(rand.NewSource(1)))
	assert.Zero(t, p.InstructionCount())
	assert.Zero(t, p.HealingPower)

	_, result := ApplyPattern(entity, p, a.OverallSeverity)
	assert.Zero(t, result.OverallEffectiveness)
	assert.Nil(t, result.DNA)
}

func TestLowDiversityCountsAsSequenceDamage(t *testing.T) {
	entity := encodeDefault(t)
	entity.Genome.Sequence = strings.Repeat("A", len(entity.Genome.Sequence))

	a := AssessDamage(entity, DamageParams{SequenceCorruption: 0.2}, nil)
	dna := a.DNADamage
	assert.Equal(t, 1.0, dna.DiversityDeficit)
	assert.Equal(t, 1.0, dna.SequenceDamage)
	assert.InDelta(t, (dna.SequenceDamage+dna.MarkerDamage+dna.CodonDamage+dna.RegionDamage+dna.HealingSequenceDamage)/5,
		dna.OverallDNADamage, 1e-12)

	p := GeneratePattern(entity, a, rand.New(rand.NewSource(1)))
	require.NotEmpty(t, p.DNA)
	assert.Equal(t, KindBaseReplacement, p.DNA[0].Kind)
}

func TestPriorityFor(t *testing.T) {
	cases := map[float64]model.HealingPriority{
		0.95: model.PriorityCritical,
		0.7:  model.PriorityHigh,
		0.5:  model.PriorityMedium,
		0.3:  model.PriorityLow,
		0.2:  model.PriorityMinimal,
		0:    model.PriorityMinimal,
	}
	for severity, want := range cases {
		assert.Equal(t, want, PriorityFor(severity), "severity %v", severity)
	}
}

func TestGeneratePatternBaseReplacement(t *testing.T) {
	entity := encodeDefault(t)

	a := AssessDamage(entity, DamageParams{SequenceCorruption: 0.3}, nil)
	p := GeneratePattern(entity, a, rand.New(rand.NewSource(1)))
	assert.Empty(t, p.DNA, "damage at the threshold must not trigger repair")

	a = AssessDamage(entity, DamageParams{SequenceCorruption: 0.5}, nil)
	p = GeneratePattern(entity, a, rand.New(rand.NewSource(1)))
	require.NotEmpty(t, p.DNA)
	inst := p.DNA[0]
	assert.Equal(t, KindBaseReplacement, inst.Kind)

	want := int(math.Ceil(0.5 * float64(len(entity.Genome.Sequence)) * 0.1))
	assert.Len(t, inst.Positions, want)
	assert.Len(t, inst.Bases, want)
	for i := 1; i < len(inst.Positions); i++ {
		assert.Less(t, inst.Positions[i-1], inst.Positions[i])
	}

	healed, result := ApplyPattern(entity, p, a.OverallSeverity)
	require.NotNil(t, result.DNA)
	assert.Equal(t, 1, result.DNA.Applied)
	for i, pos := range inst.Positions {
		assert.Equal(t, inst.Bases[i], healed.Genome.Sequence[pos])
	}
}

func TestStructuralRepairsAreRecordsOnly(t *testing.T) {
	entity := encodeDefault(t)
	a := AssessDamage(entity, DamageParams{StructuralStress: 1, FunctionalImpairment: 1}, nil)
	p := GeneratePattern(entity, a, rand.New(rand.NewSource(1)))
	require.NotEmpty(t, p.Structural)
	require.NotEmpty(t, p.Functional)

	healed, result := ApplyPattern(entity, p, a.OverallSeverity)
	assert.Len(t, result.StructuralRepairs, len(p.Structural))
	assert.Len(t, result.FunctionalRepairs, len(p.Functional))
	assert.Equal(t, entity.Genome.StabilityRegions, healed.Genome.StabilityRegions)
	assert.Equal(t, entity.Signature.DimensionalSignature, healed.Signature.DimensionalSignature)

	assert.GreaterOrEqual(t, result.OverallEffectiveness, 0.0)
	assert.LessOrEqual(t, result.OverallEffectiveness, 1.0)
	assert.GreaterOrEqual(t, result.HealingEffectiveness, 0.0)
	assert.LessOrEqual(t, result.HealingEffectiveness, 1.0)
}

func TestHealRestoresDriftedChecksum(t *testing.T) {
	entity := encodeDefault(t)
	seq := []byte(entity.Genome.Sequence)
	seq[3] = genotype.RandomBaseExcept(rand.New(rand.NewSource(5)), seq[3])
	entity.Genome.Sequence = string(seq)

	out, err := fixedEngine().Heal(context.Background(), entity, DamageParams{}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Assessment.SigilDamage.ChecksumMismatch)
	require.NotEmpty(t, out.Pattern.Sigil)
	assert.Equal(t, KindReseal, out.Pattern.Sigil[len(out.Pattern.Sigil)-1].Kind)
	assert.True(t, genotype.Verify(out.Entity.Signature, out.Entity.OriginalEntityID, out.Entity.Genome))
}

func TestSigilRestorationApproachesTargets(t *testing.T) {
	entity := encodeDefault(t)
	entity.Signature.Amplitude = 0.1
	entity.Signature.Phase = genotype.NormalizePhase(entity.Signature.Phase + math.Pi)

	out, err := fixedEngine().Heal(context.Background(), entity, DamageParams{AmplitudeDecay: 0.6, PhaseDistortion: 0.6}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	target := genotype.TargetAmplitude(entity.EncodingState)
	assert.Less(t, math.Abs(out.Entity.Signature.Amplitude-target), math.Abs(entity.Signature.Amplitude-target))

	phaseGap := func(p float64) float64 {
		return math.Abs(math.Remainder(p-genotype.TargetPhase(entity.EncodingState), 2*math.Pi))
	}
	assert.Less(t, phaseGap(out.Entity.Signature.Phase), phaseGap(entity.Signature.Phase))
}

func TestHealDeterministicWithSeed(t *testing.T) {
	entity := encodeDefault(t)
	params := DamageParams{SequenceCorruption: 0.8, Ambient: true, ConsciousnessDisruption: 0.4}

	a, err := fixedEngine().Heal(context.Background(), entity, params, rand.New(rand.NewSource(77)))
	require.NoError(t, err)
	b, err := fixedEngine().Heal(context.Background(), entity, params, rand.New(rand.NewSource(77)))
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("heal differs with equal seeds (-a +b):\n%s", diff)
	}
}

func TestHealRequiresRand(t *testing.T) {
	_, err := NewEngine().Heal(context.Background(), encodeDefault(t), DamageParams{}, nil)
	require.ErrorIs(t, err, ErrRandomSourceRequired)
}
