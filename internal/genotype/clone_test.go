package genotype

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnasigil/internal/model"
)

func TestCloneEntityIsDeep(t *testing.T) {
	encoded, err := Encode(model.SourceEntity{ID: "clone"}, model.ConsciousnessState{Phi: 0.9, Awareness: 0.9, Coherence: 0.9, Integration: 0.9}, rand.New(rand.NewSource(4)))
	require.NoError(t, err)

	cloned := CloneEntity(encoded)
	cloned.Genome.EvolutionaryMarkers[0].Strength = 0
	cloned.Genome.StabilityRegions[0].Strength = 0
	cloned.Genome.HealingSequences["dna_repair"] = model.HealingSequence{}
	cloned.Genome.InteractionCodons["harmony"] = model.Codon{}
	cloned.Signature.ResonancePattern.Harmonics[0] = -1
	cloned.Signature.DimensionalSignature.Signature[0] = -1
	cloned.Signature.InteractionProtocols[ProtocolPhaseLock] = model.Protocol{}

	assert.NotZero(t, encoded.Genome.EvolutionaryMarkers[0].Strength)
	assert.NotZero(t, encoded.Genome.StabilityRegions[0].Strength)
	assert.NotEmpty(t, encoded.Genome.HealingSequences["dna_repair"].Sequence)
	assert.NotEmpty(t, encoded.Genome.InteractionCodons["harmony"].Type)
	assert.Positive(t, encoded.Signature.ResonancePattern.Harmonics[0])
	assert.GreaterOrEqual(t, encoded.Signature.DimensionalSignature.Signature[0], 0.0)
	assert.NotEmpty(t, encoded.Signature.InteractionProtocols[ProtocolPhaseLock].Type)
}

func TestCloneGenomeNilMaps(t *testing.T) {
	out := CloneGenome(model.Genome{Sequence: "ATCG"})
	assert.Nil(t, out.HealingSequences)
	assert.Nil(t, out.InteractionCodons)
	assert.Equal(t, "ATCG", out.Sequence)
}
