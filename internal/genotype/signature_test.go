package genotype

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnasigil/internal/model"
)

func TestSignatureChecksumDetectsSequenceDrift(t *testing.T) {
	encoded, err := Encode(model.SourceEntity{ID: "sig"}, ResolveState(model.SourceEntity{}, nil), rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	require.True(t, Verify(encoded.Signature, "sig", encoded.Genome))

	drifted := CloneGenome(encoded.Genome)
	b := []byte(drifted.Sequence)
	b[0] = RandomBaseExcept(rand.New(rand.NewSource(1)), b[0])
	drifted.Sequence = string(b)
	assert.False(t, Verify(encoded.Signature, "sig", drifted))

	sig := CloneSignature(encoded.Signature)
	Reseal(&sig, "sig", drifted)
	assert.True(t, Verify(sig, "sig", drifted))
	assert.Equal(t, encoded.Signature.Symbol, sig.Symbol)
}

func TestSignatureTargets(t *testing.T) {
	state := model.ConsciousnessState{Phi: 0.5, Awareness: 1, Coherence: 0, Integration: 0.25}
	profile := model.Profile{Resonance: 0.5}

	assert.InDelta(t, 80.0, TargetFrequency(state, profile), 1e-9)
	assert.InDelta(t, 0.6, TargetAmplitude(state), 1e-9)
	assert.InDelta(t, math.Pi/2, TargetPhase(state), 1e-9)
	assert.InDelta(t, 0.0, TargetPhase(model.ConsciousnessState{Integration: 1}), 1e-9)
}

func TestNormalizePhase(t *testing.T) {
	assert.InDelta(t, math.Pi, NormalizePhase(3*math.Pi), 1e-9)
	assert.InDelta(t, 1.5*math.Pi, NormalizePhase(-math.Pi/2), 1e-9)
}

func TestSymbolComesFromGlyphSet(t *testing.T) {
	encoded, err := Encode(model.SourceEntity{ID: "glyph"}, ResolveState(model.SourceEntity{}, nil), rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	assert.Contains(t, Glyphs, encoded.Signature.Symbol)
	assert.Len(t, encoded.Signature.AuthenticationHash, 8)
}
