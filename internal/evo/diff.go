package evo

import (
	"dnasigil/internal/fitness"
	"dnasigil/internal/model"
)

// Diff summarizes what changed between two versions of an entity.
func Diff(before, after model.EncodedEntity) model.EvolutionDiff {
	subs, ins, del := editOps(before.Genome.Sequence, after.Genome.Sequence)

	bb, ab := before.Genome.ConsciousnessBases, after.Genome.ConsciousnessBases
	return model.EvolutionDiff{
		MutationCount:    subs,
		Insertions:       ins,
		Deletions:        del,
		Markers:          mapDelta(keyed(before.Genome.EvolutionaryMarkers, markerKey), keyed(after.Genome.EvolutionaryMarkers, markerKey)),
		Codons:           mapDelta(before.Genome.InteractionCodons, after.Genome.InteractionCodons),
		Regions:          mapDelta(keyed(before.Genome.StabilityRegions, regionKey), keyed(after.Genome.StabilityRegions, regionKey)),
		HealingSequences: mapDelta(before.Genome.HealingSequences, after.Genome.HealingSequences),
		Protocols:        mapDelta(before.Signature.InteractionProtocols, after.Signature.InteractionProtocols),
		BaseDeltas: model.ConsciousnessState{
			Phi:         ab.Phi - bb.Phi,
			Awareness:   ab.Awareness - bb.Awareness,
			Coherence:   ab.Coherence - bb.Coherence,
			Integration: ab.Integration - bb.Integration,
		},
		FrequencyDelta: after.Signature.Frequency - before.Signature.Frequency,
		AmplitudeDelta: after.Signature.Amplitude - before.Signature.Amplitude,
		PhaseDelta:     after.Signature.Phase - before.Signature.Phase,
	}
}

// editOps counts substitutions, insertions and deletions in one minimal edit
// script turning a into b.
func editOps(a, b string) (subs, ins, del int) {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
		dp[i][0] = i
	}
	for j := 0; j <= m; j++ {
		dp[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			dp[i][j] = min(dp[i-1][j-1]+cost, dp[i-1][j]+1, dp[i][j-1]+1)
		}
	}

	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1] && dp[i][j] == dp[i-1][j-1]:
			i, j = i-1, j-1
		case i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+1:
			subs++
			i, j = i-1, j-1
		case i > 0 && dp[i][j] == dp[i-1][j]+1:
			del++
			i--
		default:
			ins++
			j--
		}
	}
	return subs, ins, del
}

func markerKey(m model.Marker) string { return m.Type }

func regionKey(r model.StabilityRegion) string { return r.Type }

func keyed[T any](items []T, key func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := out[k]; !ok {
			out[k] = item
		}
	}
	return out
}

func mapDelta[V comparable](before, after map[string]V) model.CollectionDelta {
	var delta model.CollectionDelta
	for _, k := range fitness.SortedKeys(after) {
		prev, ok := before[k]
		switch {
		case !ok:
			delta.Added = append(delta.Added, k)
		case prev != after[k]:
			delta.Modified = append(delta.Modified, k)
		}
	}
	for _, k := range fitness.SortedKeys(before) {
		if _, ok := after[k]; !ok {
			delta.Removed = append(delta.Removed, k)
		}
	}
	return delta
}
