package healing

import (
	"fmt"
	"math"

	"dnasigil/internal/fitness"
	"dnasigil/internal/genotype"
	"dnasigil/internal/model"
)

// Component weights for the overall effectiveness average.
const (
	dnaWeight           = 0.9
	sigilWeight         = 0.85
	consciousnessWeight = 0.95
	structuralWeight    = 0.8
	functionalWeight    = 0.88
)

const (
	minFrequency = 1.0
	maxFrequency = 10000.0
)

// ApplyPattern executes pattern against a deep copy of entity. DNA, sigil and
// consciousness instructions change the copy; structural and functional
// instructions only produce repair records. severity feeds the
// healing-effectiveness ratio.
func ApplyPattern(entity model.EncodedEntity, pattern model.HealingPattern, severity float64) (model.EncodedEntity, model.HealingResult) {
	healed := genotype.CloneEntity(entity)
	result := model.HealingResult{
		StateBefore:  entity.EncodingState,
		HealingPower: pattern.HealingPower,
	}

	if len(pattern.DNA) > 0 {
		result.DNA = applyGroup(&healed, pattern.DNA, applyDNA)
	}
	if len(pattern.Sigil) > 0 {
		result.Sigil = applyGroup(&healed, pattern.Sigil, applySigil)
	}
	if len(pattern.Consciousness) > 0 {
		result.Consciousness = applyGroup(&healed, pattern.Consciousness, applyState)
	}
	if len(pattern.Structural) > 0 {
		result.StructuralRepairs = records(pattern.Structural)
		result.Structural = recordResult(pattern.Structural)
	}
	if len(pattern.Functional) > 0 {
		result.FunctionalRepairs = records(pattern.Functional)
		result.Functional = recordResult(pattern.Functional)
	}

	healed.Genome.ConsciousnessBases = genotype.QuantizeState(healed.EncodingState)
	genotype.Reseal(&healed.Signature, healed.OriginalEntityID, healed.Genome)
	fitness.Refresh(&healed)

	result.StateAfter = healed.EncodingState
	result.OverallEffectiveness = overallEffectiveness(result)
	result.HealingEffectiveness = fitness.Clamp01(pattern.HealingPower / math.Max(0.1, severity))
	return healed, result
}

type applyFn func(e *model.EncodedEntity, inst model.RepairInstruction) (bool, string)

func applyGroup(e *model.EncodedEntity, instructions []model.RepairInstruction, fn applyFn) *model.ComponentResult {
	res := &model.ComponentResult{}
	achieved := 0.0
	for _, inst := range instructions {
		ok, note := fn(e, inst)
		if note != "" {
			res.Notes = append(res.Notes, note)
		}
		if !ok {
			res.Skipped++
			continue
		}
		res.Applied++
		achieved += inst.Intensity
	}
	res.Effectiveness = fitness.Clamp01(achieved / float64(len(instructions)))
	return res
}

func applyDNA(e *model.EncodedEntity, inst model.RepairInstruction) (bool, string) {
	g := &e.Genome
	switch inst.Kind {
	case KindBaseReplacement:
		if len(inst.Positions) == 0 || len(inst.Positions) != len(inst.Bases) {
			return false, "no bases to replace"
		}
		seq := []byte(g.Sequence)
		replaced := 0
		for i, pos := range inst.Positions {
			if pos < 0 || pos >= len(seq) {
				continue
			}
			seq[pos] = inst.Bases[i]
			replaced++
		}
		g.Sequence = string(seq)
		return replaced > 0, fmt.Sprintf("replaced %d bases", replaced)
	case KindMarkerRestoration:
		if len(g.EvolutionaryMarkers) == 0 {
			return false, "no markers to restore"
		}
		for i := range g.EvolutionaryMarkers {
			g.EvolutionaryMarkers[i].Strength = reinforce(g.EvolutionaryMarkers[i].Strength, inst.Intensity)
		}
		return true, ""
	case KindCodonRestoration:
		if len(g.InteractionCodons) == 0 {
			return false, "no codons to restore"
		}
		for _, name := range fitness.SortedKeys(g.InteractionCodons) {
			codon := g.InteractionCodons[name]
			codon.Strength = reinforce(codon.Strength, inst.Intensity)
			g.InteractionCodons[name] = codon
		}
		return true, ""
	case KindRegionReinforcement:
		if len(g.StabilityRegions) == 0 {
			return false, "no regions to reinforce"
		}
		for i := range g.StabilityRegions {
			g.StabilityRegions[i].Strength = reinforce(g.StabilityRegions[i].Strength, inst.Intensity)
		}
		return true, ""
	case KindHealingSequenceRestoration:
		if len(g.HealingSequences) == 0 {
			return false, "no healing sequences to restore"
		}
		for _, name := range fitness.SortedKeys(g.HealingSequences) {
			seq := g.HealingSequences[name]
			seq.Strength = reinforce(seq.Strength, inst.Intensity)
			g.HealingSequences[name] = seq
		}
		return true, ""
	}
	return false, "unknown dna instruction " + inst.Kind
}

func applySigil(e *model.EncodedEntity, inst model.RepairInstruction) (bool, string) {
	s := &e.Signature
	switch inst.Kind {
	case KindFrequencyRestoration:
		next := fitness.Clamp(approach(s.Frequency, inst.TargetValue, inst.Intensity), minFrequency, maxFrequency)
		if s.Frequency > 0 {
			scale := next / s.Frequency
			s.ResonancePattern.BaseFrequency *= scale
			for i := range s.ResonancePattern.Harmonics {
				s.ResonancePattern.Harmonics[i] *= scale
			}
		}
		s.Frequency = next
		return true, ""
	case KindAmplitudeRestoration:
		s.Amplitude = fitness.Clamp01(approach(s.Amplitude, inst.TargetValue, inst.Intensity))
		return true, ""
	case KindPhaseRestoration:
		delta := math.Remainder(inst.TargetValue-s.Phase, 2*math.Pi)
		s.Phase = genotype.NormalizePhase(s.Phase + delta*inst.Intensity)
		return true, ""
	case KindProtocolRestoration:
		if len(s.InteractionProtocols) == 0 {
			return false, "no protocols to restore"
		}
		for _, name := range fitness.SortedKeys(s.InteractionProtocols) {
			p := s.InteractionProtocols[name]
			p.Strength = reinforce(p.Strength, inst.Intensity)
			s.InteractionProtocols[name] = p
		}
		return true, ""
	case KindReseal:
		// ApplyPattern reseals after every instruction has run.
		return true, "authentication hash resealed"
	}
	return false, "unknown sigil instruction " + inst.Kind
}

func applyState(e *model.EncodedEntity, inst model.RepairInstruction) (bool, string) {
	s := &e.EncodingState
	var field *float64
	switch inst.Target {
	case "phi":
		field = &s.Phi
	case "awareness":
		field = &s.Awareness
	case "coherence":
		field = &s.Coherence
	case "integration":
		field = &s.Integration
	default:
		return false, "unknown state target " + inst.Target
	}
	*field = fitness.Clamp01(approach(*field, inst.TargetValue, inst.Intensity))
	return true, ""
}

func records(instructions []model.RepairInstruction) []model.RepairRecord {
	out := make([]model.RepairRecord, 0, len(instructions))
	for _, inst := range instructions {
		out = append(out, model.RepairRecord{
			Kind:      inst.Kind,
			Target:    inst.Target,
			Intensity: inst.Intensity,
			Outcome:   "recorded",
		})
	}
	return out
}

func recordResult(instructions []model.RepairInstruction) *model.ComponentResult {
	sum := 0.0
	for _, inst := range instructions {
		sum += inst.Intensity
	}
	return &model.ComponentResult{
		Applied:       len(instructions),
		Effectiveness: fitness.Clamp01(sum / float64(len(instructions))),
	}
}

func overallEffectiveness(r model.HealingResult) float64 {
	weighted := 0.0
	total := 0.0
	for _, c := range []struct {
		result *model.ComponentResult
		weight float64
	}{
		{r.DNA, dnaWeight},
		{r.Sigil, sigilWeight},
		{r.Consciousness, consciousnessWeight},
		{r.Structural, structuralWeight},
		{r.Functional, functionalWeight},
	} {
		if c.result == nil {
			continue
		}
		weighted += c.weight * c.result.Effectiveness
		total += c.weight
	}
	if total == 0 {
		return 0
	}
	return fitness.Clamp01(weighted / total)
}

// approach moves cur toward target by the given fraction of the gap.
func approach(cur, target, intensity float64) float64 {
	return cur + (target-cur)*intensity
}

func reinforce(strength, intensity float64) float64 {
	return fitness.Clamp01(strength + (1-strength)*intensity*0.5)
}
