package evo

import (
	"dnasigil/internal/fitness"
	"dnasigil/internal/model"
)

type Pressures = model.Pressures

const defaultPressure = 0.5

// DefaultPressures sets every scalar to 0.5.
func DefaultPressures() Pressures {
	return Pressures{
		Environmental: model.EnvironmentalPressure{Complexity: defaultPressure, Stability: defaultPressure, Resources: defaultPressure, Competition: defaultPressure},
		Consciousness: model.ConsciousnessPressure{Phi: defaultPressure, Awareness: defaultPressure, Coherence: defaultPressure, Integration: defaultPressure},
		Healing:       model.HealingPressure{Repair: defaultPressure, Regeneration: defaultPressure, Resilience: defaultPressure, Adaptation: defaultPressure},
		Interaction:   model.InteractionPressure{Communication: defaultPressure, Cooperation: defaultPressure, Resonance: defaultPressure, Synchronization: defaultPressure},
	}
}

// NormalizePressures replaces every all-zero group with its defaults and
// clamps the remaining scalars to [0,1]. A group with any non-zero field is
// taken as given, so a caller can still drive single scalars to zero.
func NormalizePressures(p Pressures) Pressures {
	def := DefaultPressures()
	out := p

	if out.Environmental == (model.EnvironmentalPressure{}) {
		out.Environmental = def.Environmental
	}
	if out.Consciousness == (model.ConsciousnessPressure{}) {
		out.Consciousness = def.Consciousness
	}
	if out.Healing == (model.HealingPressure{}) {
		out.Healing = def.Healing
	}
	if out.Interaction == (model.InteractionPressure{}) {
		out.Interaction = def.Interaction
	}

	e := &out.Environmental
	e.Complexity, e.Stability, e.Resources, e.Competition = fitness.Clamp01(e.Complexity), fitness.Clamp01(e.Stability), fitness.Clamp01(e.Resources), fitness.Clamp01(e.Competition)
	c := &out.Consciousness
	c.Phi, c.Awareness, c.Coherence, c.Integration = fitness.Clamp01(c.Phi), fitness.Clamp01(c.Awareness), fitness.Clamp01(c.Coherence), fitness.Clamp01(c.Integration)
	h := &out.Healing
	h.Repair, h.Regeneration, h.Resilience, h.Adaptation = fitness.Clamp01(h.Repair), fitness.Clamp01(h.Regeneration), fitness.Clamp01(h.Resilience), fitness.Clamp01(h.Adaptation)
	i := &out.Interaction
	i.Communication, i.Cooperation, i.Resonance, i.Synchronization = fitness.Clamp01(i.Communication), fitness.Clamp01(i.Cooperation), fitness.Clamp01(i.Resonance), fitness.Clamp01(i.Synchronization)
	return out
}
