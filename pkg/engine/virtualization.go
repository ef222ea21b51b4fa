package engine

import "github.com/the-byte-bender/Playmaker.Audio/pkg/voice"

// runVirtualizationScheduler promotes virtual voices to physical where
// the pool has spare capacity (§4.10). When Config.PreemptionEnabled is
// set, it additionally demotes lower-priority physical voices to make
// room for higher-priority virtual ones — the explicitly-chosen
// alternative to the source's promotion-only behavior (§9).
func (e *Engine) runVirtualizationScheduler() {
	var virtual, physical []*voice.Voice
	for _, v := range e.voices {
		switch {
		case v.State() == voice.PlayingVirtual || v.State() == voice.PausedVirtual:
			virtual = append(virtual, v)
		case v.State().Physical():
			physical = append(physical, v)
		}
	}

	for _, v := range virtual {
		v.Promote()
	}

	if !e.cfg.PreemptionEnabled {
		return
	}
	e.preempt(physical)
}

// preempt re-scans for virtual voices that failed to promote (the pool
// was exhausted) and, for each, demotes the lowest-priority physical
// voice if that voice's priority trails the candidate's by at least
// Config.PreemptionMargin.
func (e *Engine) preempt(physical []*voice.Voice) {
	for _, v := range e.voices {
		if v.State() != voice.PlayingVirtual && v.State() != voice.PausedVirtual {
			continue
		}
		victim := lowestPriority(physical)
		if victim == nil {
			return
		}
		if v.EffectivePriority()-victim.EffectivePriority() < e.cfg.PreemptionMargin {
			continue
		}
		victim.Demote()
		physical = removeVoice(physical, victim)
		v.Promote()
	}
}

func lowestPriority(voices []*voice.Voice) *voice.Voice {
	var lowest *voice.Voice
	for _, v := range voices {
		if lowest == nil || v.EffectivePriority() < lowest.EffectivePriority() {
			lowest = v
		}
	}
	return lowest
}

func removeVoice(voices []*voice.Voice, target *voice.Voice) []*voice.Voice {
	out := voices[:0]
	for _, v := range voices {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
