package engine

import (
	"pairwise/internal/domain"
	"pairwise/internal/roles"
	"pairwise/internal/rotation"
)

// PlanRound computes the next round of g. It works on a copy: on error g is
// returned untouched, on success the returned group carries the advanced
// rotation, round counts, lead counts and round counter.
func PlanRound(g domain.Group) (domain.Group, domain.RoundResult, error) {
	next := cloneGroup(g)

	roster := make([]rotation.Member, len(next.Participants))
	led := roles.LedCounts{}
	for i, p := range next.Participants {
		roster[i] = rotation.Member{ID: p.ID, JoinOrder: p.JoinOrder, RoundCount: p.RoundCount}
		if len(p.LedCounts) > 0 {
			led[p.ID] = p.LedCounts
		}
	}

	out, err := rotation.Compute(rotation.Input{
		Roster:                 roster,
		SupervisorParticipates: next.SupervisorParticipates,
		Prior:                  next.Rotation,
	})
	if err != nil {
		return g, domain.RoundResult{}, err
	}

	pairs := roles.Assign(out.Pairs, led)
	roles.Record(pairs, led)

	played := make(map[int64]bool, len(pairs)*2)
	for _, p := range pairs {
		played[p[0]] = true
		played[p[1]] = true
	}
	for i := range next.Participants {
		p := &next.Participants[i]
		if played[p.ID] {
			p.RoundCount++
		}
		if row, ok := led[p.ID]; ok {
			p.LedCounts = row
		}
	}
	next.Rotation = out.Rotation
	next.RoundCounter++

	return next, domain.RoundResult{
		RoundNumber:      next.RoundCounter,
		Pairs:            pairs,
		SittingOut:       out.SittingOut,
		SupervisorPaired: out.SupervisorPaired,
	}, nil
}

func cloneGroup(g domain.Group) domain.Group {
	out := g
	out.Participants = make([]domain.Participant, len(g.Participants))
	for i, p := range g.Participants {
		cp := p
		if p.LedCounts != nil {
			cp.LedCounts = make(map[int64]int, len(p.LedCounts))
			for k, v := range p.LedCounts {
				cp.LedCounts[k] = v
			}
		}
		out.Participants[i] = cp
	}
	if g.Rotation != nil {
		out.Rotation = append([]int64(nil), g.Rotation...)
	}
	if g.EndedAt != nil {
		ended := *g.EndedAt
		out.EndedAt = &ended
	}
	return out
}

// StateOf renders the persisted-state record of a group.
func StateOf(g domain.Group, history []domain.RoundResult) domain.GroupState {
	st := domain.GroupState{
		Token:        g.Token,
		Participants: make([]domain.ParticipantState, 0, len(g.Participants)),
		RoundCounter: g.RoundCounter,
		History:      history,
	}
	if g.Rotation != nil {
		st.Rotation = append([]int64{}, g.Rotation...)
	}
	if st.History == nil {
		st.History = []domain.RoundResult{}
	}
	for _, p := range g.Participants {
		led := make(map[int64]int, len(p.LedCounts))
		for k, v := range p.LedCounts {
			led[k] = v
		}
		st.Participants = append(st.Participants, domain.ParticipantState{
			ID:         p.ID,
			JoinOrder:  p.JoinOrder,
			RoundCount: p.RoundCount,
			LedCounts:  led,
		})
	}
	return st
}
