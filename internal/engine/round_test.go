package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairwise/internal/domain"
	"pairwise/internal/engine"
	"pairwise/internal/rotation"
)

func groupOf(ids ...int64) domain.Group {
	g := domain.Group{Token: "APPLE"}
	for i, id := range ids {
		g.Participants = append(g.Participants, domain.Participant{ID: id, GroupToken: "APPLE", JoinOrder: int64(i + 1)})
	}
	return g
}

func TestPlanRoundFourParticipants(t *testing.T) {
	g := groupOf(1, 2, 3, 4)

	g, r1, err := engine.PlanRound(g)
	require.NoError(t, err)
	assert.Equal(t, 1, r1.RoundNumber)
	assert.Equal(t, [][2]int64{{1, 4}, {2, 3}}, r1.Pairs)
	assert.Nil(t, r1.SittingOut)
	assert.False(t, r1.SupervisorPaired)

	g, r2, err := engine.PlanRound(g)
	require.NoError(t, err)
	assert.Equal(t, 2, r2.RoundNumber)
	assert.Equal(t, [][2]int64{{1, 3}, {4, 2}}, r2.Pairs)

	g, r3, err := engine.PlanRound(g)
	require.NoError(t, err)
	assert.Equal(t, [][2]int64{{1, 2}, {3, 4}}, r3.Pairs)
	assert.Equal(t, 3, g.RoundCounter)
	for _, p := range g.Participants {
		assert.Equal(t, 3, p.RoundCount, "participant %d", p.ID)
	}
}

func TestPlanRoundEveryoneMeetsOnce(t *testing.T) {
	g := groupOf(1, 2, 3, 4, 5, 6)
	seen := map[[2]int64]int{}
	for round := 0; round < 5; round++ {
		var r domain.RoundResult
		var err error
		g, r, err = engine.PlanRound(g)
		require.NoError(t, err)
		for _, p := range r.Pairs {
			a, b := p[0], p[1]
			if a > b {
				a, b = b, a
			}
			seen[[2]int64{a, b}]++
		}
	}
	assert.Len(t, seen, 15)
	for pair, n := range seen {
		assert.Equal(t, 1, n, "pair %v", pair)
	}
}

func TestPlanRoundLeadershipAlternates(t *testing.T) {
	g := groupOf(1, 2)
	var leaders []int64
	for i := 0; i < 4; i++ {
		var r domain.RoundResult
		var err error
		g, r, err = engine.PlanRound(g)
		require.NoError(t, err)
		leaders = append(leaders, r.Pairs[0][0])
	}
	assert.Equal(t, []int64{1, 2, 1, 2}, leaders)
	p1, _ := g.Participant(1)
	p2, _ := g.Participant(2)
	assert.Equal(t, 2, p1.LedCounts[2])
	assert.Equal(t, 2, p2.LedCounts[1])
}

func TestPlanRoundOddWithSupervisor(t *testing.T) {
	g := groupOf(1, 2, 3)
	g.SupervisorParticipates = true
	g, r, err := engine.PlanRound(g)
	require.NoError(t, err)
	assert.True(t, r.SupervisorPaired)
	assert.Nil(t, r.SittingOut)
	require.Len(t, r.Pairs, 2)
	assert.Equal(t, [2]int64{3, domain.SupervisorID}, r.Pairs[0])
	assert.Equal(t, [2]int64{1, 2}, r.Pairs[1])
	for _, p := range g.Participants {
		assert.Empty(t, p.LedCounts[domain.SupervisorID])
	}
}

func TestPlanRoundOddSitOutRotates(t *testing.T) {
	g := groupOf(1, 2, 3)
	sat := map[int64]int{}
	for i := 0; i < 3; i++ {
		var r domain.RoundResult
		var err error
		g, r, err = engine.PlanRound(g)
		require.NoError(t, err)
		require.NotNil(t, r.SittingOut)
		require.Len(t, r.Pairs, 1)
		sat[*r.SittingOut]++
	}
	assert.Equal(t, map[int64]int{1: 1, 2: 1, 3: 1}, sat)
	for _, p := range g.Participants {
		assert.Equal(t, 2, p.RoundCount)
	}
}

func TestPlanRoundLeavesInputUntouchedOnError(t *testing.T) {
	g := groupOf(1)
	g.Rotation = []int64{1, 9}
	next, _, err := engine.PlanRound(g)
	require.ErrorIs(t, err, rotation.ErrNotEnoughParticipants)
	assert.Equal(t, g, next)
	assert.Equal(t, 0, g.Participants[0].RoundCount)
}

func TestPlanRoundDoesNotMutateInput(t *testing.T) {
	g := groupOf(1, 2)
	g.Participants[0].LedCounts = map[int64]int{2: 1}
	next, _, err := engine.PlanRound(g)
	require.NoError(t, err)
	assert.Equal(t, 0, g.RoundCounter)
	assert.Nil(t, g.Rotation)
	assert.Equal(t, map[int64]int{2: 1}, g.Participants[0].LedCounts)
	assert.Equal(t, 1, next.RoundCounter)
}

func TestPlanRoundReseedsAfterJoin(t *testing.T) {
	g := groupOf(1, 2, 3, 4)
	g, _, err := engine.PlanRound(g)
	require.NoError(t, err)
	g, _, err = engine.PlanRound(g)
	require.NoError(t, err)
	g.Participants = append(g.Participants,
		domain.Participant{ID: 5, JoinOrder: 5},
		domain.Participant{ID: 6, JoinOrder: 6})
	g, r, err := engine.PlanRound(g)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, g.Rotation)
	assert.Len(t, r.Pairs, 3)
}

func TestStateOf(t *testing.T) {
	g := groupOf(1, 2)
	g, r, err := engine.PlanRound(g)
	require.NoError(t, err)
	st := engine.StateOf(g, []domain.RoundResult{r})
	assert.Equal(t, "APPLE", st.Token)
	assert.Equal(t, 1, st.RoundCounter)
	assert.Equal(t, []int64{1, 2}, st.Rotation)
	require.Len(t, st.Participants, 2)
	assert.Equal(t, map[int64]int{2: 1}, st.Participants[0].LedCounts)
	assert.Equal(t, map[int64]int{}, st.Participants[1].LedCounts)
}
