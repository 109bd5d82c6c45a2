package roles_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pairwise/internal/domain"
	"pairwise/internal/roles"
)

const (
	alice int64 = 1
	bob   int64 = 2
)

func TestAssignPrefersLessFrequentLeader(t *testing.T) {
	led := roles.LedCounts{alice: {bob: 2}}
	got := roles.Assign([][2]int64{{alice, bob}}, led)
	assert.Equal(t, [][2]int64{{bob, alice}}, got)
}

func TestAssignTieKeepsRawOrder(t *testing.T) {
	led := roles.LedCounts{alice: {bob: 1}, bob: {alice: 1}}
	assert.Equal(t, [][2]int64{{alice, bob}}, roles.Assign([][2]int64{{alice, bob}}, led))
	assert.Equal(t, [][2]int64{{bob, alice}}, roles.Assign([][2]int64{{bob, alice}}, roles.LedCounts{}))
}

func TestAssignSupervisorAlwaysFollows(t *testing.T) {
	led := roles.LedCounts{}
	got := roles.Assign([][2]int64{{domain.SupervisorID, 5}, {6, domain.SupervisorID}}, led)
	assert.Equal(t, [][2]int64{{5, domain.SupervisorID}, {6, domain.SupervisorID}}, got)
}

func TestLeadershipAlternatesOverRounds(t *testing.T) {
	led := roles.LedCounts{}
	var leaders []int64
	for i := 0; i < 4; i++ {
		final := roles.Assign([][2]int64{{alice, bob}}, led)
		roles.Record(final, led)
		leaders = append(leaders, final[0][0])
	}
	assert.Equal(t, []int64{alice, bob, alice, bob}, leaders)
	assert.Equal(t, 2, led.Get(alice, bob))
	assert.Equal(t, 2, led.Get(bob, alice))
}

func TestRecordSkipsSupervisor(t *testing.T) {
	led := roles.LedCounts{}
	roles.Record([][2]int64{{5, domain.SupervisorID}}, led)
	assert.Empty(t, led)
}

func TestDropAndClone(t *testing.T) {
	led := roles.LedCounts{alice: {bob: 3, 3: 1}, bob: {alice: 2}}
	cp := led.Clone()
	led.Drop(bob)
	assert.Equal(t, roles.LedCounts{alice: {3: 1}}, led)
	assert.Equal(t, 3, cp.Get(alice, bob))
	assert.Equal(t, 2, cp.Get(bob, alice))
}
