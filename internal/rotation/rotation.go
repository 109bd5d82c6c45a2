// Package rotation derives each round's raw pairs with a modified circle
// method.
//
// The working list is paired position i with position n-1-i. Between rounds
// with an unchanged membership the first element stays fixed as the anchor
// and the rest of the ring turns by one step: [r0, r(n-1), r1, ..., r(n-2)].
// Any change of membership discards the previous rotation and re-seeds it by
// join order.
package rotation

import (
	"errors"
	"fmt"
	"sort"

	"pairwise/internal/domain"
)

// Supervisor is the sentinel id placed in the working list when the
// supervisor fills an odd seat.
const Supervisor = domain.SupervisorID

var (
	ErrNotEnoughParticipants = errors.New("not enough participants")
	ErrInvalidRoster         = errors.New("invalid roster")
)

// Member is the part of a participant the rotation needs.
type Member struct {
	ID         int64
	JoinOrder  int64
	RoundCount int
}

type Input struct {
	Roster                 []Member
	SupervisorParticipates bool
	// Prior is the rotation used by the previous round, nil when there was none.
	Prior []int64
}

type Output struct {
	Pairs            [][2]int64
	Rotation         []int64
	SittingOut       *int64
	SupervisorPaired bool
	// Reseeded is true when Prior was absent or described another membership.
	Reseeded bool
}

// Compute builds the next round from the roster and the previous rotation.
func Compute(in Input) (Output, error) {
	if len(in.Roster) < 2 {
		return Output{}, fmt.Errorf("%w: have %d, need 2", ErrNotEnoughParticipants, len(in.Roster))
	}
	seen := make(map[int64]struct{}, len(in.Roster))
	for _, m := range in.Roster {
		if m.ID == Supervisor {
			return Output{}, fmt.Errorf("%w: id %d is reserved", ErrInvalidRoster, Supervisor)
		}
		if _, dup := seen[m.ID]; dup {
			return Output{}, fmt.Errorf("%w: duplicate id %d", ErrInvalidRoster, m.ID)
		}
		seen[m.ID] = struct{}{}
	}

	var out Output
	working := make([]Member, len(in.Roster))
	copy(working, in.Roster)
	if len(working)%2 != 0 {
		if in.SupervisorParticipates {
			working = append(working, Member{ID: Supervisor})
			out.SupervisorPaired = true
		} else {
			idx := sitOut(working)
			id := working[idx].ID
			out.SittingOut = &id
			working = append(working[:idx], working[idx+1:]...)
		}
	}
	if len(working) < 2 {
		return Output{}, fmt.Errorf("%w: have %d after odd handling", ErrNotEnoughParticipants, len(working))
	}

	ids := make([]int64, len(working))
	for i, m := range working {
		ids[i] = m.ID
	}
	if len(in.Prior) == 0 || !SameMembers(in.Prior, ids) {
		out.Rotation = Seed(working)
		out.Reseeded = true
	} else {
		out.Rotation = Rotate(in.Prior)
	}
	out.Pairs = Pair(out.Rotation)
	return out, nil
}

// sitOut picks the member with the most rounds played; ties go to the most
// senior (lowest join order).
func sitOut(ms []Member) int {
	best := 0
	for i := 1; i < len(ms); i++ {
		m, b := ms[i], ms[best]
		if m.RoundCount > b.RoundCount || (m.RoundCount == b.RoundCount && m.JoinOrder < b.JoinOrder) {
			best = i
		}
	}
	return best
}

// Seed orders members by join order with the supervisor sentinel first.
func Seed(ms []Member) []int64 {
	sorted := make([]Member, len(ms))
	copy(sorted, ms)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if (a.ID == Supervisor) != (b.ID == Supervisor) {
			return a.ID == Supervisor
		}
		if a.JoinOrder != b.JoinOrder {
			return a.JoinOrder < b.JoinOrder
		}
		return a.ID < b.ID
	})
	ids := make([]int64, len(sorted))
	for i, m := range sorted {
		ids[i] = m.ID
	}
	return ids
}

// Rotate keeps prior[0] in place, moves the last element to second position
// and shifts the middle block right by one.
func Rotate(prior []int64) []int64 {
	n := len(prior)
	if n < 3 {
		out := make([]int64, n)
		copy(out, prior)
		return out
	}
	out := make([]int64, 0, n)
	out = append(out, prior[0], prior[n-1])
	out = append(out, prior[1:n-1]...)
	return out
}

// Pair matches position i with position n-1-i.
func Pair(rot []int64) [][2]int64 {
	n := len(rot)
	pairs := make([][2]int64, 0, n/2)
	for i := 0; i < n/2; i++ {
		pairs = append(pairs, [2]int64{rot[i], rot[n-1-i]})
	}
	return pairs
}

// SameMembers reports whether a and b hold the same ids, ignoring order.
func SameMembers(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[int64]int, len(a))
	for _, id := range a {
		counts[id]++
	}
	for _, id := range b {
		if counts[id] == 0 {
			return false
		}
		counts[id]--
	}
	return true
}
