// Package roles decides who leads each pair.
package roles

import "pairwise/internal/domain"

// LedCounts records, per leader, how many times they led each partner.
type LedCounts map[int64]map[int64]int

// Get returns how many times a led b.
func (l LedCounts) Get(a, b int64) int {
	return l[a][b]
}

// Inc adds one to the times a led b.
func (l LedCounts) Inc(a, b int64) {
	row, ok := l[a]
	if !ok {
		row = make(map[int64]int)
		l[a] = row
	}
	row[b]++
}

// Drop removes every count involving id.
func (l LedCounts) Drop(id int64) {
	delete(l, id)
	for _, row := range l {
		delete(row, id)
	}
}

func (l LedCounts) Clone() LedCounts {
	out := make(LedCounts, len(l))
	for a, row := range l {
		cp := make(map[int64]int, len(row))
		for b, n := range row {
			cp[b] = n
		}
		out[a] = cp
	}
	return out
}

// Assign orients each raw pair as [leader, follower]. The supervisor always
// follows. Otherwise whoever has led the other less often leads; on a tie the
// first element of the raw pair leads.
func Assign(pairs [][2]int64, led LedCounts) [][2]int64 {
	out := make([][2]int64, len(pairs))
	for i, p := range pairs {
		a, b := p[0], p[1]
		switch {
		case a == domain.SupervisorID:
			out[i] = [2]int64{b, a}
		case b == domain.SupervisorID:
			out[i] = [2]int64{a, b}
		case led.Get(b, a) < led.Get(a, b):
			out[i] = [2]int64{b, a}
		default:
			out[i] = [2]int64{a, b}
		}
	}
	return out
}

// Record counts each final pair's leadership. Pairs with the supervisor are
// skipped; the sentinel carries no history.
func Record(pairs [][2]int64, led LedCounts) {
	for _, p := range pairs {
		if p[0] == domain.SupervisorID || p[1] == domain.SupervisorID {
			continue
		}
		led.Inc(p[0], p[1])
	}
}
