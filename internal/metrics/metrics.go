// Package metrics exposes round and dispensing counters.
package metrics

// Collector receives engine observations.
type Collector interface {
	RoundCompleted(pairs int, supervisorPaired, sittingOut bool, seconds float64)
	RoundRejected(reason string)
	TokenDispensed(collision bool)
	ContentDispensed(source string)
	GroupsChanged(delta int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RoundCompleted(int, bool, bool, float64) {}
func (Nop) RoundRejected(string)                    {}
func (Nop) TokenDispensed(bool)                     {}
func (Nop) ContentDispensed(string)                 {}
func (Nop) GroupsChanged(int)                       {}
