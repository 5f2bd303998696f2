package gasmon

import "sync"

// State is the latest output of the sampling and battery loops. It is created
// once per boot and handed to every task that needs it.
type State struct {
	mu       sync.RWMutex
	readings [len(AllSpecies)]GasReading
	seen     [len(AllSpecies)]bool
	battery  int
}

func NewState() *State {
	s := &State{}
	for i, sp := range AllSpecies {
		s.readings[i].Species = sp
	}
	return s
}

func (s *State) SetReading(r GasReading) {
	s.mu.Lock()
	s.readings[r.Species] = r
	s.seen[r.Species] = true
	s.mu.Unlock()
}

// Reading returns the latest reading of a species and whether one was ever recorded.
func (s *State) Reading(sp Species) (GasReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readings[sp], s.seen[sp]
}

func (s *State) Readings() []GasReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GasReading, len(s.readings))
	copy(out, s.readings[:])
	return out
}

func (s *State) SetBattery(percent int) {
	s.mu.Lock()
	s.battery = clamp(percent, 0, 100)
	s.mu.Unlock()
}

func (s *State) Battery() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.battery
}
