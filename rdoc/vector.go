package rdoc

import "fmt"

// Version orders writes to one entry: higher counter wins, ties resolve
// toward the higher actor.
type Version struct {
	Actor   ActorID
	Counter uint64
}

func (v Version) Newer(w Version) bool {
	if v.Counter != w.Counter {
		return v.Counter > w.Counter
	}
	return v.Actor > w.Actor
}

func (v Version) String() string {
	return fmt.Sprintf("%d@%x", v.Counter, uint64(v.Actor))
}

// StateVector records the highest counter observed per actor. The nil vector
// observes nothing.
type StateVector map[ActorID]uint64

func (sv StateVector) Clone() StateVector {
	c := make(StateVector, len(sv))
	for a, n := range sv {
		c[a] = n
	}
	return c
}

// Includes reports whether v is already covered: the actor has been
// observed at or past v's counter.
func (sv StateVector) Includes(v Version) bool {
	return sv[v.Actor] >= v.Counter
}

func (sv StateVector) Observe(v Version) {
	if sv[v.Actor] < v.Counter {
		sv[v.Actor] = v.Counter
	}
}

// Covers reports whether sv includes everything other does.
func (sv StateVector) Covers(other StateVector) bool {
	for a, n := range other {
		if sv[a] < n {
			return false
		}
	}
	return true
}

func (sv StateVector) Encode() []byte {
	return encodeMsgpack(mapOfUint(sv))
}

func DecodeStateVector(data []byte) (StateVector, error) {
	if len(data) == 0 {
		return make(StateVector), nil
	}
	var m map[uint64]uint64
	if err := decodeMsgpack(data, &m); err != nil {
		return nil, fmt.Errorf("rdoc: bad state vector: %w", err)
	}
	sv := make(StateVector, len(m))
	for a, n := range m {
		sv[ActorID(a)] = n
	}
	return sv, nil
}

func mapOfUint(sv StateVector) map[uint64]uint64 {
	m := make(map[uint64]uint64, len(sv))
	for a, n := range sv {
		m[uint64(a)] = n
	}
	return m
}
