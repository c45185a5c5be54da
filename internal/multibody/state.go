package multibody

// Variables is the caller-owned half of a State: generalized coordinates,
// generalized speeds, and prescribed joint forces.
type Variables struct {
	Q           []float64
	U           []float64
	JointForces []float64
}

// Cache is the computed half of a State: realized stage results kept for
// the caller between pipeline calls.
type Cache struct {
	Pos []float64
	Vel []float64
	Acc []float64
}

// State bundles the variables a caller chooses with the results computed
// from them. Both parts are optional and owned exclusively by the State;
// Clone deep-copies whichever parts are present. A State is sized for the
// tree that allocates its parts and is not transferable between trees.
type State struct {
	vars  *Variables
	cache *Cache
}

// Variables returns the variable part, allocating it sized for t on first use.
func (s *State) Variables(t *Tree) *Variables {
	if s.vars == nil {
		s.vars = &Variables{
			Q:           make([]float64, t.MaxNQTotal()),
			U:           make([]float64, t.DOFTotal()),
			JointForces: make([]float64, t.DOFTotal()),
		}
	}
	return s.vars
}

// Cache returns the results part, allocating it sized for t on first use.
func (s *State) Cache(t *Tree) *Cache {
	if s.cache == nil {
		s.cache = &Cache{
			Pos: make([]float64, t.MaxNQTotal()),
			Vel: make([]float64, t.DOFTotal()),
			Acc: make([]float64, t.DOFTotal()),
		}
	}
	return s.cache
}

func (s *State) HasVariables() bool { return s.vars != nil }
func (s *State) HasCache() bool     { return s.cache != nil }

// Clone returns a State sharing nothing with the receiver.
func (s State) Clone() State {
	var out State
	if s.vars != nil {
		out.vars = &Variables{
			Q:           cloneFloats(s.vars.Q),
			U:           cloneFloats(s.vars.U),
			JointForces: cloneFloats(s.vars.JointForces),
		}
	}
	if s.cache != nil {
		out.cache = &Cache{
			Pos: cloneFloats(s.cache.Pos),
			Vel: cloneFloats(s.cache.Vel),
			Acc: cloneFloats(s.cache.Acc),
		}
	}
	return out
}

func cloneFloats(src []float64) []float64 {
	if src == nil {
		return nil
	}
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}
