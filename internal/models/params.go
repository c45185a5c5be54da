package models

// Params carries per-model numeric parameters by name. Missing entries
// fall back to the model's defaults.
type Params map[string]float64

func (p Params) value(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

const defaultGravity = 9.81

// loop-closure tolerance shared by all built mechanisms
const constructionTol = 1e-9
