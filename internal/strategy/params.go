package strategy

import (
	"fmt"
	"math"

	"quantdesk/internal/model"
)

// paramDef declares one tunable parameter. Integer parameters must be whole
// numbers ≥ 1; float parameters only need to be finite.
type paramDef struct {
	name    string
	def     float64
	integer bool
}

func intParam(name string, def int) paramDef {
	return paramDef{name: name, def: float64(def), integer: true}
}

func floatParam(name string, def float64) paramDef {
	return paramDef{name: name, def: def}
}

// ResolveParams merges user overrides onto the strategy defaults and
// validates the result. Unknown keys, non-finite values and malformed
// integers are InvalidParams.
func (s *Strategy) ResolveParams(user map[string]float64) (Params, error) {
	merged := make(Params, len(s.params))
	for _, d := range s.params {
		merged[d.name] = d.def
	}
	for name, v := range user {
		if _, ok := merged[name]; !ok {
			return nil, model.ErrInvalidParams("unknown parameter %q for strategy %q", name, s.Key)
		}
		merged[name] = v
	}
	for _, d := range s.params {
		v := merged[d.name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, model.ErrInvalidParams("parameter %q must be finite", d.name)
		}
		if d.integer {
			if v != math.Trunc(v) {
				return nil, model.ErrInvalidParams("parameter %q must be an integer, got %v", d.name, v)
			}
			if v < 1 {
				return nil, model.ErrInvalidParams("parameter %q must be >= 1, got %v", d.name, v)
			}
		}
	}
	if s.check != nil {
		if err := s.check(merged); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// fastSlow enforces slow > fast for crossover parameter pairs.
func fastSlow(fastName, slowName string) func(Params) error {
	return func(p Params) error {
		if p[slowName] <= p[fastName] {
			return model.ErrInvalidParams("%s (%v) must be greater than %s (%v)",
				slowName, p[slowName], fastName, p[fastName])
		}
		return nil
	}
}

// CoerceParams converts a decoded JSON parameter object into a numeric map.
// Non-numeric values are InvalidParams.
func CoerceParams(raw map[string]any) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case int:
			out[k] = float64(n)
		default:
			return nil, model.ErrInvalidParams("parameter %q must be numeric, got %v", k, fmt.Sprintf("%T", v))
		}
	}
	return out, nil
}
