package strategy

import "quantdesk/internal/model"

// Registry is the process-wide strategy catalog. Built once, never mutated.
type Registry struct {
	order []string
	byKey map[string]*Strategy
}

// NewRegistry builds the full catalog.
func NewRegistry() *Registry {
	r := &Registry{byKey: map[string]*Strategy{}}
	for _, s := range []*Strategy{
		maCrossover(),
		emaStrategy(),
		macdSignal(),
		superTrend(),
		donchianBreakout(),
		rsiStrategy(),
		stochastic(),
		rocStrategy(),
		cciStrategy(),
		bollingerReversion(),
		zscoreReversion(),
		vwapReversion(),
		atrBreakout(),
		keltnerChannel(),
		volumeSpike(),
		orderImbalance(),
		kalmanFilter(),
		hmmRegime(),
		lstmProxy(),
		gbmProxy(),
	} {
		r.order = append(r.order, s.Key)
		r.byKey[s.Key] = s
	}
	return r
}

// Get resolves a strategy by key.
func (r *Registry) Get(key string) (*Strategy, error) {
	s, ok := r.byKey[key]
	if !ok {
		return nil, model.ErrUnknownStrategy(key)
	}
	return s, nil
}

// List returns catalog descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.byKey[key].Descriptor)
	}
	return out
}

// Len reports the catalog size.
func (r *Registry) Len() int { return len(r.order) }
