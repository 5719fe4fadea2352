package indicator

// KalmanResult holds the filter output channels.
type KalmanResult struct {
	Filtered []float64
	Velocity []float64
	Gain     []float64
}

// Kalman runs a scalar Kalman filter over the series. processNoise is the
// state variance added per step; the measurement variance is estimated from
// the rolling sample variance of the series over lookback bars, falling back
// to measurementNoise while the window is still filling. Velocity is the
// per-step change of the filtered estimate.
func Kalman(values []float64, processNoise, measurementNoise float64, lookback int) KalmanResult {
	n := len(values)
	res := KalmanResult{Filtered: nans(n), Velocity: nans(n), Gain: nans(n)}
	if n == 0 {
		return res
	}
	std := StdDev(values, lookback)
	x := values[0]
	p := 1.0
	for i, z := range values {
		r := measurementNoise
		if !IsHole(std[i]) && std[i] > 0 {
			r = std[i] * std[i]
		}
		pPred := p + processNoise
		k := pPred / (pPred + r)
		prev := x
		x += k * (z - x)
		p = (1 - k) * pPred
		res.Filtered[i] = x
		res.Velocity[i] = x - prev
		res.Gain[i] = k
	}
	return res
}
