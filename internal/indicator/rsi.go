package indicator

// RSI computes the Relative Strength Index using Wilder's smoothing. The
// first period positions are holes; afterwards values lie in [0,100]. Zero
// average loss pins the value at 100.
func RSI(closes []float64, period int) []float64 {
	out := nans(len(closes))
	if period < 1 || len(closes) < period+1 {
		return out
	}
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		if i <= period {
			// Accumulation phase: build the SMA seed.
			avgGain += gain
			avgLoss += loss
			if i == period {
				avgGain /= float64(period)
				avgLoss /= float64(period)
				out[i] = rsiValue(avgGain, avgLoss)
			}
			continue
		}
		p := float64(period)
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
