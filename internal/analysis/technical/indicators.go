package technical

import "github.com/Joe-Swanson828/prediction-bot/internal/market"

// SMA returns the simple moving average of the last period closes, or of
// every close when fewer are available.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	window := prices
	if len(prices) >= period {
		window = prices[len(prices)-period:]
	}
	var sum float64
	for _, p := range window {
		sum += p
	}
	return sum / float64(len(window))
}

// EMA computes an exponential moving average seeded with the first price,
// using the standard smoothing factor k = 2/(period+1).
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) == 1 {
		return prices[0]
	}
	k := 2.0 / float64(period+1)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = p*k + ema*(1.0-k)
	}
	return ema
}

// VWAP is the volume-weighted average of typical prices (h+l+c)/3. With no
// volume at all it degrades to the simple average of closes.
func VWAP(candles []market.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var totalVolume float64
	for _, c := range candles {
		totalVolume += c.Volume
	}
	if totalVolume <= 0 {
		var sum float64
		for _, c := range candles {
			sum += c.Close
		}
		return sum / float64(len(candles))
	}
	var numerator float64
	for _, c := range candles {
		numerator += (c.High + c.Low + c.Close) / 3.0 * c.Volume
	}
	return numerator / totalVolume
}

// VolumeSpikeRatio compares the latest candle's volume against the average
// of the preceding lookback window. 1.0 when there is not enough history
// or no baseline volume.
func VolumeSpikeRatio(candles []market.Candle, lookback int) float64 {
	if len(candles) < 2 {
		return 1.0
	}
	latest := candles[len(candles)-1].Volume
	start := len(candles) - lookback - 1
	if start < 0 {
		start = 0
	}
	baseline := candles[start : len(candles)-1]
	if len(baseline) == 0 {
		return 1.0
	}
	var sum float64
	for _, c := range baseline {
		sum += c.Volume
	}
	avg := sum / float64(len(baseline))
	if avg <= 0 {
		return 1.0
	}
	return latest / avg
}

// OrderbookImbalance scores YES vs NO bid pressure in [-1, 1]. Zero when
// the book is empty.
func OrderbookImbalance(yesBidVolume, noBidVolume float64) float64 {
	total := yesBidVolume + noBidVolume
	if total <= 0 {
		return 0
	}
	return (yesBidVolume - noBidVolume) / total
}
