// Package ta provides pure technical indicator functions over daily bars.
package ta

import (
	"math"

	"optionscan/internal/domain/models"
)

// TradingDaysPerYear is the bar count backing 52-week lookbacks.
const TradingDaysPerYear = 252

// Extremes52W returns the max and min closing price over the trailing 252
// bars, or over all available history when the series is shorter.
func Extremes52W(bars []models.Bar) (high, low float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	start := 0
	if len(bars) > TradingDaysPerYear {
		start = len(bars) - TradingDaysPerYear
	}
	high = bars[start].Close
	low = bars[start].Close
	for _, b := range bars[start:] {
		if b.Close > high {
			high = b.Close
		}
		if b.Close < low {
			low = b.Close
		}
	}
	return high, low
}

// RSI computes the Relative Strength Index over the last `period` deltas.
// Returns 50 (neutral) when there is not enough history.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}
	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// SMA computes the simple moving average of the last `period` values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA computes the exponential moving average over all values.
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) == 0 {
		return 0
	}
	k := 2.0 / float64(period+1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// MACD returns the MACD line and its signal line using 12/26/9 defaults
// when zero periods are passed.
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine float64) {
	if fast <= 0 {
		fast = 12
	}
	if slow <= 0 {
		slow = 26
	}
	if signal <= 0 {
		signal = 9
	}
	if len(closes) < slow+signal {
		return 0, 0
	}
	series := make([]float64, 0, signal)
	for i := signal; i > 0; i-- {
		end := len(closes) - i + 1
		series = append(series, EMA(closes[:end], fast)-EMA(closes[:end], slow))
	}
	return series[len(series)-1], EMA(series, signal)
}

// ATR computes the average true range over the last `period` bars.
func ATR(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	var sum float64
	for i := len(bars) - period; i < len(bars); i++ {
		tr := bars[i].High - bars[i].Low
		if hc := math.Abs(bars[i].High - bars[i-1].Close); hc > tr {
			tr = hc
		}
		if lc := math.Abs(bars[i].Low - bars[i-1].Close); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period)
}

// ADX computes the Average Directional Index over `period` bars using
// Wilder smoothing. Low values indicate a sideways, mean-reverting regime.
// Returns 0 when there is not enough history.
func ADX(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < 2*period+1 {
		return 0
	}

	n := len(bars)
	var smTR, smPlusDM, smMinusDM float64
	dxs := make([]float64, 0, n)

	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low

		var plusDM, minusDM float64
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}

		tr := bars[i].High - bars[i].Low
		if hc := math.Abs(bars[i].High - bars[i-1].Close); hc > tr {
			tr = hc
		}
		if lc := math.Abs(bars[i].Low - bars[i-1].Close); lc > tr {
			tr = lc
		}

		if i <= period {
			smTR += tr
			smPlusDM += plusDM
			smMinusDM += minusDM
			if i < period {
				continue
			}
		} else {
			smTR = smTR - smTR/float64(period) + tr
			smPlusDM = smPlusDM - smPlusDM/float64(period) + plusDM
			smMinusDM = smMinusDM - smMinusDM/float64(period) + minusDM
		}

		if smTR == 0 {
			dxs = append(dxs, 0)
			continue
		}
		plusDI := 100 * smPlusDM / smTR
		minusDI := 100 * smMinusDM / smTR
		if plusDI+minusDI == 0 {
			dxs = append(dxs, 0)
			continue
		}
		dxs = append(dxs, 100*math.Abs(plusDI-minusDI)/(plusDI+minusDI))
	}

	if len(dxs) < period {
		return 0
	}
	adx := SMA(dxs[:period], period)
	for _, dx := range dxs[period:] {
		adx = (adx*float64(period-1) + dx) / float64(period)
	}
	return adx
}

// RealizedVol computes the annualized log-return standard deviation as a
// percentage (e.g. 32.5 for 32.5%). Returns 0 with fewer than 3 closes.
func RealizedVol(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		rets = append(rets, math.Log(closes[i]/closes[i-1]))
	}
	if len(rets) < 2 {
		return 0
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var variance float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets) - 1)
	return math.Sqrt(variance) * math.Sqrt(TradingDaysPerYear) * 100
}

// RangePosition returns where price sits inside [low, high] as 0..1,
// clamped; 0.5 when the range is degenerate.
func RangePosition(price, low, high float64) float64 {
	if high <= low {
		return 0.5
	}
	p := (price - low) / (high - low)
	return Clamp(p, 0, 1)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
