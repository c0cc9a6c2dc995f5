package ta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"optionscan/internal/domain/models"
)

func bar(i int, o, h, l, c float64) models.Bar {
	return models.Bar{
		Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		Open: o, High: h, Low: l, Close: c, Volume: 1e6,
	}
}

func trendingBars(n int, step float64) []models.Bar {
	bars := make([]models.Bar, 0, n)
	p := 100.0
	for i := 0; i < n; i++ {
		p += step
		bars = append(bars, bar(i, p-step/2, p+1, p-1, p))
	}
	return bars
}

func choppyBars(n int) []models.Bar {
	bars := make([]models.Bar, 0, n)
	for i := 0; i < n; i++ {
		c := 100.0
		if i%2 == 0 {
			c += 1
		} else {
			c -= 1
		}
		bars = append(bars, bar(i, 100, c+0.5, c-0.5, c))
	}
	return bars
}

func TestExtremes52W(t *testing.T) {
	bars := []models.Bar{
		bar(0, 0, 99, 94, 95),
		bar(1, 0, 103, 97, 102),
		bar(2, 0, 101, 89, 90),
		bar(3, 0, 100, 96, 98),
	}
	high, low := Extremes52W(bars)
	// Extremes are over closes, not intraday highs/lows.
	assert.Equal(t, 102.0, high)
	assert.Equal(t, 90.0, low)

	high, low = Extremes52W(nil)
	assert.Equal(t, 0.0, high)
	assert.Equal(t, 0.0, low)
}

func TestExtremesWindowIsBounded(t *testing.T) {
	// An old spike outside the 252-bar window must not count.
	bars := make([]models.Bar, 0, 260)
	bars = append(bars, bar(0, 0, 0, 0, 500))
	for i := 1; i < 260; i++ {
		bars = append(bars, bar(i, 0, 0, 0, 100))
	}
	high, _ := Extremes52W(bars)
	assert.Equal(t, 100.0, high)
}

func TestRSIBounds(t *testing.T) {
	up := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	assert.Equal(t, 100.0, RSI(up, 14)) // no losses

	down := make([]float64, 20)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	assert.Less(t, RSI(down, 14), 1.0)

	assert.Equal(t, 50.0, RSI([]float64{1, 2}, 14)) // not enough history
}

func TestSMAAndEMA(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 4.0, SMA(vals, 3))
	assert.Equal(t, 0.0, SMA(vals, 10))

	// EMA of a constant series is the constant.
	assert.InDelta(t, 7.0, EMA([]float64{7, 7, 7, 7}, 3), 0.0001)
}

func TestMACDFlatSeriesIsZero(t *testing.T) {
	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = 100
	}
	macd, signal := MACD(flat, 0, 0, 0)
	assert.InDelta(t, 0.0, macd, 0.0001)
	assert.InDelta(t, 0.0, signal, 0.0001)
}

func TestATR(t *testing.T) {
	bars := []models.Bar{
		bar(0, 0, 102, 98, 100),
		bar(1, 0, 103, 99, 101),
		bar(2, 0, 104, 100, 102),
	}
	assert.InDelta(t, 4.0, ATR(bars, 2), 0.0001)
	assert.Equal(t, 0.0, ATR(bars, 5))
}

func TestADXDistinguishesTrendFromChop(t *testing.T) {
	trending := ADX(trendingBars(60, 1.0), 14)
	choppy := ADX(choppyBars(60), 14)

	assert.Greater(t, trending, 50.0)
	assert.Less(t, choppy, 30.0)
	assert.Greater(t, trending, choppy)

	// Too little history.
	assert.Equal(t, 0.0, ADX(trendingBars(10, 1.0), 14))
}

func TestRealizedVol(t *testing.T) {
	// Alternating +1%/-1% daily moves have annualized vol near 16%.
	closes := make([]float64, 100)
	p := 100.0
	for i := range closes {
		if i%2 == 0 {
			p *= 1.01
		} else {
			p *= 0.99
		}
		closes[i] = p
	}
	v := RealizedVol(closes)
	assert.InDelta(t, 16.0, v, 2.0)

	assert.Equal(t, 0.0, RealizedVol([]float64{100, 101}))
}

func TestRangePositionAndClamp(t *testing.T) {
	assert.Equal(t, 0.5, RangePosition(100, 100, 100))
	assert.InDelta(t, 0.75, RangePosition(95, 80, 100), 0.0001)
	assert.Equal(t, 1.0, RangePosition(120, 80, 100))

	assert.Equal(t, 5.0, Clamp(7, 0, 5))
	assert.Equal(t, 0.0, Clamp(-1, 0, 5))
	assert.Equal(t, 3.0, Clamp(3, 0, 5))
}
