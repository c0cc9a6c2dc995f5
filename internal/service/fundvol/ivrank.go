package fundvol

import (
	"context"
	"time"

	"optionscan/internal/domain/models"
	"optionscan/internal/domain/repository"
	"optionscan/pkg/logger"
	"optionscan/pkg/ta"
)

const (
	// HistoryDays is the trailing window behind IV rank.
	HistoryDays = 252
	// MinObservations is the floor below which the rank is not meaningful
	// and the neutral value is returned instead.
	MinObservations = 20
	// NeutralRank is used when history is too thin or flat to rank against.
	NeutralRank = 50.0
)

// IVRankService records one volatility observation per (symbol, day) and
// ranks the current reading inside its trailing window.
type IVRankService struct {
	store repository.VolatilityStore
	log   *logger.Logger
	now   func() time.Time
}

func NewIVRankService(store repository.VolatilityStore, log *logger.Logger) *IVRankService {
	return &IVRankService{store: store, log: log, now: time.Now}
}

// Observe stores today's volatility reading. When impliedVol is nil it falls
// back to annualized realized volatility from the price series, marked as a
// proxy so Rank can report the degraded basis.
func (s *IVRankService) Observe(ctx context.Context, symbol string, impliedVol *float64, series *models.PriceSeries) (models.VolatilityObservation, error) {
	obs := models.VolatilityObservation{
		Symbol: symbol,
		Date:   s.now().Truncate(24 * time.Hour),
	}
	if impliedVol != nil {
		v := *impliedVol * 100 // store in percentage points
		obs.ImpliedVol = &v
	} else if !series.Empty() {
		rv := ta.RealizedVol(series.Closes())
		if rv > 0 {
			obs.RealizedVol = &rv
		}
	}

	if obs.ImpliedVol == nil && obs.RealizedVol == nil {
		return obs, nil
	}
	if err := s.store.SaveObservation(ctx, obs); err != nil {
		return obs, err
	}
	return obs, nil
}

// Rank returns the percentile-style IV rank in [0,100]:
//
//	(current - min) / (max - min) * 100
//
// over the trailing window. Thin (<MinObservations) or flat (max==min)
// history yields NeutralRank. The bool result reports whether the current
// reading was a realized-vol proxy.
func (s *IVRankService) Rank(ctx context.Context, symbol string, current models.VolatilityObservation) (float64, bool, error) {
	cur, proxy := current.Value()
	if cur <= 0 {
		return NeutralRank, proxy, nil
	}

	hist, err := s.store.History(ctx, symbol, HistoryDays)
	if err != nil {
		return NeutralRank, proxy, err
	}
	if len(hist) < MinObservations {
		s.log.Debug("iv history too thin",
			logger.String("symbol", symbol),
			logger.Int("observations", len(hist)))
		return NeutralRank, proxy, nil
	}

	minV, maxV := cur, cur
	for _, o := range hist {
		v, _ := o.Value()
		if v <= 0 {
			continue
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if maxV == minV {
		return NeutralRank, proxy, nil
	}
	rank := ta.Clamp((cur-minV)/(maxV-minV)*100, 0, 100)
	return rank, proxy, nil
}
