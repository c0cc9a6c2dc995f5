// Package fundvol owns the slow-moving per-symbol data: the fundamentals
// snapshot cache and the trailing volatility history behind IV rank.
package fundvol

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"optionscan/internal/domain/models"
	"optionscan/pkg/logger"
)

// Gateway fundamentals field keys.
const (
	fieldMarketCap     = "MKTCAP"
	fieldAvgVolume     = "AVGVOLUME"
	fieldPE            = "PE"
	fieldPB            = "PB"
	fieldPS            = "PS"
	fieldEVEBITDA      = "EVEBITDA"
	fieldFCF           = "FCF"
	fieldROE           = "ROE"
	fieldROA           = "ROA"
	fieldGrossMargin   = "GROSSMGN"
	fieldNetMargin     = "NETMGN"
	fieldRevenueGrowth = "REVGROWTH"
	fieldEPSGrowth     = "EPSGROWTH"
	fieldDividendYield = "DIVYIELD"
	fieldPayoutRatio   = "PAYOUT"
	fieldBeta          = "BETA"
	fieldSector        = "SECTOR"
	fieldIndustry      = "INDUSTRY"
	fieldNextEarnings  = "NEXTEARNINGS" // YYYYMMDD
)

// FundamentalsSource fetches the raw field map from the gateway.
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, symbol string) (map[string]string, error)
}

// FundamentalsCache serves parsed fundamentals, refetching once the cached
// snapshot crosses maxAge. A fetch failure yields an all-nil record for the
// cycle instead of reusing expired data: downstream gates then reject on
// missing inputs rather than trade on stale ones.
type FundamentalsCache struct {
	mu      sync.Mutex
	source  FundamentalsSource
	log     *logger.Logger
	maxAge  time.Duration
	records map[string]*models.FundamentalsRecord
	now     func() time.Time
}

func NewFundamentalsCache(source FundamentalsSource, log *logger.Logger, maxAge time.Duration) *FundamentalsCache {
	return &FundamentalsCache{
		source:  source,
		log:     log,
		maxAge:  maxAge,
		records: make(map[string]*models.FundamentalsRecord),
		now:     time.Now,
	}
}

// Get returns the cached record when fresh, otherwise refetches. The error
// is informational: the returned record is always usable, possibly all-nil.
func (c *FundamentalsCache) Get(ctx context.Context, symbol string) (*models.FundamentalsRecord, error) {
	c.mu.Lock()
	rec, ok := c.records[symbol]
	c.mu.Unlock()
	if ok && c.now().Sub(rec.FetchedAt) < c.maxAge {
		return rec, nil
	}

	fields, err := c.source.Fundamentals(ctx, symbol)
	if err != nil {
		c.log.Warn("fundamentals fetch failed", logger.String("symbol", symbol), logger.Error(err))
		return &models.FundamentalsRecord{Symbol: symbol, FetchedAt: c.now()}, err
	}

	rec = ParseFundamentals(symbol, fields)
	rec.FetchedAt = c.now()

	c.mu.Lock()
	c.records[symbol] = rec
	c.mu.Unlock()
	return rec, nil
}

// ParseFundamentals converts the gateway field map into a typed record.
// Absent or unparseable fields become nil.
func ParseFundamentals(symbol string, fields map[string]string) *models.FundamentalsRecord {
	rec := &models.FundamentalsRecord{Symbol: symbol}

	rec.MarketCap = parseFloat(fields, fieldMarketCap)
	rec.AvgVolume = parseFloat(fields, fieldAvgVolume)
	rec.PERatio = parseFloat(fields, fieldPE)
	rec.PBRatio = parseFloat(fields, fieldPB)
	rec.PSRatio = parseFloat(fields, fieldPS)
	rec.EVEBITDA = parseFloat(fields, fieldEVEBITDA)
	rec.FreeCashFlow = parseFloat(fields, fieldFCF)
	rec.ROE = parseFloat(fields, fieldROE)
	rec.ROA = parseFloat(fields, fieldROA)
	rec.GrossMargin = parseFloat(fields, fieldGrossMargin)
	rec.NetMargin = parseFloat(fields, fieldNetMargin)
	rec.RevenueGrowth = parseFloat(fields, fieldRevenueGrowth)
	rec.EPSGrowth = parseFloat(fields, fieldEPSGrowth)
	rec.DividendYield = parseFloat(fields, fieldDividendYield)
	rec.PayoutRatio = parseFloat(fields, fieldPayoutRatio)
	rec.Beta = parseFloat(fields, fieldBeta)
	rec.Sector = strings.TrimSpace(fields[fieldSector])
	rec.Industry = strings.TrimSpace(fields[fieldIndustry])

	if v := strings.TrimSpace(fields[fieldNextEarnings]); v != "" {
		if d, err := time.Parse("20060102", v); err == nil {
			rec.NextEarningsDate = &d
		}
	}
	return rec
}

func parseFloat(fields map[string]string, key string) *float64 {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return &f
}
