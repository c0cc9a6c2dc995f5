package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"optionscan/internal/domain/models"
	domrepo "optionscan/internal/domain/repository"
	pkgch "optionscan/pkg/clickhouse"
	applogger "optionscan/pkg/logger"
)

// Table DDL, idempotent. Bars and fundamentals are ReplacingMergeTree so an
// upsert is just an insert with a newer version column; signals are
// append-only history.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS signals (
        created_at         DateTime,
        variant            String,
        symbol             String,
        price              Float64,
        extreme_52w        Float64,
        proximity_pct      Float64,
        composite_score    Float64,
        iv_rank            Float64,
        iv_rank_proxy      UInt8,
        strike             Float64,
        opt_right          String,
        expiry             String,
        dte                Int32,
        spread_long_strike Float64,
        premium            Float64,
        premium_estimate   UInt8,
        max_risk           Float64,
        max_profit         Float64,
        profitability      Float64,
        cushion_before     Float64,
        cushion_after      Float64,
        risk_level         String,
        regime             String,
        confidence         Float64
    ) ENGINE = MergeTree ORDER BY (symbol, created_at)`,
	`CREATE TABLE IF NOT EXISTS daily_bars (
        symbol     String,
        date       Date,
        open       Float64,
        high       Float64,
        low        Float64,
        close      Float64,
        volume     Float64,
        updated_at DateTime
    ) ENGINE = ReplacingMergeTree(updated_at) ORDER BY (symbol, date)`,
	`CREATE TABLE IF NOT EXISTS fundamentals (
        symbol         String,
        fetched_at     DateTime,
        market_cap     Nullable(Float64),
        avg_volume     Nullable(Float64),
        pe_ratio       Nullable(Float64),
        pb_ratio       Nullable(Float64),
        ps_ratio       Nullable(Float64),
        ev_ebitda      Nullable(Float64),
        free_cash_flow Nullable(Float64),
        roe            Nullable(Float64),
        roa            Nullable(Float64),
        gross_margin   Nullable(Float64),
        net_margin     Nullable(Float64),
        revenue_growth Nullable(Float64),
        eps_growth     Nullable(Float64),
        dividend_yield Nullable(Float64),
        payout_ratio   Nullable(Float64),
        beta           Nullable(Float64),
        sector         String,
        industry       String,
        next_earnings  Nullable(Date)
    ) ENGINE = ReplacingMergeTree(fetched_at) ORDER BY symbol`,
}

// CHSignalStore implements SignalStore backed by ClickHouse.
type CHSignalStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)

func NewCHSignalStore(client *pkgch.Client, l *applogger.Logger) *CHSignalStore {
	return &CHSignalStore{client: client, db: client.DB(), l: l}
}

// Init creates the tables if absent.
func (s *CHSignalStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, schemaStatements)
}

func (s *CHSignalStore) SaveSignal(ctx context.Context, sig *models.SignalCandidate) error {
	const q = `INSERT INTO signals (
        created_at, variant, symbol, price, extreme_52w, proximity_pct,
        composite_score, iv_rank, iv_rank_proxy, strike, opt_right, expiry,
        dte, spread_long_strike, premium, premium_estimate, max_risk,
        max_profit, profitability, cushion_before, cushion_after, risk_level,
        regime, confidence
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	spreadLong := 0.0
	if sig.SpreadLong != nil {
		spreadLong = sig.SpreadLong.Strike
	}
	_, err := s.db.ExecContext(ctx, q,
		sig.CreatedAt,
		sig.Variant,
		sig.Symbol,
		sig.Trigger.Price,
		sig.Trigger.Extreme52W,
		sig.Trigger.ProximityPct,
		sig.Scores.Composite,
		sig.IVRank,
		boolToUint8(sig.IVRankProxy),
		sig.Contract.Strike,
		sig.Contract.Right,
		sig.Contract.Expiry,
		int32(sig.DTE),
		spreadLong,
		sig.Economics.Premium,
		boolToUint8(sig.Economics.PremiumIsEstimate),
		sig.Economics.MaxRisk,
		sig.Economics.MaxProfit,
		sig.Economics.Profitability,
		sig.Risk.OldCushion,
		sig.Risk.NewCushion,
		string(sig.Risk.Level),
		string(sig.Regime.Level),
		sig.Confidence,
	)
	if err != nil {
		return fmt.Errorf("save signal: %w", err)
	}
	if s.l != nil {
		s.l.Debug("signal persisted",
			applogger.String("symbol", sig.Symbol),
			applogger.String("variant", sig.Variant))
	}
	return nil
}

// UpsertBars inserts the bars in chunks; ReplacingMergeTree collapses
// duplicate (symbol, date) rows by the newest updated_at.
func (s *CHSignalStore) UpsertBars(ctx context.Context, symbol string, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	const chunkSize = 1000
	now := time.Now()

	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, b := range bars[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, now)
		}
		q := fmt.Sprintf(
			"INSERT INTO daily_bars (symbol, date, open, high, low, close, volume, updated_at) VALUES %s",
			strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("upsert bars %s: %w", symbol, err)
		}
	}
	return nil
}

func (s *CHSignalStore) UpsertFundamentals(ctx context.Context, rec *models.FundamentalsRecord) error {
	const q = `INSERT INTO fundamentals (
        symbol, fetched_at, market_cap, avg_volume, pe_ratio, pb_ratio,
        ps_ratio, ev_ebitda, free_cash_flow, roe, roa, gross_margin,
        net_margin, revenue_growth, eps_growth, dividend_yield, payout_ratio,
        beta, sector, industry, next_earnings
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		rec.Symbol,
		rec.FetchedAt,
		nullableFloat(rec.MarketCap),
		nullableFloat(rec.AvgVolume),
		nullableFloat(rec.PERatio),
		nullableFloat(rec.PBRatio),
		nullableFloat(rec.PSRatio),
		nullableFloat(rec.EVEBITDA),
		nullableFloat(rec.FreeCashFlow),
		nullableFloat(rec.ROE),
		nullableFloat(rec.ROA),
		nullableFloat(rec.GrossMargin),
		nullableFloat(rec.NetMargin),
		nullableFloat(rec.RevenueGrowth),
		nullableFloat(rec.EPSGrowth),
		nullableFloat(rec.DividendYield),
		nullableFloat(rec.PayoutRatio),
		nullableFloat(rec.Beta),
		rec.Sector,
		rec.Industry,
		nullableTime(rec.NextEarningsDate),
	)
	if err != nil {
		return fmt.Errorf("upsert fundamentals %s: %w", rec.Symbol, err)
	}
	return nil
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *CHSignalStore) Close() error {
	return s.client.Close()
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func nullableFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullableTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}
