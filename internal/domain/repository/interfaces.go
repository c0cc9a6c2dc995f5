package repository

import (
	"context"
	"time"

	"optionscan/internal/domain/models"
)

// SignalStore persists scan output: append-only signal history plus
// upsert-by-(symbol[,date]) writes for bars and fundamentals.
type SignalStore interface {
	Init(ctx context.Context) error
	SaveSignal(ctx context.Context, sig *models.SignalCandidate) error
	UpsertBars(ctx context.Context, symbol string, bars []models.Bar) error
	UpsertFundamentals(ctx context.Context, rec *models.FundamentalsRecord) error
	Health(ctx context.Context) error
	Close() error
}

// VolatilityStore keeps the trailing per-(symbol, date) volatility
// observations backing IV rank.
type VolatilityStore interface {
	SaveObservation(ctx context.Context, obs models.VolatilityObservation) error
	History(ctx context.Context, symbol string, days int) ([]models.VolatilityObservation, error)
}

// BenchmarkStore serves per-sector valuation medians.
type BenchmarkStore interface {
	SectorBenchmark(ctx context.Context, sector string) (*models.SectorBenchmark, error)
}

// Notifier delivers an accepted signal to a human.
type Notifier interface {
	NotifySignal(ctx context.Context, sig *models.SignalCandidate) error
}

// Publisher fans accepted signals out to a message topic.
type Publisher interface {
	PublishSignal(ctx context.Context, sig *models.SignalCandidate) error
	Close() error
}

// Metrics records scanner observability counters.
type Metrics interface {
	RecordScanCycle(d time.Duration)
	RecordSignal(variant, symbol string)
	RecordRejection(variant string, reason models.RejectReason)
	RecordRequest(kind string, d time.Duration, ok bool)
	SetPendingRequests(n int)
	RecordReconnect()
	SetConnected(connected bool)
}
