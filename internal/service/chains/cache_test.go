package chains

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionscan/internal/domain/models"
	"optionscan/pkg/logger"
)

type fakeSource struct {
	chain models.ChainParams
	err   error
	calls int
}

func (f *fakeSource) ChainParams(context.Context, string) (models.ChainParams, error) {
	f.calls++
	return f.chain, f.err
}

func (f *fakeSource) OptionQuote(_ context.Context, c models.OptionContract) (models.OptionQuote, error) {
	return models.OptionQuote{Contract: c, Bid: 1.0, Ask: 1.2}, nil
}

func newTestService(t *testing.T, src *fakeSource) *Service {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return NewService(src, log, 6*time.Hour)
}

func sampleChain() models.ChainParams {
	return models.ChainParams{
		Symbol:      "AAPL",
		Expirations: []string{"20261016", "20261120", "20261218"},
		Strikes:     []float64{90, 95, 100, 105, 110},
		Multiplier:  100,
		FetchedAt:   time.Now(),
	}
}

func TestChainIsCachedWithinMaxAge(t *testing.T) {
	src := &fakeSource{chain: sampleChain()}
	s := newTestService(t, src)

	_, err := s.Chain(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = s.Chain(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
}

func TestStaleChainServedWhenRefetchFails(t *testing.T) {
	src := &fakeSource{chain: sampleChain()}
	s := newTestService(t, src)

	first, err := s.Chain(context.Background(), "AAPL")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(12 * time.Hour) }
	src.err = errors.New("gateway down")

	got, err := s.Chain(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, first.Expirations, got.Expirations)
}

func TestEmptyChainIsAnError(t *testing.T) {
	src := &fakeSource{chain: models.ChainParams{Symbol: "AAPL"}}
	s := newTestService(t, src)

	_, err := s.Chain(context.Background(), "AAPL")
	assert.Error(t, err)
}
