package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionscan/internal/domain/models"
	"optionscan/pkg/config"
	"optionscan/pkg/logger"
)

func testSignal() *models.SignalCandidate {
	return &models.SignalCandidate{
		Variant: "put_spread",
		Symbol:  "AAPL",
		Trigger: models.TriggerSnapshot{
			Price:        99.80,
			Extreme52W:   100.00,
			AtHigh:       true,
			ProximityPct: 0.2,
		},
		Scores:   models.FundamentalScores{Composite: 71},
		IVRank:   62,
		Contract: models.OptionContract{Symbol: "AAPL", Strike: 110, Right: "C", Expiry: "20260424", Multiplier: 100},
		SpreadLong: &models.OptionContract{
			Symbol: "AAPL", Strike: 115, Right: "C", Expiry: "20260424", Multiplier: 100,
		},
		DTE: 35,
		Economics: models.Economics{
			Premium: 1.0, MaxRisk: 401, MaxProfit: 100, Commission: 1, PremiumIsEstimate: true,
		},
		Risk: models.RiskImpact{
			OldCushion: 0.40, NewCushion: 0.32, Level: models.RiskLow, Acceptable: true,
		},
		Regime:     models.MarketRegime{Level: models.MarketNormal, Haircut: 1},
		Confidence: 0.54,
		CreatedAt:  time.Now(),
	}
}

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func TestFormatMessageIncludesTradeAndRisk(t *testing.T) {
	msg := FormatMessage(testSignal())

	assert.Contains(t, msg, "AAPL C 110.00 exp 20260424 (35d)")
	assert.Contains(t, msg, "long 115.00")
	assert.Contains(t, msg, "1.00 (est)")
	assert.Contains(t, msg, "Cushion 40% -> 32%")

	title := FormatTitle(testSignal())
	assert.Equal(t, "AAPL put_spread @ 52W HIGH", title)
}

func TestNotifyPostsFormEncodedPayload(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer srv.Close()

	n := NewPushoverNotifier(config.PushoverConfig{UserKey: "user", APIToken: "token"}, testLog(t))
	n.url = srv.URL

	require.NoError(t, n.NotifySignal(context.Background(), testSignal()))
	require.NotNil(t, form)
	assert.Equal(t, "token", form.Get("token"))
	assert.Equal(t, "user", form.Get("user"))
	assert.Contains(t, form.Get("message"), "AAPL")
}

func TestNotifyDisabledWithoutCredentials(t *testing.T) {
	n := NewPushoverNotifier(config.PushoverConfig{}, testLog(t))

	assert.False(t, n.Enabled())
	assert.NoError(t, n.NotifySignal(context.Background(), testSignal()))
}
