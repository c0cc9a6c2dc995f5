package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"optionscan/internal/domain/models"
	domrepo "optionscan/internal/domain/repository"
	"optionscan/pkg/config"
	pkghttp "optionscan/pkg/http"
	"optionscan/pkg/logger"
)

const (
	pushoverURL     = "https://api.pushover.net/1/messages.json"
	requestTimeout  = 10 * time.Second
	contentTypeForm = "application/x-www-form-urlencoded"
)

// PushoverNotifier delivers accepted signals as push notifications. A zero
// credential pair disables delivery without erroring, so the scanner can run
// headless.
type PushoverNotifier struct {
	client   *pkghttp.Client
	url      string
	userKey  string
	apiToken string
	log      *logger.Logger
}

var _ domrepo.Notifier = (*PushoverNotifier)(nil)

func NewPushoverNotifier(cfg config.PushoverConfig, log *logger.Logger) *PushoverNotifier {
	return &PushoverNotifier{
		client:   pkghttp.NewClient(pkghttp.WithTimeout(requestTimeout)),
		url:      pushoverURL,
		userKey:  cfg.UserKey,
		apiToken: cfg.APIToken,
		log:      log,
	}
}

// Enabled reports whether both credentials are configured.
func (n *PushoverNotifier) Enabled() bool {
	return n.userKey != "" && n.apiToken != ""
}

func (n *PushoverNotifier) NotifySignal(ctx context.Context, sig *models.SignalCandidate) error {
	if !n.Enabled() {
		return nil
	}

	opts := &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    n.url,
		Headers: map[string]string{
			"Content-Type": contentTypeForm,
		},
		Body: map[string]string{
			"token":   n.apiToken,
			"user":    n.userKey,
			"title":   FormatTitle(sig),
			"message": FormatMessage(sig),
		},
	}

	if err := n.client.SendAndParse(ctx, opts, nil); err != nil {
		return fmt.Errorf("pushover: %w", err)
	}

	n.log.Debug("pushover notification sent",
		logger.String("symbol", sig.Symbol),
		logger.String("variant", sig.Variant))
	return nil
}

// FormatTitle renders the one-line notification title.
func FormatTitle(sig *models.SignalCandidate) string {
	side := "LOW"
	if sig.Trigger.AtHigh {
		side = "HIGH"
	}
	return fmt.Sprintf("%s %s @ 52W %s", sig.Symbol, sig.Variant, side)
}

// FormatMessage renders the notification body with the trade proposal and
// the numbers behind it.
func FormatMessage(sig *models.SignalCandidate) string {
	var b strings.Builder

	leg := fmt.Sprintf("%s %s %.2f exp %s (%dd)",
		sig.Symbol, sig.Contract.Right, sig.Contract.Strike, sig.Contract.Expiry, sig.DTE)
	if sig.SpreadLong != nil {
		leg += fmt.Sprintf(" / long %.2f", sig.SpreadLong.Strike)
	}
	fmt.Fprintf(&b, "%s\n", leg)

	premium := fmt.Sprintf("%.2f", sig.Economics.Premium)
	if sig.Economics.PremiumIsEstimate {
		premium += " (est)"
	}
	fmt.Fprintf(&b, "Premium %s | Risk %.0f | Profit %.0f\n",
		premium, sig.Economics.MaxRisk, sig.Economics.MaxProfit)

	fmt.Fprintf(&b, "Px %.2f vs 52W %.2f (%.1f%%)\n",
		sig.Trigger.Price, sig.Trigger.Extreme52W, sig.Trigger.ProximityPct)

	ivRank := fmt.Sprintf("%.0f", sig.IVRank)
	if sig.IVRankProxy {
		ivRank += "*"
	}
	fmt.Fprintf(&b, "Score %.0f | IVR %s | Conf %.0f%%\n",
		sig.Scores.Composite, ivRank, sig.Confidence*100)

	fmt.Fprintf(&b, "Cushion %.0f%% -> %.0f%% (%s) | Regime %s",
		sig.Risk.OldCushion*100, sig.Risk.NewCushion*100, sig.Risk.Level, sig.Regime.Level)

	return b.String()
}
