package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyeonwoo/railbot/internal/model"
)

// CallbackReporter delivers outcomes over the loopback completion endpoint:
// POST {base}/internal/completion/{sessionID}?status={1|0|-1}&detail=...
// authenticated with a service token.  Delivery is fire-and-forget with a
// bounded number of attempts; a report that cannot be delivered is logged
// and dropped, never escalated back into the worker.
type CallbackReporter struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *zap.Logger

	attempts int
	backoff  time.Duration
}

// NewCallbackReporter returns a reporter posting to baseURL with the given
// bearer token.
func NewCallbackReporter(baseURL, token string, logger *zap.Logger) *CallbackReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackReporter{
		baseURL:  baseURL,
		token:    token,
		httpc:    &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
		attempts: 3,
		backoff:  time.Second,
	}
}

// Report posts the outcome, retrying up to the attempt bound with a short
// pause between tries.
func (r *CallbackReporter) Report(ctx context.Context, sessionID string, outcome model.Outcome) {
	q := url.Values{
		"status": {strconv.Itoa(int(outcome.Status))},
		"detail": {outcome.Detail},
	}
	endpoint := fmt.Sprintf("%s/internal/completion/%s?%s", r.baseURL, url.PathEscape(sessionID), q.Encode())

	var lastErr error
	for i := 0; i < r.attempts; i++ {
		if i > 0 && !sleep(ctx, r.backoff) {
			break
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Authorization", "Bearer "+r.token)
		res, err := r.httpc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		res.Body.Close()
		if res.StatusCode < 300 {
			return
		}
		lastErr = fmt.Errorf("completion endpoint answered %d", res.StatusCode)
	}
	r.logger.Error("outcome report dropped",
		zap.String("session", sessionID),
		zap.Int("status", int(outcome.Status)),
		zap.Error(lastErr))
}
