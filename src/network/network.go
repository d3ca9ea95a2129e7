package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"runtime-observer/src/helpers"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "runtime-observer/1.0"

// AsyncNetworkManager is the shared HTTP client for snapshot polling. One
// limiter throttles every poller in the process.
type AsyncNetworkManager struct {
	Config       *models.MConfig
	Client       *http.Client
	Limiter      *rate.Limiter
	ErrorHandler *helpers.ErrorHandler
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	limit := rate.Inf
	burst := 1
	if cfg.Network.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Network.RequestsPerSecond)
		burst = max(1, int(cfg.Network.RequestsPerSecond))
	}

	return &AsyncNetworkManager{
		Config: cfg,
		Client: &http.Client{
			Timeout: time.Duration(cfg.Network.RequestTimeout) * time.Second,
		},
		Limiter:      rate.NewLimiter(limit, burst),
		ErrorHandler: helpers.NewErrorHandler(log.Named("retry")),
		Logger:       log,
	}
}

// -----------------------------------------------------------------------------

// Get performs a rate-limited GET with retries and exponential backoff.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	var body []byte
	err = nm.ErrorHandler.ExecuteWithRetry(ctx, "fetch "+finalURL, func() error {
		var fetchErr error
		body, fetchErr = nm.fetch(ctx, finalURL)
		return fetchErr
	}, nm.Config.Network.MaxRetries+1)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) fetch(ctx context.Context, finalURL string) ([]byte, error) {
	if err := nm.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, err
	}
	userAgent := nm.Config.Network.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, application/x-protobuf")

	resp, err := nm.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		nm.Logger.Debug("Bad status %d from %s", resp.StatusCode, finalURL)
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
