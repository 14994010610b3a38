package matching

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/okian/coffeematch/pkg/logger"
)

// maxBodyBytes caps how much of a service response is read.
const maxBodyBytes = 1 << 20

// CheckHealth reports whether the matching service answers OK on its health
// endpoint. Every call counts as a health check; every negative outcome
// also counts as a health failure.
func (c *Client) CheckHealth(ctx context.Context) bool {
	c.recorder.HealthCheck()

	resp, err := c.gateway.Do(ctx, http.MethodGet, c.cfg.BaseURL+HealthPath, nil)
	if err != nil {
		c.log.Error(ctx, "matching service health check got no response", logger.Error(err))
		c.recorder.HealthFailure()
		return false
	}
	defer closeBody(resp.Body)

	if !isSuccess(resp.StatusCode) {
		c.log.Error(ctx, "matching service health check failed",
			logger.Int("status_code", resp.StatusCode))
		c.recorder.HealthFailure()
		return false
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.log.Error(ctx, "matching service health response unreadable", logger.Error(err))
		c.recorder.HealthFailure()
		return false
	}
	var body healthResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		c.log.Error(ctx, "matching service health response is not valid JSON", logger.Error(err))
		c.recorder.HealthFailure()
		return false
	}
	if body.Status != healthyStatus {
		c.log.Warn(ctx, "matching service reports unhealthy",
			logger.String("status", body.Status),
			logger.String("body", string(raw)))
		c.recorder.HealthFailure()
		return false
	}
	return true
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

func closeBody(b io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(b, maxBodyBytes))
	_ = b.Close()
}
