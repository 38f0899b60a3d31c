package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"pageguard/internal/logger"
	"pageguard/pkg/model"
)

const maxResponseBytes = 1 << 20

// Client talks to the remote classification/logging service. Calls are not
// retried here; the next natural trigger resupplies the data.
type Client struct {
	base string
	http *http.Client
	log  logger.Logger
}

func New(base string, timeout time.Duration, l logger.Logger) *Client {
	if l == nil {
		l = logger.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
		log:  l,
	}
}

// CheckURL submits a page summary for classification and returns the
// verdict. Any malformed response is an error; the caller decides policy.
func (c *Client) CheckURL(ctx context.Context, token string, sum model.PageSummary) (model.Decision, error) {
	body, err := json.Marshal(sum)
	if err != nil {
		return "", err
	}
	body, _ = sjson.SetBytes(body, "sentAt", time.Now().UnixMilli())
	data, err := c.post(ctx, c.base+"/check-url", token, body)
	if err != nil {
		return "", err
	}
	switch dec := gjson.GetBytes(data, "decision").String(); dec {
	case string(model.DecisionAllow):
		return model.DecisionAllow, nil
	case string(model.DecisionBlock):
		return model.DecisionBlock, nil
	default:
		return "", fmt.Errorf("malformed decision %q", dec)
	}
}

// LogEvent posts one audit record.
func (c *Client) LogEvent(ctx context.Context, token string, ev model.LogEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = c.post(ctx, c.base+"/log-event", token, body)
	return err
}

// Heartbeat pings the liveness endpoint.
func (c *Client) Heartbeat(ctx context.Context, token string) error {
	u := c.base + "/heartbeat?key=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("heartbeat status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url, token string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend status %d", resp.StatusCode)
	}
	return data, nil
}
