package robot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"emobot/internal/domain"
)

const DefaultTimeout = 100 * time.Millisecond

// Client talks to the robot controller firmware. The firmware never
// acknowledges, so only transport failures are reported.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Send(ctx context.Context, cmd domain.RobotCommand) error {
	q := url.Values{}
	q.Set("cmd", string(cmd))
	return c.get(ctx, "/control", q)
}

func (c *Client) SendPanTilt(ctx context.Context, pan, tilt int) error {
	q := url.Values{}
	q.Set("pan", strconv.Itoa(pan))
	q.Set("tilt", strconv.Itoa(tilt))
	return c.get(ctx, "/pantilt", q)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) error {
	if !c.Enabled() {
		return fmt.Errorf("robot controller is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return nil
}
