package httpfetch

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/terminwatch/terminwatch/internal/models"
	"github.com/terminwatch/terminwatch/internal/scrape"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Booking sites put these tokens on pages that demand a human. Checked
// case-insensitively before any parsing happens.
var captchaMarkers = []string{"captchatext", "captcha"}

const maxBodyBytes = 4 << 20

type Client struct {
	userAgent string
	httpc     *http.Client
}

func New(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		userAgent: userAgent,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Fetch(ctx context.Context, targetURL string) (scrape.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return scrape.Result{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return scrape.Result{}, &scrape.Failure{Kind: models.CheckErrorTimeout, Message: err.Error()}
		}
		return scrape.Result{}, &scrape.Failure{Kind: models.CheckErrorNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	status := resp.StatusCode

	if status == http.StatusTooManyRequests {
		return scrape.Result{}, &scrape.Failure{
			Kind:       models.CheckErrorRateLimit,
			HTTPStatus: &status,
			Message:    "target site rate limited the request",
		}
	}
	if status/100 != 2 {
		return scrape.Result{}, &scrape.Failure{
			Kind:       models.CheckErrorNetwork,
			HTTPStatus: &status,
			Message:    "http " + resp.Status,
		}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return scrape.Result{}, &scrape.Failure{Kind: models.CheckErrorTimeout, HTTPStatus: &status, Message: err.Error()}
		}
		return scrape.Result{}, &scrape.Failure{Kind: models.CheckErrorNetwork, HTTPStatus: &status, Message: err.Error()}
	}
	body := string(b)

	if marker, ok := containsCaptcha(body); ok {
		return scrape.Result{}, &scrape.Failure{
			Kind:       models.CheckErrorCaptcha,
			HTTPStatus: &status,
			Message:    "CAPTCHA required (marker: " + marker + ")",
		}
	}

	return scrape.Result{Body: body, HTTPStatus: status}, nil
}

func containsCaptcha(body string) (string, bool) {
	low := strings.ToLower(body)
	for _, m := range captchaMarkers {
		if strings.Contains(low, m) {
			return m, true
		}
	}
	return "", false
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() == context.DeadlineExceeded {
		return true
	}
	if os.IsTimeout(err) {
		return true
	}
	// http.Client timeout surfaces as awkwardly worded url.Error.
	return strings.Contains(err.Error(), "Client.Timeout")
}
