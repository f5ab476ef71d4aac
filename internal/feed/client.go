// Package feed talks to the QRIS payment provider: creating deposit invoices
// and polling the provider's report of recent incoming transactions. The feed
// is trusted as-is; there is no cryptographic verification.
package feed

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable covers transport errors, non-success statuses and
// unreadable response envelopes. The caller does not retry; the next
// reconciliation tick does.
var ErrUnavailable = errors.New("provider feed unavailable")

const (
	userAgent      = "okhttp/4.12.0"
	requestTimeout = 30 * time.Second
)

// Config carries the provider endpoints and service-account credentials.
type Config struct {
	APIURL    string // transaction history endpoint
	CreateURL string // deposit invoice endpoint
	Username  string
	Token     string
}

// Client issues the provider's fixed form-encoded calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

// Fetch posts the history query and returns the raw response body, which may
// be JSON or free text; interpretation is the parser's job. filterID narrows
// the report to one transaction id when non-empty.
func (c *Client) Fetch(ctx context.Context, filterID string) ([]byte, error) {
	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("token", c.cfg.Token)
	form.Set("jenis", "masuk") // incoming only
	if filterID != "" {
		form.Set("id", filterID)
	}
	return c.postForm(ctx, c.cfg.APIURL, form)
}

// RecentIncoming fetches the unfiltered feed and parses it into canonical
// transaction records. Satisfies the reconciler's FeedSource.
func (c *Client) RecentIncoming(ctx context.Context) ([]Transaction, error) {
	raw, err := c.Fetch(ctx, "")
	if err != nil {
		return nil, err
	}
	txs := Parse(raw)
	if len(txs) == 0 {
		c.log.Debug("feed payload yielded no transactions", zap.Int("bytes", len(raw)))
	}
	return txs, nil
}

// DepositOrder is the provider's answer to an invoice creation call.
type DepositOrder struct {
	ID       string
	Nominal  int64
	ImageURL string // hosted QR image, if the provider rendered one
	QRString string // raw QR payload, if not
}

// CreateDeposit asks the provider for a QRIS invoice over expected amount.
// methodHint and methodType are passed through when non-empty. An answer
// carrying neither an image URL nor a QR payload is a hard failure: there is
// nothing to show the user.
func (c *Client) CreateDeposit(ctx context.Context, amount int64, methodHint, methodType, referenceCode string) (DepositOrder, error) {
	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("token", c.cfg.Token)
	form.Set("nominal", fmt.Sprintf("%d", amount))
	form.Set("reff_id", referenceCode)
	if methodHint != "" {
		form.Set("metode", methodHint)
	}
	if methodType != "" {
		form.Set("type", methodType)
	}

	raw, err := c.postForm(ctx, c.cfg.CreateURL, form)
	if err != nil {
		return DepositOrder{}, err
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return DepositOrder{}, fmt.Errorf("%w: create response not json: %v", ErrUnavailable, err)
	}
	// some deployments nest the interesting part under "data"
	if data, ok := body["data"].(map[string]any); ok {
		body = data
	}

	order := DepositOrder{
		ID:       stringField(body, "id"),
		ImageURL: stringField(body, "image_url", "image", "imageqris"),
		QRString: stringField(body, "qr_string", "qr"),
	}
	if order.ID == "" {
		order.ID = referenceCode
	}
	if n, ok := amountField(body, "nominal", "amount"); ok {
		order.Nominal = n
	} else {
		order.Nominal = amount
	}
	if order.ImageURL == "" && order.QRString == "" {
		return DepositOrder{}, fmt.Errorf("provider returned neither qr image nor qr payload for %s", referenceCode)
	}
	return order, nil
}

// FetchImage downloads a provider-hosted QR image.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: image fetch status %d", ErrUnavailable, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	// Accept-Encoding is set by hand, so transparent decompression is off.
	var reader io.Reader = resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: bad gzip envelope: %v", ErrUnavailable, err)
		}
		defer gz.Close()
		reader = gz
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return raw, nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
