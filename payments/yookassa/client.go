package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goliatone/go-donation-cache/payments"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.yookassa.ru/v3"

// DefaultCurrency is used when a request does not name one.
const DefaultCurrency = "RUB"

// ErrMissingCredentials indicates a client configured without shop id or key.
var ErrMissingCredentials = errors.New("yookassa: shop id and secret key are required")

// Options configures the client.
type Options struct {
	ShopID         string
	SecretKey      string
	BaseURL        string
	ReturnURL      string
	HTTPClient     *http.Client
	Logger         *zap.Logger
	RequestTimeout time.Duration
	// NewIdempotenceKey overrides the generator of Idempotence-Key headers.
	NewIdempotenceKey func() string
}

// Client talks to the YooKassa payments API.
type Client struct {
	shopID     string
	secretKey  string
	baseURL    string
	returnURL  string
	httpClient *http.Client
	logger     *zap.Logger
	newKey     func() string
}

var _ payments.Provider = (*Client)(nil)

// NewClient constructs a client with defaults for every unset option.
func NewClient(opts Options) (*Client, error) {
	shopID := strings.TrimSpace(opts.ShopID)
	secretKey := strings.TrimSpace(opts.SecretKey)
	if shopID == "" || secretKey == "" {
		return nil, ErrMissingCredentials
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newKey := opts.NewIdempotenceKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	return &Client{
		shopID:     shopID,
		secretKey:  secretKey,
		baseURL:    baseURL,
		returnURL:  opts.ReturnURL,
		httpClient: httpClient,
		logger:     logger,
		newKey:     newKey,
	}, nil
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createRequest struct {
	Amount            amount            `json:"amount"`
	Confirmation      confirmation      `json:"confirmation"`
	Capture           bool              `json:"capture"`
	SavePaymentMethod bool              `json:"save_payment_method"`
	Description       string            `json:"description,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Amount       amount            `json:"amount"`
	Confirmation *confirmation     `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
}

type listResponse struct {
	Type       string    `json:"type"`
	Items      []payment `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// Create registers a redirect payment captured automatically on success.
func (c *Client) Create(ctx context.Context, req payments.CreateRequest) (payments.CreateResult, error) {
	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = c.returnURL
	}
	body := createRequest{
		Amount:       amount{Value: FormatAmount(req.Amount), Currency: currency},
		Confirmation: confirmation{Type: "redirect", ReturnURL: returnURL},
		Capture:      true,
		Description:  req.Description,
		Metadata:     req.Metadata.Map(),
	}

	var out payment
	if err := c.do(ctx, http.MethodPost, "/payments", nil, body, true, &out); err != nil {
		return payments.CreateResult{}, pkgerrors.Wrap(err, "create payment")
	}

	result := payments.CreateResult{
		ExternalID: out.ID,
		Status:     payments.Status(out.Status),
	}
	if out.Confirmation != nil {
		result.ConfirmationURL = out.Confirmation.ConfirmationURL
	}
	c.logger.Debug("provider payment created",
		zap.String("external_id", out.ID),
		zap.String("payment_id", req.Metadata.PaymentID.String()),
	)
	return result, nil
}

// List returns one page of payments created at or after req.CreatedAtGTE.
func (c *Client) List(ctx context.Context, req payments.ListRequest) (payments.Page, error) {
	query := url.Values{}
	if !req.CreatedAtGTE.IsZero() {
		query.Set("created_at.gte", req.CreatedAtGTE.UTC().Format(time.RFC3339Nano))
	}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Cursor != "" {
		query.Set("cursor", req.Cursor)
	}

	var out listResponse
	if err := c.do(ctx, http.MethodGet, "/payments", query, nil, false, &out); err != nil {
		return payments.Page{}, pkgerrors.Wrap(err, "list payments")
	}

	page := payments.Page{
		Items:      make([]payments.Item, 0, len(out.Items)),
		NextCursor: out.NextCursor,
	}
	for _, p := range out.Items {
		page.Items = append(page.Items, payments.Item{
			ExternalID: p.ID,
			Status:     payments.Status(p.Status),
			Metadata:   p.Metadata,
		})
	}
	return page, nil
}

// Capture confirms a payment waiting for capture and returns its new status.
func (c *Client) Capture(ctx context.Context, externalID string) (payments.Status, error) {
	var out payment
	path := "/payments/" + url.PathEscape(externalID) + "/capture"
	if err := c.do(ctx, http.MethodPost, path, nil, struct{}{}, true, &out); err != nil {
		return "", pkgerrors.Wrapf(err, "capture payment %s", externalID)
	}
	return payments.Status(out.Status), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, idempotent bool, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotent {
		req.Header.Set("Idempotence-Key", c.newKey())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", payments.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", payments.ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		c.logger.Warn("provider request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Parameter   string `json:"parameter"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("yookassa: http %d", e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// Unwrap classifies throttling and server failures as provider outages.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return payments.ErrProviderUnavailable
	}
	return nil
}

// FormatAmount renders whole currency units with two decimals.
func FormatAmount(units int64) string {
	return decimal.NewFromInt(units).StringFixed(2)
}
