// Package external talks to the Postcode.eu Dutch address API.
package external

import (
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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/address-lookup/internal/lookup"
	"github.com/address-lookup/internal/parser"
)

const (
	DefaultBaseURL = "https://api.postcode.eu"
	defaultTimeout = 10 * time.Second
)

var (
	// ErrUnauthorized is returned when the API rejects the key or secret.
	ErrUnauthorized = errors.New("postcode api: unauthorized")
	// ErrUpstream is returned for any other unexpected API answer.
	ErrUpstream = errors.New("postcode api: upstream error")
)

// Options configures a PostcodeClient.
type Options struct {
	BaseURL   string
	Key       string
	Secret    string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
	UserAgent string
}

// PostcodeClient implements lookup.AddressAPI.
type PostcodeClient struct {
	httpClient *http.Client
	baseURL    string
	key        string
	secret     string
	userAgent  string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ lookup.AddressAPI = (*PostcodeClient)(nil)

// NewPostcodeClient tạo mới PostcodeClient
func NewPostcodeClient(opts Options, logger *zap.Logger) *PostcodeClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "address-lookup/1.0"
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &PostcodeClient{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		key:        opts.Key,
		secret:     opts.Secret,
		userAgent:  opts.UserAgent,
		limiter:    limiter,
		logger:     logger,
	}
}

// apiAddress is the subset of the Postcode.eu address response we use.
type apiAddress struct {
	Street               string   `json:"street"`
	HouseNumber          int      `json:"houseNumber"`
	HouseNumberAddition  *string  `json:"houseNumberAddition"`
	Postcode             string   `json:"postcode"`
	City                 string   `json:"city"`
	Province             *string  `json:"province"`
	HouseNumberAdditions []string `json:"houseNumberAdditions"`
}

func (a apiAddress) toAddress() lookup.Address {
	return lookup.Address{
		Street:              a.Street,
		HouseNumber:         a.HouseNumber,
		HouseNumberAddition: a.HouseNumberAddition,
		City:                a.City,
		Postcode:            a.Postcode,
		Province:            a.Province,
	}
}

// Lookup resolves key. An unknown address is a NotFound result, not an
// error; only transport problems and unexpected statuses return error.
func (c *PostcodeClient) Lookup(ctx context.Context, key parser.CanonicalKey) (lookup.Result, error) {
	if !key.Valid() {
		return lookup.Result{}, fmt.Errorf("lookup: invalid key %q", key)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return lookup.Result{}, fmt.Errorf("rate limit: %w", err)
	}

	reqURL := c.addressURL(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return lookup.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("postcode api request failed", zap.Error(err), zap.String("key", key.String()))
		return lookup.Result{}, fmt.Errorf("http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		c.logger.Debug("postcode api address not found", zap.String("key", key.String()))
		return lookup.NotFound(), nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.Error("postcode api unauthorized", zap.Int("status", resp.StatusCode))
		return lookup.Result{}, ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("postcode api upstream error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return lookup.Result{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var raw apiAddress
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.logger.Error("postcode api decode failed", zap.Error(err))
		return lookup.Result{}, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("postcode api answered",
		zap.String("key", key.String()),
		zap.Bool("exact", raw.HouseNumberAddition != nil),
		zap.Duration("took", time.Since(start)))

	return classify(raw), nil
}

// classify maps an API answer onto a lookup result. A null
// houseNumberAddition means the requested addition did not match and the
// caller has to pick one of houseNumberAdditions.
func classify(raw apiAddress) lookup.Result {
	if raw.HouseNumberAddition != nil {
		return lookup.Valid(raw.toAddress())
	}
	if len(raw.HouseNumberAdditions) == 0 {
		return lookup.NotFound()
	}
	return lookup.AdditionAmbiguous(raw.toAddress(), raw.HouseNumberAdditions)
}

func (c *PostcodeClient) addressURL(key parser.CanonicalKey) string {
	parts := []string{
		c.baseURL, "nl", "v1", "addresses", "postcode",
		url.PathEscape(key.Postcode),
		strconv.Itoa(key.HouseNumber),
	}
	if key.Addition != "" {
		parts = append(parts, url.PathEscape(key.Addition))
	}
	return strings.Join(parts, "/")
}
