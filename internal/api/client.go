// Package api talks to the certificate generator and the verifier.
package api

import (
	"bytes"
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
	"golang.org/x/time/rate"

	"github.com/ukaji3/certissue-go/pkg/certissue"
	"github.com/ukaji3/certissue-go/pkg/certissue/models"
)

const (
	uploadPath   = "/api/school/upload"
	downloadPath = "/api/school/download/"

	// maxErrorBody bounds the response text quoted in errors.
	maxErrorBody = 512
)

// Config configures a Client.
type Config struct {
	// BaseURL is the generator's root URL.
	BaseURL string
	// VerifyURL is the full verification endpoint URL.
	VerifyURL string
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
	// RequestsPerSecond throttles requests. Zero or less disables throttling.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// Client is an HTTP client for the generator and verifier endpoints.
type Client struct {
	client    *http.Client
	baseURL   string
	verifyURL string
	limiter   *rate.Limiter
	logger    *zap.Logger
}

var (
	_ certissue.Uploader = (*Client)(nil)
	_ certissue.Verifier = (*Client)(nil)
)

// NewClient creates a client. A nil logger disables logging.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.BurstSize
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		verifyURL: cfg.VerifyURL,
		limiter:   limiter,
		logger:    logger,
	}
}

// Upload posts the basic payload to the generator.
func (c *Client) Upload(ctx context.Context, items []models.UploadItem) (*models.UploadResponse, error) {
	var out models.UploadResponse
	if err := c.postJSON(ctx, "upload", c.baseURL+uploadPath, items, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("Upload answered",
		zap.Int("items", len(items)),
		zap.Bool("success", out.Success),
		zap.String("certificate_file", out.CertificateFile))
	return &out, nil
}

// Verify posts a certificate to the verification endpoint.
func (c *Client) Verify(ctx context.Context, req models.VerifyRequest) (*models.VerifyResponse, error) {
	var out models.VerifyResponse
	if err := c.postJSON(ctx, "verify", c.verifyURL, req, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("Verify answered",
		zap.String("tx_hash", req.TxHash),
		zap.Bool("verified", out.Verified))
	return &out, nil
}

// Download streams a generated certificate archive into w and returns the
// number of bytes written.
func (c *Client) Download(ctx context.Context, filename string, w io.Writer) (int64, error) {
	if filename == "" {
		return 0, certissue.NewTransportError("download", 0, errors.New("empty file name"))
	}

	resp, err := c.do(ctx, "download", http.MethodGet, c.baseURL+downloadPath+url.PathEscape(filename), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, certissue.NewTransportError("download", resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	c.logger.Debug("Certificate downloaded", zap.String("file", filename), zap.Int64("bytes", n))
	return n, nil
}

// postJSON sends body as JSON and decodes a 2xx reply into out.
func (c *Client) postJSON(ctx context.Context, op, endpoint string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return certissue.NewTransportError(op, 0, fmt.Errorf("marshal request: %w", err))
	}

	resp, err := c.do(ctx, op, http.MethodPost, endpoint, jsonBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return certissue.NewTransportError(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// do waits for the limiter, sends the request and rejects non-2xx replies.
// The caller closes the body of a returned response.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, certissue.NewTransportError(op, 0, err)
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, certissue.NewTransportError(op, 0, fmt.Errorf("create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, certissue.NewTransportError(op, 0, fmt.Errorf("send request: %w", err))
	}
	c.logger.Debug("HTTP request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(text))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, certissue.NewTransportError(op, resp.StatusCode, errors.New(msg))
	}
	return resp, nil
}
