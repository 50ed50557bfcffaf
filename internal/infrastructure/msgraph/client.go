package msgraph

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/infrastructure/config"
)

const (
	userAgent = "admin-assistant/1.0"

	// batchLimit is the Graph cap on sub-requests per $batch call.
	batchLimit = 20
)

// Client is a thin Graph REST client scoped to one signed-in user. Calendar
// calls go through /me, so the token source decides whose mailbox is read.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	limiter  *rate.Limiter
	pageSize int
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewClient creates a client for cfg. Zero-value tuning fields fall back to
// the documented Graph defaults.
func NewClient(cfg *config.GraphConfig, tokens TokenSource, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 8
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 999 {
		pageSize = 250
	}

	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		tokens:   tokens,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		pageSize: pageSize,
		tracer:   otel.Tracer("msgraph"),
		logger:   logger,
	}
}

// url builds an absolute URL under the API version root.
func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// getJSON takes a full URL rather than a path so @odata.nextLink values can
// be followed as-is.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	return c.do(ctx, http.MethodGet, rawURL, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, c.url(path, nil), body, out)
}

func (c *Client) patchJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, c.url(path, nil), body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, c.url(path, nil), nil, nil)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "graph."+strings.ToLower(method),
		trace.WithAttributes(attribute.String("http.method", method)))
	defer span.End()

	err := c.roundTrip(ctx, method, rawURL, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.GetCode(err))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, body, out interface{}) error {
	status, err := c.send(ctx, method, rawURL, body, out)
	if err == nil || status != http.StatusUnauthorized {
		return err
	}

	// A cached token can be revoked server-side before its recorded expiry.
	// When the source supports invalidation, mint a fresh token and retry the
	// request once.
	cache, ok := c.tokens.(interface{ Invalidate() })
	if !ok {
		return err
	}
	cache.Invalidate()
	c.logger.Debug("graph rejected the token, retrying with a fresh one",
		zap.String("method", method))
	_, err = c.send(ctx, method, rawURL, body, out)
	return err
}

func (c *Client) send(ctx context.Context, method, rawURL string, body, out interface{}) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, errors.NewCancelledError("graph request aborted while rate limited").WithCause(err)
	}

	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, errors.NewInternalError("failed to encode graph request").WithCause(err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return 0, errors.NewInternalError("failed to build graph request").WithCause(err)
	}
	if err := c.addHeaders(ctx, req, body != nil); err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.NewExternalError("graph", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, readStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, errors.NewExternalError("graph", "undecodable response body").WithCause(err)
	}
	return resp.StatusCode, nil
}

func (c *Client) addHeaders(ctx context.Context, req *http.Request, hasBody bool) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	// Graph echoes event times in this zone, which keeps parsing uniform.
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	return nil
}

// batchRequest is one sub-request of a $batch call. URLs are relative to the
// API version root.
type batchRequest struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    interface{}       `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// batchResponse is one sub-response of a $batch call. Graph may return them
// in any order.
type batchResponse struct {
	ID     string          `json:"id"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

func (c *Client) batch(ctx context.Context, requests []batchRequest) ([]batchResponse, error) {
	if len(requests) > batchLimit {
		return nil, errors.NewValidationError("BATCH_TOO_LARGE",
			fmt.Sprintf("graph allows %d requests per batch, got %d", batchLimit, len(requests)))
	}

	var out struct {
		Responses []batchResponse `json:"responses"`
	}
	if err := c.postJSON(ctx, "/$batch", map[string]interface{}{"requests": requests}, &out); err != nil {
		return nil, err
	}
	return out.Responses, nil
}

type graphErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	return mapStatus(resp.StatusCode, raw)
}

// mapStatus converts a Graph failure response into a typed domain error.
func mapStatus(status int, body []byte) error {
	var envelope graphErrorEnvelope
	_ = json.Unmarshal(body, &envelope)
	msg := envelope.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	if envelope.Error.Code != "" {
		msg = envelope.Error.Code + ": " + msg
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.NewUnauthorizedError(fmt.Sprintf("graph rejected the request: %s", msg))
	case status == http.StatusNotFound:
		return errors.NewNotFoundError("graph resource")
	case status == http.StatusConflict:
		return errors.NewConflictError(msg)
	case status == http.StatusTooManyRequests:
		return errors.NewExternalError("graph", "throttled: "+msg)
	case status == http.StatusBadRequest:
		return errors.NewValidationError("GRAPH_BAD_REQUEST", msg)
	default:
		return errors.NewExternalError("graph", fmt.Sprintf("HTTP %d: %s", status, msg))
	}
}
