// Package upstream talks to the Sheger Walk REST API and normalises its
// response envelopes into a single Result shape.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"sheger-walk-admin/internal/config"
)

// maxResponseSize caps how much of an upstream body is read.
const maxResponseSize = 20 << 20

// Client issues authenticated requests against the backend. It holds no
// process-wide state; every value comes from the config passed to NewClient.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	tracer  trace.Tracer
}

// NewClient creates a client for cfg.
func NewClient(cfg config.UpstreamConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("sheger-walk-admin/upstream"),
	}
}

// APIError is a failed upstream call. Message is the backend's own message
// when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Result is the normalised outcome of every upstream call.
type Result[T any] struct {
	OK           bool
	Value        T
	ErrorMessage string
	Status       int
}

// Err returns nil for a successful result and an *APIError otherwise.
func (r Result[T]) Err() error {
	if r.OK {
		return nil
	}
	return &APIError{Status: r.Status, Message: r.ErrorMessage}
}

// Get fetches path with query params. key names the collection inside ad hoc
// payloads such as {"challenges": [...]}; pass "" to decode the payload as is.
func Get[T any](ctx context.Context, c *Client, path, key string, params Params) Result[T] {
	target := c.baseURL + path
	if q := BuildQuery(params).Encode(); q != "" {
		target += "?" + q
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return failure[T](0, fmt.Sprintf("failed to create request: %v", err))
	}
	return execute[T](c, req, key)
}

// Send issues a JSON request. A nil body sends no payload.
func Send[T any](ctx context.Context, c *Client, method, path, key string, body any) Result[T] {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return failure[T](0, fmt.Sprintf("failed to encode request: %v", err))
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return failure[T](0, fmt.Sprintf("failed to create request: %v", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return execute[T](c, req, key)
}

// FilePart is an uploaded file forwarded as multipart form data.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Form is a multipart payload.
type Form struct {
	Fields map[string]string
	File   *FilePart
}

// SendMultipart issues a multipart/form-data request.
func SendMultipart[T any](ctx context.Context, c *Client, method, path, key string, form Form) Result[T] {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range form.Fields {
		if err := w.WriteField(name, value); err != nil {
			return failure[T](0, fmt.Sprintf("failed to encode form: %v", err))
		}
	}
	if f := form.File; f != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		h.Set("Content-Type", f.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return failure[T](0, fmt.Sprintf("failed to encode form: %v", err))
		}
		if _, err := part.Write(f.Data); err != nil {
			return failure[T](0, fmt.Sprintf("failed to encode form: %v", err))
		}
	}
	if err := w.Close(); err != nil {
		return failure[T](0, fmt.Sprintf("failed to encode form: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return failure[T](0, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return execute[T](c, req, key)
}

func execute[T any](c *Client, req *http.Request, key string) Result[T] {
	ctx, span := c.tracer.Start(req.Context(), "upstream "+req.Method+" "+req.URL.Path,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
	)

	req = req.WithContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return failure[T](0, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return failure[T](resp.StatusCode, fmt.Sprintf("failed to read response: %v", err))
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	result := decode[T](resp.StatusCode, body, key)
	if !result.OK {
		span.SetStatus(codes.Error, result.ErrorMessage)
	}
	return result
}

func failure[T any](status int, msg string) Result[T] {
	return Result[T]{Status: status, ErrorMessage: msg}
}
