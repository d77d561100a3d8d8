// Package bitbucket provides the http handler that receives Bitbucket
// Server webhook events.
package bitbucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v43/github"
	"go.uber.org/zap"

	"github.com/simplesurance/taskbot/internal/logfields"
	"github.com/simplesurance/taskbot/internal/taskbot"
	"github.com/simplesurance/taskbot/internal/taskerr"
)

const loggerName = "bitbucket-event-provider"

// DefaultMaxPayloadSize is the default max. size of a webhook request body.
const DefaultMaxPayloadSize = 5 * 1024 * 1024

const bearerQueryParam = "bearer"

const indexResponse = "Hi, I'm the Bitbucket Task Bot!"

// EventHandler processes webhook payloads.
type EventHandler interface {
	HandleEvent(ctx context.Context, payload []byte, bearer string) (taskbot.Outcome, error)
}

// Provider receives Bitbucket webhook http-requests, validates them and
// passes the payload to an EventHandler.
type Provider struct {
	logger         *zap.Logger
	webhookSecret  []byte
	maxPayloadSize int64
	handler        EventHandler
}

type Option func(*Provider)

// WithPayloadSecret enables validating the X-Hub-Signature header of
// requests with the given secret.
func WithPayloadSecret(secret string) Option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

func WithMaxPayloadSize(bytes int64) Option {
	return func(p *Provider) {
		p.maxPayloadSize = bytes
	}
}

func New(handler EventHandler, opts ...Option) *Provider {
	p := Provider{
		handler:        handler,
		maxPayloadSize: DefaultMaxPayloadSize,
	}

	for _, o := range opts {
		o(&p)
	}

	if p.logger == nil {
		p.logger = zap.L().Named(loggerName)
	}

	return &p
}

func (p *Provider) readPayload(resp http.ResponseWriter, req *http.Request) ([]byte, error) {
	req.Body = http.MaxBytesReader(resp, req.Body, p.maxPayloadSize)

	if len(p.webhookSecret) != 0 {
		return github.ValidatePayload(req, p.webhookSecret)
	}

	return io.ReadAll(req.Body)
}

// HTTPHandler processes a webhook request.
// The event is processed synchronously, the response body is the result of
// the processing.
func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	logFields := []zap.Field{
		logfields.EventProvider("bitbucket"),
		logfields.RequestID(req.Header.Get("X-Request-Id")),
		logfields.EventKey(req.Header.Get("X-Event-Key")),
	}

	logger := p.logger.With(logFields...)

	logger.Debug("received a http request", logfields.Event("bitbucket_http_request_received"))

	if req.Method != http.MethodPost {
		logger.Info(
			"received http request with unsupported method",
			logfields.Event("bitbucket_http_request_invalid_method"),
			zap.String("http_method", req.Method),
		)

		resp.Header().Set("Allow", http.MethodPost)
		http.Error(resp, fmt.Sprintf("method %s is not allowed", req.Method), http.StatusMethodNotAllowed)
		return
	}

	bearer := req.URL.Query().Get(bearerQueryParam)
	if bearer == "" {
		logger.Info(
			"received invalid http request, bearer query parameter is missing",
			logfields.Event("bitbucket_http_request_validation_failed"),
		)

		http.Error(resp, "missing bearer query parameter", http.StatusBadRequest)
		return
	}

	payload, err := p.readPayload(resp, req)
	if err != nil {
		logger.Info(
			"received invalid http request, payload validation failed",
			logfields.Event("bitbucket_http_request_validation_failed"),
			zap.Error(err),
		)

		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	logger.Debug(
		"received webhook event",
		logfields.Event("bitbucket_event_received"),
		zap.ByteString("http_body", payload),
	)

	// processing continues when the client closes the connection, an
	// aborted run would leave a comment without all tasks
	outcome, err := p.handler.HandleEvent(context.Background(), payload, bearer)
	if err != nil {
		status := http.StatusInternalServerError

		var decodeErr *taskerr.DecodeError
		if errors.As(err, &decodeErr) {
			status = http.StatusBadRequest
		}

		logger.Warn(
			"processing webhook event failed",
			logfields.Event("bitbucket_event_processing_failed"),
			zap.Int("http_status", status),
			zap.Error(err),
		)

		http.Error(resp, err.Error(), status)
		return
	}

	logger.Debug(
		"webhook event processed",
		logfields.Event("bitbucket_event_processed"),
		zap.Stringer("outcome", outcome),
	)

	resp.Header().Set("Content-Type", "text/plain; charset=utf-8")
	resp.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(resp, outcome.Response()); err != nil {
		logger.Debug(
			"writing http response failed",
			logfields.Event("bitbucket_http_response_write_failed"),
			zap.Error(err),
		)
	}
}

// IndexHandler responds with a greeting.
func (p *Provider) IndexHandler(resp http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(resp, req)
		return
	}

	resp.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(resp, indexResponse)
}
