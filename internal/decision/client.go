package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/codes"

	"github.com/mbd888/precog/internal/logging"
	"github.com/mbd888/precog/internal/traces"
)

const (
	DefaultAPIURL  = "https://api.precognitive.io"
	DefaultVersion = "v1"
	// DefaultTimeout bounds the single scoring call.
	DefaultTimeout = 2000 * time.Millisecond

	maxResponseBytes = 1 << 20
)

var validate = validator.New()

// BasicAuth holds the credentials for the scoring API.
type BasicAuth struct {
	UserName string `validate:"required"`
	Password string `validate:"required"`
}

// ClientConfig configures a Client. It is copied by NewClient and never
// read again afterwards.
type ClientConfig struct {
	APIKey  string `validate:"required"`
	Version string `validate:"required"`
	APIURL  string `validate:"required,url"`
	Auth    BasicAuth

	// Logger is used as is when set. Otherwise a text logger on stderr is
	// built with LogLevel as threshold.
	Logger *slog.Logger `validate:"-"`
	// LogLevel is one of DEBUG, INFO, WARN, ERROR, NONE. Empty means NONE.
	LogLevel string

	// HTTPClient overrides the transport. The call timeout is applied
	// through the request context either way.
	HTTPClient *http.Client `validate:"-"`
	// Timeout overrides DefaultTimeout.
	Timeout time.Duration
}

// Callback receives the outcome of AutoDecisionCallback. err is nil when the
// login may proceed and a *RejectionError otherwise.
type Callback func(err error, user *User, authCtx *AuthContext)

// Option customizes a single decision call.
type Option func(*callOptions)

type callOptions struct {
	overrides *Overrides
}

// WithOverrides merges o over the computed scoring request.
func WithOverrides(o *Overrides) Option {
	return func(co *callOptions) {
		co.overrides = o
	}
}

// Client calls the scoring API. It is safe for concurrent use.
type Client struct {
	apiKey     string
	endpoint   string
	auth       BasicAuth
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	lastFailure atomic.Pointer[TransportError]
}

// NewClient validates cfg and returns a ready client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Auth.UserName == "" || cfg.Auth.Password == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := cfg.Logger
	if logger == nil {
		level := logging.LevelNone
		if cfg.LogLevel != "" {
			lvl, err := logging.ParseLevel(cfg.LogLevel)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
			level = lvl
		}
		logger = logging.NewWithWriter(os.Stderr, level, "text")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   strings.TrimRight(cfg.APIURL, "/") + "/" + cfg.Version + "/decision/login",
		auth:       cfg.Auth,
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		logger:     logger.With("component", "decision"),
		now:        time.Now,
	}, nil
}

// Endpoint returns the URL scoring requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// LastFailure returns the failure of the most recent call, or nil when it
// succeeded or no call has been made yet.
func (c *Client) LastFailure() *TransportError {
	return c.lastFailure.Load()
}

// Decision scores one login and returns the scoring service's answer.
//
// Transport failures never surface here: a non-200 status, network error,
// timeout or undecodable body is logged and replaced by FailOpenResponse.
// The only error returned is ErrInvalidRequest when user or authCtx is nil.
func (c *Client) Decision(ctx context.Context, user *User, authCtx *AuthContext, opts ...Option) (*ScoringResponse, error) {
	o := callOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := traces.StartSpan(ctx, "decision.Decision")
	defer span.End()
	if authCtx != nil {
		span.SetAttributes(traces.SessionID(authCtx.SessionID), traces.Protocol(string(authCtx.Protocol)))
	}

	req, err := c.buildRequest(ctx, user, authCtx, o.overrides)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build scoring request")
		return nil, err
	}

	resp, terr := c.send(ctx, req)
	if terr != nil {
		c.logger.ErrorContext(ctx, "scoring api call failed, failing open",
			"error", terr,
			"reason", terr.Reason,
			"status", terr.StatusCode,
			"session_id", req.EventID,
		)
		decisionRequestsTotal.WithLabelValues("fail_open").Inc()
		decisionFailOpenTotal.WithLabelValues(terr.Reason).Inc()
		span.RecordError(terr)
		span.SetAttributes(traces.FailOpen(terr.Reason))
		c.lastFailure.Store(terr)
		resp = FailOpenResponse()
	} else {
		decisionRequestsTotal.WithLabelValues("ok").Inc()
		c.lastFailure.Store(nil)
	}

	decisionResultsTotal.WithLabelValues(decisionLabel(resp.Decision)).Inc()
	span.SetAttributes(traces.Decision(string(resp.Decision)))
	c.logger.DebugContext(ctx, "login scored",
		"session_id", req.EventID,
		"decision", resp.Decision,
		"score", resp.Score,
		"confidence", resp.Confidence,
		"signals", resp.Signals,
	)
	return resp, nil
}

// AutoDecision scores one login and applies IsGoodLogin. It returns nil
// when the login may proceed and a *RejectionError when it must not.
// Anything else that goes wrong is logged and the login is allowed.
func (c *Client) AutoDecision(ctx context.Context, user *User, authCtx *AuthContext, opts ...Option) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "panic during decision, allowing login", "panic", r)
			err = nil
		}
	}()

	resp, err := c.Decision(ctx, user, authCtx, opts...)
	if err != nil {
		c.logger.ErrorContext(ctx, "decision failed, allowing login", "error", err)
		return nil
	}
	if !IsGoodLogin(resp) {
		c.logger.InfoContext(ctx, "login rejected",
			"decision", resp.Decision,
			"score", resp.Score,
			"signals", resp.Signals,
		)
		return NewRejectionError(resp)
	}
	return nil
}

// AutoDecisionCallback runs AutoDecision and hands the result to cb, exactly
// once, together with the unchanged user and context.
func (c *Client) AutoDecisionCallback(ctx context.Context, user *User, authCtx *AuthContext, cb Callback, opts ...Option) {
	err := c.AutoDecision(ctx, user, authCtx, opts...)
	cb(err, user, authCtx)
}

func (c *Client) buildRequest(ctx context.Context, user *User, authCtx *AuthContext, overrides *Overrides) (*ScoringRequest, error) {
	if authCtx != nil {
		if _, ok := MapAuthenticationType(authCtx.Protocol); !ok {
			c.logger.WarnContext(ctx, "no authentication type for protocol",
				"protocol", authCtx.Protocol,
				"session_id", authCtx.SessionID,
			)
			authTypeUnmappedTotal.WithLabelValues(protocolLabel(authCtx.Protocol)).Inc()
		}
		if authCtx.SessionID == "" {
			c.logger.WarnContext(ctx, "empty session id, scoring anyway")
		}
	}
	if user != nil && user.UserID == "" {
		c.logger.WarnContext(ctx, "empty user id, scoring anyway")
	}
	return BuildRequest(c.apiKey, user, authCtx, overrides, c.now())
}

func (c *Client) send(ctx context.Context, sr *ScoringRequest) (*ScoringResponse, *TransportError) {
	payload, err := json.Marshal(sr)
	if err != nil {
		return nil, &TransportError{Reason: ReasonTransport, Err: fmt.Errorf("marshal request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Reason: ReasonTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.auth.UserName, c.auth.Password)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	decisionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &TransportError{Reason: failureReason(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{
			Reason:     failureReason(err),
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Err:        fmt.Errorf("read response: %w", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Reason:     ReasonStatus,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
		}
	}

	var out ScoringResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &TransportError{
			Reason:     ReasonDecode,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
			Err:        err,
		}
	}
	return &out, nil
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonTimeout
	}
	return ReasonTransport
}

// decisionLabel keeps the results metric bounded.
func decisionLabel(d Decision) string {
	switch d {
	case DecisionAllow, DecisionReview, DecisionReject:
		return string(d)
	default:
		return "unknown"
	}
}

func protocolLabel(p Protocol) string {
	switch p {
	case ProtocolDelegation, ProtocolRedirectCallback:
		return string(p)
	case "":
		return "empty"
	default:
		return "other"
	}
}
