// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package governor

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	xrate "golang.org/x/time/rate"

	"github.com/go-core-stack/governor/auth"
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/metrics"
	"github.com/go-core-stack/governor/rate"
)

// SessionResolver resolves the caller of http requests and grpc calls
type SessionResolver interface {
	ResolveRequest(r *http.Request) (*auth.Session, error)
	ResolveIncoming(ctx context.Context) (*auth.Session, error)
}

// RouteConfig is the governance policy of one route
type RouteConfig struct {
	// route label used in logs and metrics
	Name string

	// budget of the route, nil disables rate limiting, zero fields
	// take the defaults
	RateLimit *rate.Config

	// respond 401 when the caller can not be resolved
	RequireAuth bool

	// respond 403 when the caller has neither tenant nor privilege
	RequireTenant bool
}

// HandlerFunc is the route logic run once the request passed the
// pipeline, a returned error is turned into the error response
type HandlerFunc func(w http.ResponseWriter, r *http.Request, tc auth.TenantContext) error

// Governor composes session resolution, tenant presence, rate limiting
// and error handling into one request pipeline
type Governor struct {
	resolver SessionResolver
	limiter  rate.Limiter
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	// samples rate limit warnings so floods do not flood the logs
	sampler xrate.Sometimes
}

// Option customizes a Governor
type Option func(*Governor)

func WithLogger(logger *zap.Logger) Option {
	return func(g *Governor) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Governor) {
		g.metrics = m
	}
}

// WithClock replaces the clock used for Retry-After, used by tests
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		g.now = now
	}
}

func New(resolver SessionResolver, limiter rate.Limiter, opts ...Option) (*Governor, error) {
	if resolver == nil {
		return nil, errors.Wrap(errors.InvalidArgument, "session resolver is required")
	}
	if limiter == nil {
		return nil, errors.Wrap(errors.InvalidArgument, "rate limiter is required")
	}
	g := &Governor{
		resolver: resolver,
		limiter:  limiter,
		now:      time.Now,
		sampler:  xrate.Sometimes{First: 10, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g, nil
}

// IsAllowed reports whether a caller may act on the requested tenant,
// privileged callers always may, others only on their own tenant
func IsAllowed(requested, caller string, privileged bool) bool {
	if privileged {
		return true
	}
	return caller != "" && requested == caller
}

// Authorize is IsAllowed for handlers receiving the tenant as an
// explicit parameter, it fails with Forbidden
func Authorize(tc auth.TenantContext, requested string) error {
	if !IsAllowed(requested, tc.TenantID, tc.Privileged) {
		return errors.Wrapf(errors.Forbidden, "cross tenant access to %q denied", requested)
	}
	return nil
}

// rateLimitID picks the identifier a request is counted against
func rateLimitID(s *auth.Session, remote string) string {
	switch {
	case s == nil:
		return anonymousPrefix + remote
	case s.TenantID != "":
		return s.TenantID
	case s.Privileged:
		return operatorPrefix + s.SubjectID
	}
	return subjectPrefix + s.SubjectID
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// validRequestID accepts ids of printable ascii up to maxRequestIDLen
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// requestID returns the id supplied by the client, or a fresh one when
// it is absent or unusable
func requestID(r *http.Request) string {
	if id := r.Header.Get(HeaderRequestID); validRequestID(id) {
		return id
	}
	return uuid.NewString()
}

// invoke runs h, a panic is logged and reported as an internal failure
func invoke(log *zap.Logger, h HandlerFunc, w http.ResponseWriter, r *http.Request, tc auth.TenantContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				panic(p)
			}
			log.Error("handler panicked", zap.Any("panic", p), zap.Stack("stack"))
			err = errors.Wrapf(errors.Unknown, "handler panicked: %v", p)
		}
	}()
	return h(w, r, tc)
}

// recorder keeps track of the status written by the handler
type recorder struct {
	http.ResponseWriter
	status int
}

func (w *recorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *recorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

// message of the error response, never the error detail
func publicMessage(err error) string {
	switch errors.GetErrCode(err) {
	case errors.Unauthorized:
		return msgUnauthenticated
	case errors.Forbidden:
		return msgForbidden
	case errors.ResourceExhausted:
		return msgRateLimited
	}
	return msgInternal
}

func setRateLimitHeaders(h http.Header, res *rate.Result) {
	h.Set(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
	h.Set(HeaderRateLimitReset, strconv.FormatInt(res.ResetAt.UnixMilli(), 10))
}

// Handle wraps h into the governance pipeline of cfg: authenticate,
// check tenant presence, rate limit, execute and respond
func (g *Governor) Handle(cfg RouteConfig, h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := requestID(r)
		w.Header().Set(HeaderRequestID, reqID)
		rec := &recorder{ResponseWriter: w}
		log := g.logger.With(
			zap.String("route", cfg.Name),
			zap.String("requestId", reqID),
		)
		defer func() {
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			g.metrics.ObserveRequest(cfg.Name, strconv.Itoa(status), time.Since(start))
		}()

		// authenticate, routes without any policy never touch the store
		var session *auth.Session
		var err error
		if cfg.RequireAuth || cfg.RequireTenant || cfg.RateLimit != nil {
			session, err = g.resolver.ResolveRequest(r)
		}
		if err != nil {
			session = nil
			if !errors.IsUnauthorized(err) {
				log.Error("failed to resolve session", zap.Error(err))
				writeError(rec, http.StatusInternalServerError, msgInternal)
				return
			}
			if cfg.RequireAuth {
				log.Debug("rejecting unauthenticated request", zap.Error(err))
				writeError(rec, http.StatusUnauthorized, msgUnauthenticated)
				return
			}
		}
		tc := session.TenantContext()
		if session != nil {
			log = log.With(zap.String("subject", session.SubjectID), zap.String("tenant", session.TenantID))
		}

		// tenant presence
		if cfg.RequireTenant {
			if _, err := tc.RequireTenant(); err != nil {
				log.Debug("rejecting request without tenant context")
				writeError(rec, http.StatusForbidden, msgTenantRequired)
				return
			}
		}

		// rate limit
		if cfg.RateLimit != nil {
			id := rateLimitID(session, clientIP(r))
			res, err := g.limiter.Check(r.Context(), id, *cfg.RateLimit)
			if err != nil {
				log.Error("rate limit check failed", zap.String("limitId", id), zap.Error(err))
				writeError(rec, http.StatusInternalServerError, msgInternal)
				return
			}
			setRateLimitHeaders(rec.Header(), res)
			if !res.Allowed {
				g.metrics.ObserveRateLimited(cfg.Name)
				g.sampler.Do(func() {
					log.Warn("rate limit exceeded", zap.String("limitId", id), zap.Int("limit", res.Limit))
				})
				rec.Header().Set(HeaderRetryAfter, strconv.FormatInt(res.RetryAfterSeconds(g.now()), 10))
				writeError(rec, http.StatusTooManyRequests, msgRateLimited)
				return
			}
		}

		// execute
		ctx := r.Context()
		if session != nil {
			ctx = auth.NewContext(ctx, session)
		}
		if err := invoke(log, h, rec, r.WithContext(ctx), tc); err != nil {
			status := errors.HTTPStatus(err)
			if status == http.StatusInternalServerError {
				log.Error("request failed", zap.Error(err))
			} else {
				log.Info("request denied", zap.Int("status", status), zap.Error(err))
			}
			if rec.status != 0 {
				// response already on its way, nothing more to send
				return
			}
			writeError(rec, status, publicMessage(err))
		}
	})
}
