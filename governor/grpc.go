// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package governor

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/go-core-stack/governor/auth"
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/rate"
)

// grpc code equivalent of the governance status codes
func grpcCode(err error) codes.Code {
	switch errors.GetErrCode(err) {
	case errors.Unauthorized:
		return codes.Unauthenticated
	case errors.Forbidden:
		return codes.PermissionDenied
	case errors.ResourceExhausted:
		return codes.ResourceExhausted
	}
	return codes.Internal
}

func grpcRequestIDFrom(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if vals := md.Get(grpcRequestID); len(vals) != 0 && validRequestID(vals[0]) {
			return vals[0]
		}
	}
	return uuid.NewString()
}

func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

func rateLimitMetadata(res *rate.Result) metadata.MD {
	return metadata.Pairs(
		grpcRateLimitLimit, strconv.Itoa(res.Limit),
		grpcRateLimitRemaining, strconv.Itoa(res.Remaining),
		grpcRateLimitReset, strconv.FormatInt(res.ResetAt.UnixMilli(), 10),
	)
}

// invokeUnary runs handler, a panic is logged and reported as an
// internal failure
func invokeUnary(ctx context.Context, log *zap.Logger, req any, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("handler panicked", zap.Any("panic", p), zap.Stack("stack"))
			resp = nil
			err = errors.Wrapf(errors.Unknown, "handler panicked: %v", p)
		}
	}()
	return handler(ctx, req)
}

// UnaryServerInterceptor applies the pipeline of Handle to unary grpc
// calls. The policy is picked by full method name, fallback applies to
// methods missing from routes. Rate limit bookkeeping travels in the
// response header metadata.
func (g *Governor) UnaryServerInterceptor(routes map[string]RouteConfig, fallback RouteConfig) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		cfg, ok := routes[info.FullMethod]
		if !ok {
			cfg = fallback
		}
		if cfg.Name == "" {
			cfg.Name = info.FullMethod
		}

		start := time.Now()
		reqID := grpcRequestIDFrom(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(grpcRequestID, reqID))
		log := g.logger.With(
			zap.String("route", cfg.Name),
			zap.String("requestId", reqID),
		)
		defer func() {
			g.metrics.ObserveRequest(cfg.Name, status.Code(err).String(), time.Since(start))
		}()

		var session *auth.Session
		if cfg.RequireAuth || cfg.RequireTenant || cfg.RateLimit != nil {
			session, err = g.resolver.ResolveIncoming(ctx)
		}
		if err != nil {
			session = nil
			if !errors.IsUnauthorized(err) {
				log.Error("failed to resolve session", zap.Error(err))
				return nil, status.Error(codes.Internal, msgInternal)
			}
			if cfg.RequireAuth {
				log.Debug("rejecting unauthenticated call", zap.Error(err))
				return nil, status.Error(codes.Unauthenticated, msgUnauthenticated)
			}
			err = nil
		}
		tc := session.TenantContext()

		if cfg.RequireTenant {
			if _, terr := tc.RequireTenant(); terr != nil {
				return nil, status.Error(codes.PermissionDenied, msgTenantRequired)
			}
		}

		if cfg.RateLimit != nil {
			id := rateLimitID(session, peerIP(ctx))
			res, lerr := g.limiter.Check(ctx, id, *cfg.RateLimit)
			if lerr != nil {
				log.Error("rate limit check failed", zap.String("limitId", id), zap.Error(lerr))
				return nil, status.Error(codes.Internal, msgInternal)
			}
			md := rateLimitMetadata(res)
			if !res.Allowed {
				g.metrics.ObserveRateLimited(cfg.Name)
				g.sampler.Do(func() {
					log.Warn("rate limit exceeded", zap.String("limitId", id), zap.Int("limit", res.Limit))
				})
				md.Set(grpcRetryAfter, strconv.FormatInt(res.RetryAfterSeconds(g.now()), 10))
				_ = grpc.SetHeader(ctx, md)
				return nil, status.Error(codes.ResourceExhausted, msgRateLimited)
			}
			_ = grpc.SetHeader(ctx, md)
		}

		if session != nil {
			ctx = auth.NewContext(ctx, session)
		}
		resp, err = invokeUnary(ctx, log, req, handler)
		if err != nil {
			if _, ok := status.FromError(err); ok && errors.GetErrCode(err) == errors.Unknown {
				// already a grpc status produced by the service
				return nil, err
			}
			code := grpcCode(err)
			if code == codes.Internal {
				log.Error("call failed", zap.Error(err))
			}
			return nil, status.Error(code, publicMessage(err))
		}
		return resp, nil
	}
}
