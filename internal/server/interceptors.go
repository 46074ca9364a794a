package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// healthMethodPrefix covers the load balancer's health checks, which arrive
// every few seconds and are logged at debug level.
const healthMethodPrefix = "/grpc.health.v1.Health/"

// unaryInterceptor returns the interceptor every unary call on the gate
// server goes through. A panicking handler is turned into codes.Internal.
// Each call is logged once with its status code, caller, and the service it
// asked about.
func unaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered in gRPC handler",
					"method", info.FullMethod,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
				resp, err = nil, status.Error(codes.Internal, "internal server error")
			}
			logCall(ctx, logger, info.FullMethod, req, time.Since(start), err)
		}()
		return handler(ctx, req)
	}
}

func logCall(ctx context.Context, logger *slog.Logger, method string, req any, d time.Duration, err error) {
	code := status.Code(err)
	attrs := []any{"method", method, "code", code.String(), "duration", d}
	if r, ok := req.(interface{ GetService() string }); ok && r.GetService() != "" {
		attrs = append(attrs, "service", r.GetService())
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		attrs = append(attrs, "peer", p.Addr.String())
	}

	level := slog.LevelInfo
	switch code {
	case codes.OK:
		if strings.HasPrefix(method, healthMethodPrefix) {
			level = slog.LevelDebug
		}
	case codes.Internal, codes.Unknown, codes.DataLoss:
		level = slog.LevelError
		attrs = append(attrs, "error", err)
	default:
		level = slog.LevelWarn
		attrs = append(attrs, "error", err)
	}
	logger.Log(ctx, level, "rpc completed", attrs...)
}
