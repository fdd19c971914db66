package grpc

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"pastorcare/backend/internal/auth"
	"pastorcare/backend/internal/transport/errmap"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

// DefaultRequestTimeout gives every call without a client deadline one of
// timeout.
func DefaultRequestTimeout(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// Authenticate resolves the "authorization" metadata into an actor. Health
// checks are exempt.
func Authenticate(v *auth.Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}
		actor, err := v.FromBearer(firstMetadata(ctx, "authorization"))
		if err != nil {
			cls := errmap.Classify(err)
			return nil, status.Error(cls.GRPCCode, cls.Message)
		}
		return handler(auth.WithActor(ctx, actor), req)
	}
}

func AccessLog(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("rpc completed",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func idempotencyKey(ctx context.Context) string {
	if key := firstMetadata(ctx, "idempotency-key"); key != "" {
		return key
	}
	return firstMetadata(ctx, "x-idempotency-key")
}
