package grpc

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"pastorcare/backend/internal/auth"
	"pastorcare/backend/internal/domain"
)

func TestIdempotencyKey_ReadsHeadersAndTrims(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "  abc  "))
	if got := idempotencyKey(ctx); got != "abc" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "abc")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-idempotency-key", "xyz"))
	if got := idempotencyKey(ctx); got != "xyz" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "xyz")
	}

	if got := idempotencyKey(context.Background()); got != "" {
		t.Fatalf("idempotencyKey without metadata = %q, want empty", got)
	}
}

func TestDefaultRequestTimeout_SetsDeadlineWhenMissing(t *testing.T) {
	interceptor := DefaultRequestTimeout(time.Second)
	info := &grpc.UnaryServerInfo{FullMethod: fullMethod("GetAppointment")}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatalf("handler context has no deadline")
		}
		if remaining := time.Until(deadline); remaining > time.Second || remaining <= 0 {
			t.Fatalf("deadline in %v, want within 1s", remaining)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
}

func TestDefaultRequestTimeout_KeepsClientDeadline(t *testing.T) {
	interceptor := DefaultRequestTimeout(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := ctx.Deadline()

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		got, _ := ctx.Deadline()
		if !got.Equal(want) {
			t.Fatalf("deadline = %v, want %v", got, want)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	v := auth.NewVerifier("test-secret", "pastorcare")
	tok, err := v.Issue(domain.Actor{ID: "m1", Role: domain.RoleMember}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	interceptor := Authenticate(v)
	info := &grpc.UnaryServerInfo{FullMethod: fullMethod("ListAppointments")}

	t.Run("valid token", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+tok))
		_, err := interceptor(ctx, nil, info, func(ctx context.Context, req any) (any, error) {
			actor, ok := auth.ActorFrom(ctx)
			if !ok || actor.ID != "m1" || actor.Role != domain.RoleMember {
				t.Fatalf("actor = %+v (ok=%v), want m1 member", actor, ok)
			}
			return nil, nil
		})
		if err != nil {
			t.Fatalf("interceptor: %v", err)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
			t.Fatalf("handler must not run")
			return nil, nil
		})
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("code = %v, want %v", status.Code(err), codes.Unauthenticated)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nope"))
		_, err := interceptor(ctx, nil, info, func(ctx context.Context, req any) (any, error) {
			t.Fatalf("handler must not run")
			return nil, nil
		})
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("code = %v, want %v", status.Code(err), codes.Unauthenticated)
		}
	})

	t.Run("health is exempt", func(t *testing.T) {
		called := false
		_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, func(ctx context.Context, req any) (any, error) {
			called = true
			return nil, nil
		})
		if err != nil || !called {
			t.Fatalf("health call: err=%v called=%v", err, called)
		}
	})
}
