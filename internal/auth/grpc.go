package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func identityFromMetadata(ctx context.Context, a *Authenticator) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, nil
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ctx, nil
	}
	id, err := a.Verify(BearerToken(vals[0]))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	return WithIdentity(ctx, id), nil
}

func UnaryServerInterceptor(a *Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := identityFromMetadata(ctx, a)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s identityStream) Context() context.Context { return s.ctx }

func StreamServerInterceptor(a *Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := identityFromMetadata(ss.Context(), a)
		if err != nil {
			return err
		}
		return handler(srv, identityStream{ServerStream: ss, ctx: ctx})
	}
}

// PerRPCToken attaches a bearer token to outgoing calls.
type PerRPCToken struct {
	Token    string
	Insecure bool
}

func (t PerRPCToken) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + t.Token}, nil
}

func (t PerRPCToken) RequireTransportSecurity() bool { return !t.Insecure }
