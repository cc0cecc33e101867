package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDMetadataKey = "x-request-id"

// loggingInterceptor logs one line per unary call. Payloads are never logged.
func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	args := []any{
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"latency", time.Since(start),
	}
	if id := requestID(ctx); id != "" {
		args = append(args, "request_id", id)
	}

	if err != nil && status.Code(err) != codes.NotFound {
		s.logger.Warn(ctx, "rpc failed", append(args, "error", err.Error())...)
	} else {
		s.logger.Info(ctx, "rpc", args...)
	}

	return resp, err
}

func (s *GRPCServer) recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(ctx, "panic", "method", info.FullMethod, "error", p)
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

func requestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(requestIDMetadataKey); len(values) > 0 {
		return values[0]
	}
	return ""
}
