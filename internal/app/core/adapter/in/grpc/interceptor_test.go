package grpc

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRecoveryInterceptor(t *testing.T) {
	s := NewGrpcServer(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	info := &grpc.UnaryServerInfo{FullMethod: PerformTransactionsMethod}

	resp, err := s.recoveryInterceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})

	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestRecoveryInterceptorPassesThrough(t *testing.T) {
	s := NewGrpcServer(nil, nil)
	info := &grpc.UnaryServerInfo{FullMethod: GetBalanceMethod}

	resp, err := s.recoveryInterceptor(context.Background(), "req", info, func(_ context.Context, req any) (any, error) {
		return req, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "req", resp)
}
