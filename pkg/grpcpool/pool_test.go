package grpcpool_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/JoeShih716/go-bank-ledger/pkg/grpcpool"
)

func TestGetReusesConnection(t *testing.T) {
	p := grpcpool.New()
	defer p.Close()

	a, err := p.Get("localhost:50051")
	require.NoError(t, err)
	b, err := p.Get("localhost:50051")
	require.NoError(t, err)
	c, err := p.Get("localhost:50052")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, p.Len())
}

func TestGetReplacesClosedConnection(t *testing.T) {
	p := grpcpool.New(grpcpool.WithKeepalive(30*time.Second, 2*time.Second))
	defer p.Close()

	first, err := p.Get("localhost:50051")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := p.Get("localhost:50051")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, p.Len())
}

func TestGetConcurrent(t *testing.T) {
	p := grpcpool.New(grpcpool.WithInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(ctx, method, req, reply, cc, opts...)
	}))
	defer p.Close()

	var wg sync.WaitGroup
	conns := make([]*grpc.ClientConn, 32)
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := p.Get("localhost:50051")
			assert.NoError(t, err)
			conns[i] = conn
		}(i)
	}
	wg.Wait()

	for _, c := range conns[1:] {
		assert.Same(t, conns[0], c)
	}
}

func TestClose(t *testing.T) {
	p := grpcpool.New()
	_, err := p.Get("localhost:50051")
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.Equal(t, 0, p.Len())
}

func TestWithDialOptionsAppliedToNewConnections(t *testing.T) {
	var used []string
	p := grpcpool.New(grpcpool.WithDialOptions(
		grpc.WithDefaultCallOptions(grpc.WaitForReady(false)),
		grpc.WithChainUnaryInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			used = append(used, method)
			return context.Canceled
		}),
	))
	defer p.Close()

	conn, err := p.Get("localhost:50051")
	require.NoError(t, err)

	err = conn.Invoke(context.Background(), "/ledger.v1.LedgerService/GetBalance", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"/ledger.v1.LedgerService/GetBalance"}, used)
}
