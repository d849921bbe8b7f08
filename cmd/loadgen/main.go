package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/grpcpool"
)

// loadgen 對同一帳戶送出大量並發扣款，檢查最終餘額沒有 lost update
func main() {
	target := flag.String("target", "localhost:50051", "ledger gRPC address")
	account := flag.String("account", "1001-1", "account to hammer")
	total := flag.Int("n", 10000, "number of batches")
	concurrency := flag.Int("c", 100, "concurrent in-flight batches")
	amount := flag.String("amount", "0.01", "debit amount per batch")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	log := logger.Setup(logger.Config{Level: "info", Prefix: "[loadgen]"})

	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		log.Error("invalid amount", slog.Any("error", err))
		os.Exit(1)
	}

	pool := grpcpool.New(grpcpool.WithDialOptions(
		grpc.WithDefaultCallOptions(grpc.WaitForReady(true)),
	))
	defer pool.Close()
	conn, err := pool.Get(*target)
	if err != nil {
		log.Error("connect", slog.Any("error", err))
		os.Exit(1)
	}
	client := grpc_adapter.NewLedgerClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	before, err := client.GetBalance(ctx, *account)
	if err != nil {
		log.Error("read balance", slog.Any("error", err))
		os.Exit(1)
	}

	var (
		wg           sync.WaitGroup
		ok, rejected atomic.Int64
		failed       atomic.Int64
	)
	sem := make(chan struct{}, *concurrency)
	start := time.Now()

	for i := 0; i < *total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := client.PerformTransactions(ctx, uuid.NewString(), []domain.TransactionRequest{
				{AccountNumber: *account, Amount: amt, Kind: domain.TransactionKindDebit},
			})
			switch {
			case err == nil:
				ok.Add(1)
			case status.Code(err) == codes.FailedPrecondition:
				rejected.Add(1)
			default:
				failed.Add(1)
				if idx%1000 == 0 {
					log.Warn("batch failed", slog.Int("idx", idx), slog.Any("error", err))
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	after, err := client.GetBalance(ctx, *account)
	if err != nil {
		log.Error("read balance", slog.Any("error", err))
		os.Exit(1)
	}
	expected := before.Sub(amt.Mul(decimal.NewFromInt(ok.Load())))

	fmt.Printf("completed %d batches in %v (%.2f batches/s)\n", *total, elapsed, float64(*total)/elapsed.Seconds())
	fmt.Printf("applied=%d rejected=%d failed=%d\n", ok.Load(), rejected.Load(), failed.Load())
	fmt.Printf("balance before=%s after=%s expected=%s\n", before, after, expected)
	if !after.Equal(expected) {
		log.Error("balance mismatch")
		os.Exit(2)
	}
}
