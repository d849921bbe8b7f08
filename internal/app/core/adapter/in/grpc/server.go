package grpc

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// TrailerErrorCode 失敗時於 trailer 回傳 domain 錯誤代碼
const TrailerErrorCode = "ledger-error-code"

type GrpcServer struct {
	core   usecase.Ledger
	logger *slog.Logger
}

func NewGrpcServer(core usecase.Ledger, logger *slog.Logger) *GrpcServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrpcServer{core: core, logger: logger}
}

// NewServer 建立 grpc.Server，註冊帳務服務與 health，reflection 為選用
func NewServer(core usecase.Ledger, logger *slog.Logger, withReflection bool, opts ...grpc.ServerOption) *grpc.Server {
	srv := NewGrpcServer(core, logger)
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(srv.loggingInterceptor, srv.recoveryInterceptor)}, opts...)
	s := grpc.NewServer(opts...)
	RegisterLedgerServiceServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	if withReflection {
		reflection.Register(s)
	}
	return s
}

func (s *GrpcServer) PerformTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	// 1. 解析請求
	batch, err := decodeBatch(req)
	if err != nil {
		return nil, s.statusError(ctx, err, codes.InvalidArgument, domain.CodeValidationFailed)
	}

	// 2. 執行批次
	res, err := s.core.PerformBatch(ctx, batch)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encodeResult(res), nil
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	acc, err := s.core.GetBalance(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encodeAccount(acc), nil
}

func (s *GrpcServer) CreateAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	initial := decimal.Zero
	if v, ok := f[fieldInitialBalance]; ok {
		d, err := decodeAmount(v)
		if err != nil {
			return nil, s.statusError(ctx, err, codes.InvalidArgument, domain.CodeValidationFailed)
		}
		initial = d
	}
	acc, err := s.core.CreateAccount(ctx, f[fieldAccountNumber].GetStringValue(), initial)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encodeAccount(acc), nil
}

// CodeFor 將 domain 錯誤對應到 gRPC status code
func CodeFor(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrAccountExists):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTransactionType),
		errors.Is(err, domain.ErrInvalidAccountNumber):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrLockTimeout):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func (s *GrpcServer) toStatus(ctx context.Context, err error) error {
	return s.statusError(ctx, err, CodeFor(err), domain.Code(err))
}

func (s *GrpcServer) statusError(ctx context.Context, err error, code codes.Code, errCode string) error {
	_ = grpc.SetTrailer(ctx, metadata.Pairs(TrailerErrorCode, errCode))
	msg := err.Error()
	if code == codes.Internal {
		msg = "internal error"
	}
	return status.Error(code, msg)
}

func (s *GrpcServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	attrs := []any{
		slog.String("method", info.FullMethod),
		slog.String("code", code.String()),
		slog.Duration("latency", time.Since(start)),
	}
	switch code {
	case codes.OK:
		s.logger.DebugContext(ctx, "grpc call", attrs...)
	case codes.Internal, codes.Unavailable:
		s.logger.ErrorContext(ctx, "grpc call failed", append(attrs, slog.Any("error", err))...)
	default:
		s.logger.InfoContext(ctx, "grpc call rejected", append(attrs, slog.Any("error", err))...)
	}
	return resp, err
}

// recoveryInterceptor 將 handler 的 panic 轉成 codes.Internal，避免整個程序結束
func (s *GrpcServer) recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "panic in grpc handler",
				slog.String("method", info.FullMethod),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
