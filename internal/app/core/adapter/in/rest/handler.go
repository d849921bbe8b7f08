package rest

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

const (
	// HeaderIdempotencyKey 客戶端提供的批次參考值
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderReplayed 批次已被套用過時回傳 true
	HeaderReplayed = "Idempotent-Replayed"
	// HeaderBatchID 本次提交的批次 ID
	HeaderBatchID = "X-Batch-Id"
)

// Handler 帳務 HTTP handler
type Handler struct {
	ledger   usecase.Ledger
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(ledger usecase.Ledger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{ledger: ledger, validate: v, logger: logger}
}

// PerformTransactions POST /accounts/transactions
//
// 空 body 或空陣列視為無事可做，直接回 200
func (h *Handler) PerformTransactions(c *fiber.Ctx) error {
	if len(bytes.TrimSpace(c.Body())) == 0 {
		return c.SendStatus(fiber.StatusOK)
	}
	var body []TransactionDTO
	if err := c.BodyParser(&body); err != nil {
		return problemJSON(c, fiber.StatusBadRequest, domain.CodeValidationFailed, "malformed request body", nil)
	}
	if err := h.validate.Var(body, "dive"); err != nil {
		return validationProblem(c, err)
	}

	txs := make([]domain.TransactionRequest, 0, len(body))
	for _, dto := range body {
		txs = append(txs, dto.toDomain())
	}
	batch := domain.NewBatch(c.Get(HeaderIdempotencyKey), txs)

	res, err := h.ledger.PerformBatch(c.UserContext(), batch)
	if err != nil {
		return writeError(c, err)
	}
	if res.Replayed {
		c.Set(HeaderReplayed, "true")
	} else if res.Applied > 0 {
		c.Set(HeaderBatchID, res.BatchID.String())
	}
	return c.SendStatus(fiber.StatusOK)
}

// GetBalance GET /accounts/:accountNumber/balance
func (h *Handler) GetBalance(c *fiber.Ctx) error {
	acc, err := h.ledger.GetBalance(c.UserContext(), c.Params("accountNumber"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(newBalanceResponse(acc))
}

// CreateAccount POST /accounts
func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	var body CreateAccountDTO
	if err := c.BodyParser(&body); err != nil {
		return problemJSON(c, fiber.StatusBadRequest, domain.CodeValidationFailed, "malformed request body", nil)
	}
	if err := h.validate.Struct(body); err != nil {
		return validationProblem(c, err)
	}
	initial := decimal.Zero
	if body.InitialBalance != nil {
		initial = *body.InitialBalance
	}
	acc, err := h.ledger.CreateAccount(c.UserContext(), body.AccountNumber, initial)
	if err != nil {
		return writeError(c, err)
	}
	h.logger.Info("account opened", "account", acc.Number, "balance", acc.Balance.String())
	return c.Status(fiber.StatusCreated).JSON(newBalanceResponse(acc))
}
