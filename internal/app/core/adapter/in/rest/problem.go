package rest

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// ProblemDetails RFC 9457 錯誤回應，額外帶機器可讀的 code 與時間戳
type ProblemDetails struct {
	Type      string    `json:"type,omitempty"`
	Title     string    `json:"title"`
	Status    int       `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	Instance  string    `json:"instance,omitempty"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	Errors    any       `json:"errors,omitempty"`
}

// FieldError 單一欄位的驗證錯誤
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

const problemContentType = "application/problem+json"

const internalDetail = "an internal error occurred, please try again later"

// problemJSON 寫出 application/problem+json 回應
func problemJSON(c *fiber.Ctx, status int, code, detail string, extra any) error {
	pd := ProblemDetails{
		Type:      "about:blank",
		Title:     utils.StatusMessage(status),
		Status:    status,
		Detail:    detail,
		Instance:  c.Path(),
		Code:      code,
		Timestamp: time.Now().UTC(),
		Errors:    extra,
	}
	return c.Status(status).JSON(pd, problemContentType)
}

// StatusFor 將 domain 錯誤對應到 HTTP 狀態碼
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrAccountExists):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTransactionType),
		errors.Is(err, domain.ErrInvalidAccountNumber):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrLockTimeout):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError 5xx 不回傳內部細節
func writeError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	detail := err.Error()
	switch {
	case status == fiber.StatusServiceUnavailable:
		detail = "the account is busy, please retry"
		c.Set(fiber.HeaderRetryAfter, "1")
	case status >= fiber.StatusInternalServerError:
		detail = internalDetail
	}
	return problemJSON(c, status, domain.Code(err), detail, nil)
}

// validationProblem 400 + 欄位錯誤清單
func validationProblem(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return problemJSON(c, fiber.StatusBadRequest, domain.CodeValidationFailed, err.Error(), nil)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Namespace(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return problemJSON(c, fiber.StatusBadRequest, domain.CodeValidationFailed, "request validation failed", fields)
}

// errorHandler 處理 fiber 自身的錯誤 (404 路由、405、body 過大) 與未預期的錯誤
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := domain.CodeInternal
		if fe.Code < fiber.StatusInternalServerError {
			code = strings.ToUpper(strings.ReplaceAll(utils.StatusMessage(fe.Code), " ", "_"))
		}
		return problemJSON(c, fe.Code, code, fe.Message, nil)
	}
	return writeError(c, err)
}
