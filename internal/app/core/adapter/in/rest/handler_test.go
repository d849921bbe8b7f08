package rest_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/rest"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store, err := memory.NewStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := prometheus.NewRegistry()
	core := usecase.NewCoreUseCase(store, usecase.WithMetrics(metrics.New(reg)))
	usecase.NewInitializer(store, nil).SeedAll(context.Background(), []usecase.SeedAccount{
		{Number: "1001-1", InitialBalance: decimal.RequireFromString("1000.00")},
		{Number: "1002-2", InitialBalance: decimal.RequireFromString("500.00")},
	})
	return rest.NewApp(core, rest.Options{Gatherer: reg})
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers ...string) (int, []byte, map[string]string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	h := map[string]string{}
	for k := range resp.Header {
		h[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, data, h
}

func balanceOf(t *testing.T, app *fiber.App, number string) string {
	t.Helper()
	status, data, _ := do(t, app, fiber.MethodGet, "/accounts/"+number+"/balance", "")
	require.Equal(t, fiber.StatusOK, status, string(data))
	var out rest.BalanceResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return out.Balance
}

func problemOf(t *testing.T, data []byte) rest.ProblemDetails {
	t.Helper()
	var pd rest.ProblemDetails
	require.NoError(t, json.Unmarshal(data, &pd), string(data))
	return pd
}

func TestPerformTransactions_Success(t *testing.T) {
	app := newTestApp(t)

	status, data, headers := do(t, app, fiber.MethodPost, "/accounts/transactions",
		`[{"accountNumber":"1001-1","amount":100,"kind":"CREDIT"},{"accountNumber":"1001-1","amount":"50","kind":"debit"}]`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, data)
	assert.NotEmpty(t, headers[rest.HeaderBatchID])
	assert.Equal(t, "1050.00", balanceOf(t, app, "1001-1"))
}

func TestPerformTransactions_EmptyBody(t *testing.T) {
	app := newTestApp(t)

	status, _, _ := do(t, app, fiber.MethodPost, "/accounts/transactions", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _, _ = do(t, app, fiber.MethodPost, "/accounts/transactions", "[]")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "1000.00", balanceOf(t, app, "1001-1"))
}

func TestPerformTransactions_InsufficientFundsRollsBack(t *testing.T) {
	app := newTestApp(t)

	status, data, _ := do(t, app, fiber.MethodPost, "/accounts/transactions",
		`[{"accountNumber":"1001-1","amount":10,"kind":"DEBIT"},{"accountNumber":"1002-2","amount":600,"kind":"DEBIT"}]`)

	assert.Equal(t, fiber.StatusConflict, status)
	pd := problemOf(t, data)
	assert.Equal(t, "INSUFFICIENT_FUNDS", pd.Code)
	assert.Equal(t, fiber.StatusConflict, pd.Status)
	assert.Equal(t, "/accounts/transactions", pd.Instance)
	assert.False(t, pd.Timestamp.IsZero())
	assert.Equal(t, "1000.00", balanceOf(t, app, "1001-1"))
	assert.Equal(t, "500.00", balanceOf(t, app, "1002-2"))
}

func TestPerformTransactions_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown account", `[{"accountNumber":"9999-9","amount":10,"kind":"CREDIT"}]`, fiber.StatusNotFound, "ACCOUNT_NOT_FOUND"},
		{"negative amount", `[{"accountNumber":"1001-1","amount":-5,"kind":"CREDIT"}]`, fiber.StatusBadRequest, "INVALID_AMOUNT"},
		{"zero amount", `[{"accountNumber":"1001-1","amount":0,"kind":"CREDIT"}]`, fiber.StatusBadRequest, "INVALID_AMOUNT"},
		{"unknown kind", `[{"accountNumber":"1001-1","amount":5,"kind":"TRANSFER"}]`, fiber.StatusBadRequest, "INVALID_TRANSACTION_TYPE"},
		{"missing amount", `[{"accountNumber":"1001-1","kind":"CREDIT"}]`, fiber.StatusBadRequest, "VALIDATION_FAILED"},
		{"missing account", `[{"amount":5,"kind":"CREDIT"}]`, fiber.StatusBadRequest, "VALIDATION_FAILED"},
		{"malformed json", `[{"accountNumber":`, fiber.StatusBadRequest, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			status, data, headers := do(t, app, fiber.MethodPost, "/accounts/transactions", tt.body)
			assert.Equal(t, tt.status, status, string(data))
			assert.Equal(t, "application/problem+json", headers["Content-Type"])
			assert.Equal(t, tt.code, problemOf(t, data).Code)
			assert.Equal(t, "1000.00", balanceOf(t, app, "1001-1"))
		})
	}
}

func TestPerformTransactions_ValidationListsFields(t *testing.T) {
	app := newTestApp(t)

	_, data, _ := do(t, app, fiber.MethodPost, "/accounts/transactions", `[{"accountNumber":"1001-1","kind":"CREDIT"}]`)

	var pd struct {
		Errors []rest.FieldError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(data, &pd))
	require.Len(t, pd.Errors, 1)
	assert.Contains(t, pd.Errors[0].Field, "amount")
	assert.Equal(t, "required", pd.Errors[0].Rule)
}

func TestPerformTransactions_IdempotencyKey(t *testing.T) {
	app := newTestApp(t)
	body := `[{"accountNumber":"1001-1","amount":25,"kind":"DEBIT"}]`

	status, _, headers := do(t, app, fiber.MethodPost, "/accounts/transactions", body, rest.HeaderIdempotencyKey, "order-42")
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, headers[rest.HeaderReplayed])

	status, _, headers = do(t, app, fiber.MethodPost, "/accounts/transactions", body, rest.HeaderIdempotencyKey, "order-42")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "true", headers[rest.HeaderReplayed])

	assert.Equal(t, "975.00", balanceOf(t, app, "1001-1"))
}

func TestPerformTransactions_ConcurrentDebits(t *testing.T) {
	app := newTestApp(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(fiber.MethodPost, "/accounts/transactions",
				strings.NewReader(`[{"accountNumber":"1001-1","amount":10,"kind":"DEBIT"}]`))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req, -1)
			if assert.NoError(t, err) {
				assert.Equal(t, fiber.StatusOK, resp.StatusCode)
				_ = resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, "800.00", balanceOf(t, app, "1001-1"))
}

func TestGetBalance_NotFound(t *testing.T) {
	app := newTestApp(t)

	status, data, _ := do(t, app, fiber.MethodGet, "/accounts/0000-0/balance", "")

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", problemOf(t, data).Code)
}

func TestCreateAccount(t *testing.T) {
	app := newTestApp(t)

	status, data, _ := do(t, app, fiber.MethodPost, "/accounts", `{"accountNumber":"2001-1","initialBalance":"12.5"}`)
	require.Equal(t, fiber.StatusCreated, status, string(data))
	assert.Equal(t, "12.50", balanceOf(t, app, "2001-1"))

	status, data, _ = do(t, app, fiber.MethodPost, "/accounts", `{"accountNumber":"2001-1"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "ACCOUNT_EXISTS", problemOf(t, data).Code)

	status, _, _ = do(t, app, fiber.MethodPost, "/accounts", `{"initialBalance":1}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	status, _, _ := do(t, app, fiber.MethodGet, "/healthz", "")
	assert.Equal(t, fiber.StatusOK, status)

	do(t, app, fiber.MethodPost, "/accounts/transactions", `[{"accountNumber":"1001-1","amount":1,"kind":"CREDIT"}]`)
	status, data, _ := do(t, app, fiber.MethodGet, "/metrics", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(data), "ledger_batches_total")
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)

	status, data, _ := do(t, app, fiber.MethodGet, "/nope", "")

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, fiber.StatusNotFound, problemOf(t, data).Status)
}
