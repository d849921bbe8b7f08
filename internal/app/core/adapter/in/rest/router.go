package rest

import (
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// Options HTTP 伺服器選項
type Options struct {
	Logger       *slog.Logger
	Gatherer     prometheus.Gatherer
	AccessLog    io.Writer
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewApp 建立掛好路由的 fiber app
func NewApp(ledger usecase.Ledger, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "bank-ledger",
		DisableStartupMessage: true,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	if opts.AccessLog != nil {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
			Output: opts.AccessLog,
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	h := NewHandler(ledger, opts.Logger)
	accounts := app.Group("/accounts")
	accounts.Post("/transactions", h.PerformTransactions)
	accounts.Post("/", h.CreateAccount)
	accounts.Get("/:accountNumber/balance", h.GetBalance)

	return app
}
