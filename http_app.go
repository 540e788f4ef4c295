package slimexpress

import (
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-router"
)

// HTTPOptions configures the fiber application
type HTTPOptions struct {
	AppName      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
	AllowOrigins string
	RateLimitMax int
	RateLimitTTL time.Duration
	AccessLog    io.Writer
	Debug        bool
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.AppName == "" {
		o.AppName = "slim-express"
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.BodyLimit <= 0 {
		o.BodyLimit = 1 << 20
	}
	if o.AllowOrigins == "" {
		o.AllowOrigins = "*"
	}
	if o.RateLimitTTL <= 0 {
		o.RateLimitTTL = time.Minute
	}
	return o
}

// NewHTTPApp builds the router server over fiber with the shared middleware
// stack and mounts the controller routes.
func NewHTTPApp(opts HTTPOptions, ctrl *Controller) router.Server[*fiber.App] {
	opts = opts.withDefaults()

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               opts.AppName,
			ErrorHandler:          NewErrorHandler(ctrl.Logger, opts.Debug),
			ReadTimeout:           opts.ReadTimeout,
			WriteTimeout:          opts.WriteTimeout,
			BodyLimit:             opts.BodyLimit,
			DisableStartupMessage: true,
		})

		app.Use(recover.New(recover.Config{EnableStackTrace: opts.Debug}))
		app.Use(requestid.New())

		if opts.AccessLog != nil {
			app.Use(fiberlogger.New(fiberlogger.Config{
				Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
				Output: opts.AccessLog,
			}))
		}

		app.Use(cors.New(cors.Config{
			AllowOrigins: opts.AllowOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
			AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		}))

		if opts.RateLimitMax > 0 {
			app.Use("/auth", limiter.New(limiter.Config{
				Max:        opts.RateLimitMax,
				Expiration: opts.RateLimitTTL,
				LimitReached: func(c *fiber.Ctx) error {
					return ErrRateLimited
				},
			}))
		}

		return app
	})

	srv.Router().WithLogger(ctrl.logger())

	RegisterRoutes(srv.Router(), ctrl)

	return srv
}

// StdoutAccessLog is the access log writer used outside of tests
func StdoutAccessLog() io.Writer {
	return os.Stdout
}
