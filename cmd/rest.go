package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pulsecrm/pulse/core/config"
	"github.com/pulsecrm/pulse/infrastructure/valkey"
	"github.com/pulsecrm/pulse/ui/rest"
	"github.com/pulsecrm/pulse/ui/rest/middleware"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the Pulse CRM API over http",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		Network:                 "tcp",
		AppName:                 "Pulse CRM Engine",
		ServerHeader:            "Hidden",
	}

	if len(config.Global.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = config.Global.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())

	origins := strings.Join(config.Global.App.CorsAllowedOrigins, ", ")
	if !strings.Contains(origins, config.Global.App.BaseUrl) {
		origins += ", " + config.Global.App.BaseUrl
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery(collector))

	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Coarse per-IP flood guard in front of the route-group limiters.
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if config.Global.App.Debug {
		app.Use(logger.New())
	}

	if len(config.Global.App.BasicAuth) == 0 {
		logrus.Fatalln("APP_BASIC_AUTH is required. Nothing should be public; please set APP_BASIC_AUTH=<user>:<secret>[,<user2>:<secret2>] and restart.")
	}

	account := make(map[string]string)
	for _, basicAuth := range config.Global.App.BasicAuth {
		ba := strings.Split(basicAuth, ":")
		if len(ba) != 2 {
			logrus.Fatalln("Basic auth is not valid, please this following format <user>:<secret>")
		}
		account[ba[0]] = ba[1]
	}

	var counterStore middleware.CounterStore
	if vkClient != nil {
		counterStore = valkey.NewCounter(vkClient)
	}
	limiters := middleware.NewRouteLimiters(appCtx, config.Global.RateLimit, counterStore)

	apiGroup := app.Group(config.Global.App.BasePath + "/api")

	// Auth limiter sits in front of credential verification so rejected
	// attempts are the ones that count against the budget.
	apiGroup.Use(limiters.Auth)
	apiGroup.Use(basicauth.New(basicauth.Config{
		Users: account,
		Next: func(c *fiber.Ctx) bool {
			// Allow CORS preflight without credentials.
			return c.Method() == fiber.MethodOptions
		},
	}))
	apiGroup.Use(limiters.General)
	apiGroup.Use(middleware.Reliability(monitor, collector, serverID))

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
		StopApp()
	}()

	rest.InitRestApp(apiGroup, serverID)
	rest.InitRestLead(apiGroup, leadService, limiters.BulkImport)
	rest.InitRestDashboard(apiGroup, dashboardService)
	rest.InitRestWorkflow(apiGroup, workflowService, limiters.WorkflowTrigger)
	rest.InitRestEmail(apiGroup, collector, limiters.EmailTrigger)
	rest.InitRestUpload(apiGroup, config.Global.Paths.Storages, limiters.Upload)
	rest.InitRestCache(apiGroup, cacheService)
	rest.InitRestHealth(apiGroup, monitor)
	rest.InitRestMetrics(apiGroup, collector)

	// 404 handler scoped to the API group
	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API Endpoint not found",
			"path":  c.Path(),
		})
	})

	if err := app.Listen(":" + config.Global.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}
}
