package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	cacheApp "github.com/pulsecrm/pulse/cache/application"
	cacheRepo "github.com/pulsecrm/pulse/cache/repository"
	"github.com/pulsecrm/pulse/core/config"
	"github.com/pulsecrm/pulse/core/database"
	crmApp "github.com/pulsecrm/pulse/crm/application"
	crmRepo "github.com/pulsecrm/pulse/crm/repository"
	"github.com/pulsecrm/pulse/infrastructure/valkey"
	"github.com/pulsecrm/pulse/pkg/jobworker"
	"github.com/pulsecrm/pulse/pkg/metrics"
	"github.com/pulsecrm/pulse/pkg/utils"
	reliabilityApp "github.com/pulsecrm/pulse/reliability/application"
)

var (
	appCtx    context.Context
	appCancel context.CancelFunc

	serverID string

	// Infrastructure
	db       *gorm.DB
	vkClient *valkey.Client

	// Shared services
	collector    *metrics.Collector
	cacheService *cacheApp.Service
	monitor      *reliabilityApp.Monitor
	workerPool   *jobworker.Pool

	// CRM services
	leadService      *crmApp.LeadService
	workflowService  *crmApp.WorkflowService
	dashboardService *crmApp.DashboardService

	// Flag overrides, applied after config load
	flagPort      string
	flagDebug     bool
	flagBasicAuth string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse CRM API server",
	Long: `Pulse is a multi-tenant CRM and marketing automation API with a tiered
response cache, distributed rate limiting and built-in reliability monitoring.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initApp)
}

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagBasicAuth,
		"basic-auth", "b",
		"",
		"basic auth credential | -b=yourUsername:yourPassword",
	)
}

func initApp() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("[APP] Failed to load configuration: %v", err)
	}

	// Flags win over environment
	if flagPort != "" {
		cfg.App.Port = flagPort
	}
	if flagDebug || viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}
	if flagBasicAuth != "" {
		cfg.App.BasicAuth = strings.Split(flagBasicAuth, ",")
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := os.MkdirAll(cfg.Paths.Storages, 0o755); err != nil {
		logrus.Errorln("[APP] Failed to create storage directory:", err)
	}

	appCtx, appCancel = context.WithCancel(context.Background())

	serverID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)
	logrus.Infof("[APP] Server identity: %s", serverID)

	db, err = database.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[APP] Failed to connect database: %v", err)
	}

	collector = metrics.NewCollector()

	// Valkey is optional. Without it the cache degrades to a no-op and rate
	// limits become per-process, but the API keeps serving.
	if cfg.Valkey.Enabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Valkey.Address,
			Password:  cfg.Valkey.Password,
			DB:        cfg.Valkey.DB,
			KeyPrefix: cfg.Valkey.KeyPrefix,
		})
		if err != nil {
			logrus.Warnf("[APP] Valkey unavailable, continuing without shared state: %v", err)
			vkClient = nil
		}
	}

	var cacheStore *cacheRepo.ValkeyStore
	if vkClient != nil {
		cacheStore = cacheRepo.NewValkeyStore(vkClient)
	}
	if cacheStore != nil {
		cacheService = cacheApp.NewService(cfg.Cache, cacheStore, collector)
	} else {
		cacheService = cacheApp.NewService(cfg.Cache, nil, collector)
	}

	monitor = reliabilityApp.NewMonitor(database.NewGormProber(db))
	monitor.StartPeriodicChecks(appCtx, cfg.Health.CheckInterval)

	collector.StartPeriodicLogging(appCtx, cfg.Metrics.LogInterval)

	workerPool = jobworker.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	workerPool.OnJobDone = collector.RecordJobExecution
	workerPool.Start(appCtx)

	leadRepo := crmRepo.NewGormLeadRepository(db, collector)
	if err := leadRepo.AutoMigrate(); err != nil {
		logrus.Fatalf("[APP] Failed to migrate leads table: %v", err)
	}
	workflowRepo := crmRepo.NewGormWorkflowRepository(db, collector)
	if err := workflowRepo.AutoMigrate(); err != nil {
		logrus.Fatalf("[APP] Failed to migrate workflows table: %v", err)
	}

	leadService = crmApp.NewLeadService(leadRepo, cacheService)
	workflowService = crmApp.NewWorkflowService(workflowRepo, workerPool, cacheService)
	dashboardService = crmApp.NewDashboardService(leadRepo, workflowRepo, cacheService)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of background workers and connections.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if appCancel != nil {
		appCancel()
	}

	if workerPool != nil {
		workerPool.Stop()
	}

	if vkClient != nil {
		vkClient.Close()
	}

	if sqlDB, err := database.GetSQLDB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.Errorf("[APP] Error closing database: %v", err)
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
