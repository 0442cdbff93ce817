package container

import (
	"context"
	"fmt"
	"log"

	"gobiodiv/adapters/diversity"
	"gobiodiv/adapters/postgres"
	"gobiodiv/adapters/rng"
	"gobiodiv/internal/analysis"
	"gobiodiv/internal/api"
	"gobiodiv/internal/config"
	"gobiodiv/internal/evenness"
	"gobiodiv/internal/metrics"
	"gobiodiv/internal/testkit"
	"gobiodiv/ports"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB       *sqlx.DB
	Registry *prometheus.Registry

	// Repositories (data access layer)
	ResultRepo ports.ResultRepository

	// Analysis components
	Engine  *analysis.Engine
	Metrics *metrics.RunMetrics
	SSEHub  *api.SSEHub
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
	}
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return c, nil
}

// InitWithDatabase stores results in Postgres
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db

	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.Registry.MustRegister(collectors.NewDBStatsCollector(db.DB, "gobiodiv"))
	c.ResultRepo = postgres.NewResultRepository(db)
	c.initAnalysis()

	log.Printf("Container initialized successfully with database connection")
	return nil
}

// InitInMemory keeps results in process memory for database-less runs
func (c *Container) InitInMemory() error {
	c.ResultRepo = testkit.NewInMemoryResultRepository()
	c.initAnalysis()

	log.Printf("Container initialized with in-memory result storage")
	return nil
}

func (c *Container) initAnalysis() {
	c.Metrics = metrics.NewRunMetrics(c.Registry)
	c.SSEHub = api.NewSSEHub()

	c.Engine = analysis.NewEngine(diversity.NewHurlbertRarefier(), diversity.NewChao1Estimator(), rng.NewSeededRNG())
	if c.Config.Analysis.Workers > 0 {
		c.Engine.SetWorkers(c.Config.Analysis.Workers)
	}
	if c.Config.Analysis.UnbiasedPIE {
		c.Engine.SetEvenness(evenness.NewCalculator(evenness.Options{Unbiased: true}))
	}
	c.Engine.SetObserver(analysis.Observers{c.Metrics, api.NewSSEEventBroadcaster(c.SSEHub)})

	log.Printf("Analysis engine initialized: workers=%d unbiased_pie=%t",
		c.Config.Analysis.Workers, c.Config.Analysis.UnbiasedPIE)
}

// AnalysisHandler builds the API handler over the container's components
func (c *Container) AnalysisHandler() *api.AnalysisHandler {
	return api.NewAnalysisHandler(c.Engine, c.ResultRepo, c.Metrics, c.Config.Analysis)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.SSEHub != nil {
		c.SSEHub.Stop()
	}

	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
