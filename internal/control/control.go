// Package control wires the application together and manages its lifecycle.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/triage/internal/audit"
	"github.com/vietddude/triage/internal/core/config"
	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/core/worker"
	"github.com/vietddude/triage/internal/health"
	"github.com/vietddude/triage/internal/infra/llm"
	"github.com/vietddude/triage/internal/infra/notify"
	redisclient "github.com/vietddude/triage/internal/infra/redis"
	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/infra/storage/memory"
	"github.com/vietddude/triage/internal/infra/storage/postgres"
	"github.com/vietddude/triage/internal/infra/ticket"
	"github.com/vietddude/triage/internal/workflow"
	"github.com/vietddude/triage/internal/workflow/steps"
)

// App is the composed application: storage, clients, engine, maintenance
// workers, and the health server.
type App struct {
	cfg *config.AppConfig

	db          *postgres.DB
	redisClient *redisclient.Client
	records     storage.RecordRepository

	sink   *audit.Sink
	engine *workflow.Engine
	pruner *worker.Pruner
	server *health.Server

	log *slog.Logger
}

// NewApp creates the application with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {
	log := slog.Default()
	app := &App{cfg: cfg, log: log}

	// 1. Storage
	var (
		records    storage.RecordRepository
		deliveries storage.DeliveryRepository
		queue      storage.DelayQueue
	)

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			return nil, err
		}
		records = postgres.NewRecordRepo(db)
		deliveries = postgres.NewDeliveryRepo(db)
		app.db = db
		log.Info("Using PostgreSQL storage")
	}

	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		queue = redisclient.NewDelayQueue(rc)
		if deliveries == nil {
			deliveries = redisclient.NewDeliveryStore(rc, 0)
		}
		app.redisClient = rc
		log.Info("Using Redis delay queue")
	}

	if records == nil || queue == nil || deliveries == nil {
		store := memory.NewStore()
		if records == nil {
			records = memory.NewRecordRepo(store)
			log.Info("Using Memory storage")
		}
		if deliveries == nil {
			deliveries = memory.NewDeliveryRepo(store)
		}
		if queue == nil {
			queue = memory.NewDelayQueue(store)
		}
	}
	app.records = records

	// 2. External service clients
	var llmOpts []llm.Option
	if cfg.Model.BaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.Model.BaseURL))
	}
	if cfg.Model.Model != "" {
		llmOpts = append(llmOpts, llm.WithModel(cfg.Model.Model))
	}
	analyzer := llm.NewClient(cfg.Model.APIKey, llmOpts...)

	tickets := ticket.NewClient(cfg.Ticket.Config)

	var notifier notify.Notifier
	switch cfg.Notify.Channel {
	case "slack":
		notifier = notify.NewSlack(cfg.Notify.SlackToken, cfg.Notify.SlackChannel)
	default:
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, 0)
	}

	// 3. Workflow
	app.sink = audit.NewSink(log, 0)
	runner := workflow.NewRunner(app.sink, log)

	graph := steps.BuildGraph(steps.Deps{
		Analyzer:   analyzer,
		Tickets:    tickets,
		Notifier:   notifier,
		Deliveries: deliveries,
		Audit:      app.sink,
		Retry: steps.RetryPolicies{
			Model:  cfg.Model.Retry,
			Ticket: cfg.Ticket.Retry,
			Notify: cfg.Notify.Retry,
		},
		Monitor: cfg.Monitor,
		Project: cfg.Ticket.Project,
	}, cfg.Workflow.ScoreThreshold)

	app.engine = workflow.NewEngine(graph, runner, records, queue, app.sink, log, workflow.Config{
		Workers:       cfg.Workflow.Workers,
		QueueSize:     cfg.Workflow.QueueSize,
		SweepInterval: cfg.Workflow.SweepInterval,
		Resume:        true,
	})

	// 4. Maintenance
	app.pruner = worker.NewPruner(records, cfg.Workflow.Retention, cfg.Workflow.PruneSchedule)

	// 5. Health server and intake endpoint
	checks := make(map[string]health.Checker)
	if app.db != nil {
		checks["database"] = app.db
	}
	if app.redisClient != nil {
		checks["redis"] = app.redisClient
	}
	app.server = health.NewServer(checks, cfg.Server.Port)
	app.server.HandleFunc("/feedback", app.handleFeedback)

	return app, nil
}

// Start launches the audit sink, engine, pruner, and health server.
func (a *App) Start(ctx context.Context) error {
	a.sink.Start(ctx)

	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	if err := a.pruner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pruner: %w", err)
	}

	go func() {
		if err := a.server.Start(); err != nil && err != http.ErrServerClosed {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	a.log.Info("triage service started", "port", a.cfg.Server.Port)
	return nil
}

// Stop shuts the application down. The engine drains once the root context
// passed to Start is cancelled; Stop waits for it.
func (a *App) Stop(ctx context.Context) error {
	a.engine.Wait()
	a.pruner.Stop()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}

	return a.server.Stop(ctx)
}

// Submit starts a workflow for one feedback item.
func (a *App) Submit(ctx context.Context, item domain.FeedbackItem) (string, error) {
	return a.engine.Submit(ctx, item)
}

// handleFeedback accepts one feedback item and starts its workflow.
func (a *App) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var item domain.FeedbackItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	id, err := a.engine.Submit(r.Context(), item)
	if err != nil {
		a.log.Error("failed to submit feedback", "error", err)
		http.Error(w, "submit failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"workflow_id": id})
}
