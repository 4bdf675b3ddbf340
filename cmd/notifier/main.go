// cmd/notifier/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclient "courier-notifier/internal/common/aws"
	"courier-notifier/internal/common/camunda"
	"courier-notifier/internal/common/config"
	"courier-notifier/internal/common/database"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/common/observability"
	"courier-notifier/internal/common/rabbitmq"
	"courier-notifier/internal/notification/catalog"
	"courier-notifier/internal/notification/dedup"
	"courier-notifier/internal/notification/delivery"
	"courier-notifier/internal/notification/inbox"
	"courier-notifier/internal/notification/notifier"
	"courier-notifier/internal/notification/rules"
	"courier-notifier/internal/notification/scheduler"
	"courier-notifier/internal/notification/store"
	"courier-notifier/internal/orders"

	gn "courier-notifier/internal/workers/notification/get-notification"
	ne "courier-notifier/internal/workers/notification/notify-event"
	uns "courier-notifier/internal/workers/notification/update-notification-schedule"
	unt "courier-notifier/internal/workers/notification/update-notification-template"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting notifier...")

	obs := observability.New(cfg.App.Name, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown(context.Background())

	ctx := context.Background()

	location, err := time.LoadLocation(cfg.Scheduler.Location)
	if err != nil {
		zapLog.Fatal("invalid scheduler location", zap.Error(err))
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Delivery audit ---
	var audit delivery.AuditSink = delivery.NopAudit{}
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		audit = delivery.NewElasticAudit(esClient, cfg.Database.Elasticsearch.AuditIndex, logger.ForComponent(log, "audit"))
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Outbound channels ---
	channels, closeChannels := buildChannels(ctx, cfg, log, zapLog)
	defer closeChannels()

	// --- Notification core ---
	templates := catalog.New(pg.DB, rdb.Client, catalog.Options{
		CacheTTL:        cfg.Notifications.TemplateCacheTTL,
		DefaultLanguage: cfg.Notifications.DefaultLanguage,
	}, logger.ForComponent(log, "catalog"))
	notifications := store.New(pg.DB)
	orderRepo := orders.NewRepository(pg.DB)

	emitter := delivery.NewEmitter(templates, notifications, logger.ForComponent(log, "delivery"),
		delivery.WithChannels(channels...),
		delivery.WithAudit(audit),
	)

	n := notifier.New(notifier.Deps{
		Rules: rules.Build(cfg.Rules, orderRepo, rules.Options{
			CourierPhones: cfg.Notifications.CourierPhones,
			Location:      location,
		}),
		Gate:          dedup.NewGate(notifications),
		Emitter:       emitter,
		Orders:        orderRepo,
		Telemetry:     obs,
		CourierPhones: cfg.Notifications.CourierPhones,
		Location:      location,
	}, logger.ForComponent(log, "notifier"))

	userInbox := inbox.New(orderRepo, notifications, templates, logger.ForComponent(log, "inbox"))

	sched := scheduler.New(templates, n, scheduler.Options{
		PoolSize: cfg.Scheduler.PoolSize,
		Location: location,
	}, logger.ForComponent(log, "scheduler"))
	if err := sched.Start(ctx); err != nil {
		zapLog.Fatal("scheduler start failed", zap.Error(err))
	}
	zapLog.Info("Scheduler armed", zap.Int("schedules", len(sched.Armed())))

	// --- Zeebe workers ---
	var workers []*camunda.CamundaWorker
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		eventHandler, err := ne.NewHandler(ne.HandlerOptions{AppConfig: cfg, Notifier: n, Logger: log})
		if err != nil {
			zapLog.Fatal("failed to create notify-event handler", zap.Error(err))
		}
		scheduleHandler, err := uns.NewHandler(uns.HandlerOptions{AppConfig: cfg, Store: templates, Scheduler: sched, Logger: log})
		if err != nil {
			zapLog.Fatal("failed to create update-notification-schedule handler", zap.Error(err))
		}
		templateHandler, err := unt.NewHandler(unt.HandlerOptions{AppConfig: cfg, Store: templates, Logger: log})
		if err != nil {
			zapLog.Fatal("failed to create update-notification-template handler", zap.Error(err))
		}
		inboxHandler, err := gn.NewHandler(gn.HandlerOptions{AppConfig: cfg, Inbox: userInbox, Logger: log})
		if err != nil {
			zapLog.Fatal("failed to create get-notification handler", zap.Error(err))
		}

		for _, h := range []workerHandler{eventHandler, scheduleHandler, templateHandler, inboxHandler} {
			if !h.IsEnabled() {
				zapLog.Info("worker disabled", zap.String("taskType", h.GetTaskType()))
				continue
			}
			wcfg := config.GetWorkerConfig(cfg, h.GetTaskType())
			workers = append(workers, camunda.NewWorker(
				zeebe.GetClient(),
				h.GetTaskType(),
				wcfg.MaxJobsActive,
				&instrumentedHandler{handler: h, obs: obs},
				log,
			))
		}
	}

	// --- Ops server ---
	srv := &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: opsMux(pg, rdb, zeebe, sched)}
	go func() {
		zapLog.Info("Ops server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("ops server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if zeebe != nil {
		_ = zeebe.Close()
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		zapLog.Warn("scheduler did not drain before deadline", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("ops server shutdown", zap.Error(err))
	}

	zapLog.Info("Notifier stopped")
}

// buildChannels returns the enabled outbound channels and a closer for the
// broker connection they share.
func buildChannels(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) ([]delivery.Channel, func()) {
	var channels []delivery.Channel
	closer := func() {}

	if cfg.Channels.Telegram.Enabled || cfg.Channels.Viber.Enabled {
		var publisher rabbitmq.Publisher
		err := retryWithBackoff(func() error {
			var err error
			publisher, err = rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger.ForComponent(log, "rabbitmq"))
			return err
		}, 10, 2*time.Second, zapLog, "RabbitMQ connection")
		if err != nil {
			zapLog.Fatal("rabbitmq failed after retries", zap.Error(err))
		}
		closer = func() { _ = publisher.Close() }

		if cfg.Channels.Telegram.Enabled {
			channels = append(channels, delivery.NewTelegramChannel(publisher, cfg.Channels.Telegram.RoutingKey, cfg.RabbitMQ.Producer))
		}
		if cfg.Channels.Viber.Enabled {
			channels = append(channels, delivery.NewViberChannel(publisher, cfg.Channels.Viber.RoutingKey, cfg.RabbitMQ.Producer))
		}
		zapLog.Info("RabbitMQ connected successfully")
	}

	if cfg.Channels.Email.Enabled || cfg.Channels.SMS.Enabled {
		awsCfg, err := awsclient.LoadConfig(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config load failed", zap.Error(err))
		}
		if cfg.Channels.Email.Enabled {
			channels = append(channels, delivery.NewEmailChannel(
				awsclient.NewSESClient(awsCfg),
				cfg.Integrations.AWS.SES.FromEmail,
				cfg.Channels.Email.Subject,
			))
		}
		if cfg.Channels.SMS.Enabled {
			channels = append(channels, delivery.NewSMSChannel(
				awsclient.NewSNSClient(awsCfg),
				cfg.Integrations.AWS.SNS.DefaultSMSSenderID,
			))
		}
	}

	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	zapLog.Info("Delivery channels configured", zap.Strings("channels", names))

	return channels, closer
}

type workerHandler interface {
	Handle(client worker.JobClient, job entities.Job)
	GetTaskType() string
	IsEnabled() bool
}

// instrumentedHandler records every handled job on the OTel job counter.
type instrumentedHandler struct {
	handler workerHandler
	obs     *observability.Observability
}

func (h *instrumentedHandler) Handle(client worker.JobClient, job entities.Job) {
	h.handler.Handle(client, job)
	h.obs.RecordJobProcessed(context.Background(), h.handler.GetTaskType(), "handled")
}

func opsMux(pg *database.PostgresClient, rdb *database.RedisClient, zeebe *camunda.Client, sched *scheduler.Scheduler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"postgres": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := pg.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if zeebe != nil {
			checks["zeebe"] = "ok"
			if err := zeebe.HealthCheck(ctx); err != nil {
				checks["zeebe"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, map[string]interface{}{"checks": checks})
	})

	mux.HandleFunc("/schedules", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sched.Armed())
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
