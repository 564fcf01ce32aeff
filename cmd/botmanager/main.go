package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/heididzukai26/telegram-bot-manager/internal/api"
	"github.com/heididzukai26/telegram-bot-manager/internal/cache"
	"github.com/heididzukai26/telegram-bot-manager/internal/client"
	"github.com/heididzukai26/telegram-bot-manager/internal/config"
	"github.com/heididzukai26/telegram-bot-manager/internal/engine"
	"github.com/heididzukai26/telegram-bot-manager/internal/model"
	"github.com/heididzukai26/telegram-bot-manager/internal/repo"
	"github.com/heididzukai26/telegram-bot-manager/internal/routing"
	"github.com/heididzukai26/telegram-bot-manager/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		slog.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		slog.Error("failed to ping database", "err", err)
		os.Exit(1)
	}
	if err := repo.InitSchema(ctx, db); err != nil {
		slog.Error("failed to init schema", "err", err)
		os.Exit(1)
	}

	orderRepo := repo.NewPostgresOrderRepo(db)

	var receipts cache.ReceiptCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		receipts = cache.NewRedisReceiptCache(rdb, cfg.Redis.TTL)
	}

	mgr := engine.NewManager(engine.Config{
		Collector: engine.CollectorConfig(cfg.Collector),
		Delivery:  engine.DeliveryConfig(cfg.Delivery),
		Validator: engine.ValidatorConfig(cfg.Validator),
	})
	mgr.WithHooks(
		func(ctx context.Context, order model.Order) error {
			return orderRepo.UpsertOrder(ctx, order)
		},
		func(ctx context.Context, orderID, photoRef string) error {
			if receipts == nil {
				return nil
			}
			return receipts.StoreDelivered(ctx, orderID, photoRef, time.Now())
		},
	)

	tg := client.NewTelegramClient(cfg.Telegram.APIURL)
	send := func(ctx context.Context, chatID int64, photoRef string) error {
		_, err := tg.SendPhoto(ctx, chatID, photoRef)
		return err
	}

	routes := routing.NewTable()

	sched, err := scheduler.New(cfg.Sweep.Interval, newSweep(mgr, cfg.Sweep.BatchSize, cfg.Telegram.ResultChatID, send))
	if err != nil {
		slog.Error("failed to create scheduler", "err", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(mgr, sched, routes, tg.SendMessage)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(handler)),
	}

	slog.Info("bot manager starting",
		"addr", cfg.Server.Address,
		"sweep_interval", cfg.Sweep.Interval.String(),
		"redis", cfg.Redis.Enabled,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("bot manager stopped")
}

// newSweep builds the periodic delivery pass. An order is completed only when
// every photo went out; a partial delivery leaves it assigned so the next
// sweep retries the remainder.
func newSweep(mgr *engine.Manager, batchSize int, resultChatID int64, send engine.SendFunc) func(context.Context) {
	return func(ctx context.Context) {
		assigned := mgr.OrdersByStatus(model.Assigned)
		for i, order := range assigned {
			if i >= batchSize {
				return
			}
			if len(order.Photos) == 0 {
				continue
			}

			res, msg := mgr.DeliverPhotos(ctx, order.OrderID, resultChatID, send)
			slog.Info("sweep delivery",
				"order_id", order.OrderID,
				"delivered", res.Delivered,
				"failed", res.Failed,
				"result", msg,
			)
			if res.Complete() {
				if err := mgr.CompleteOrder(ctx, order.OrderID); err != nil {
					slog.Warn("failed to complete order", "order_id", order.OrderID, "err", err)
				}
			}
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
