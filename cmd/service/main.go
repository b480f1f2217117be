package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"setlist-service/internal/notify"
	"setlist-service/internal/reconcile"
	"setlist-service/internal/setlist"
	"setlist-service/internal/vote"
)

func main() {
	cfg := loadConfigFromEnv()
	if len(cfg.JWTSecret) == 0 {
		log.Fatal("setlist-service: JWT_SECRET is empty, cannot start without identity validation")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("setlist-service: pg: %v", err)
	}
	defer pool.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := setlist.AutoMigrate(migrateCtx, pool); err != nil {
		cancel()
		log.Fatalf("setlist-service: migrate: %v", err)
	}
	cancel()

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("setlist-service: redis: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	notifier := notify.NewNotifier(rdb, 3*time.Second)

	hub := notify.NewHub()
	go hub.Run()
	notifySrv := notify.NewServer(hub, rdb, ctx)
	go notifySrv.RunRedisSubscriber()

	ledger := setlist.NewLedger(pool)
	guard := setlist.NewGuard(pool)
	seeder := setlist.NewSeeder(pool, ledger, cfg.SeedSongCount)
	importer := setlist.NewImportClient(cfg.ImportURL, cfg.ImportTimeout)
	setlistSvc := setlist.NewService(pool, ledger, guard, seeder, importer, notifier)
	setlistSrv := setlist.NewServer(setlistSvc)

	voteStore := vote.NewPostgresStore(pool)
	voteSrv := vote.NewServer(voteStore, notifier)
	voteSrv.NetScore = cfg.NetScoreVoting

	buf := reconcile.NewBuffer(rdb, cfg.AnonBufferMax, cfg.AnonBufferTTL)
	reconciler := reconcile.NewReconciler(buf, voteStore, ledger, guard, rdb, cfg.AnonBufferTTL)
	reconcileSrv := reconcile.NewServer(buf, reconciler)

	r := chi.NewRouter()
	r.Use(requestLogMiddleware)
	r.Use(bodySizeLimitMiddleware(1 << 20))
	r.Use(identityMiddleware(cfg.JWTSecret))

	r.Mount("/", setlistSrv.Router())
	r.Mount("/votes", voteSrv.Router())
	r.Mount("/sync", reconcileSrv.Router())
	r.Mount("/live", notifySrv.Router())

	log.Printf("setlist-service on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("setlist-service: listen: %v", err)
	}
}
