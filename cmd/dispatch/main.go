package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/events"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/lease"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/presence"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/repository"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/service"
	transport "github.com/NakshatraNamahaCreations/novus-dispatch/internal/transport/http"
	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/config"
	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/db"
	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/metrics"
	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/mq"
	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/obs"
)

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	cfg := must(config.Load())

	shutdownTracer := obs.InitTracer("dispatch")
	m := metrics.NewDispatch()

	// DB + migrations
	gdb := db.Open(cfg.PGDispatchDSN)
	orderRepo := repository.NewOrderRepo(gdb)
	slotRepo := repository.NewSlotRepo(gdb)
	rejectionRepo := repository.NewRejectionRepo(gdb, cfg.RejectionTTL)
	earningsRepo := repository.NewEarningsRepo(gdb)
	slotLease := lease.NewPostgresLease(gdb)
	must(0, orderRepo.Migrate())
	must(0, slotRepo.Migrate())
	must(0, rejectionRepo.Migrate())
	must(0, slotLease.Migrate())

	// Bus
	pub := must(mq.NewPublisher(cfg.RabbitURL, cfg.DispatchExchange))
	defer pub.Close()

	dir := presence.NewDirectory(cfg.PresenceTTL)
	cache := service.NewPendingCache()
	presenceSync := service.NewPresenceSync(dir, pub)

	dispatchSvc := service.NewDispatchSvc(orderRepo, rejectionRepo, dir, pub, cache,
		cfg.DefaultRadiusKm, cfg.BroadcastCategories, m)
	acceptSvc := service.NewAcceptSvc(orderRepo, pub, cache, m)
	rejectSvc := service.NewRejectSvc(orderRepo, rejectionRepo, pub)
	slotSvc := service.NewSlotSvc(slotLease, slotRepo, cfg.LeaseTTL, cfg.LeaseWait,
		cfg.DefaultSlotCapacity, m)

	// Per-node fan-in: drop locally cached pending orders when another node
	// assigns them.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assignedCons := must(mq.NewConsumer(cfg.RabbitURL, cfg.DispatchExchange, "", []string{events.KeyOrderAssigned}))
	defer assignedCons.Close()
	must(0, service.NewAssignedConsumer(assignedCons, cache).Run(ctx))
	log.Println("[dispatch] assigned consumer started")

	// Per-node fan-in: mirror every node's presence upserts so candidate
	// discovery sees agents connected elsewhere.
	presCons := must(mq.NewConsumer(cfg.RabbitURL, cfg.DispatchExchange, "", []string{events.KeyPresenceAll}))
	defer presCons.Close()
	must(0, service.NewPresenceConsumer(presCons, dir).Run(ctx))
	log.Println("[dispatch] presence consumer started")

	h := transport.NewHandler(dispatchSvc, acceptSvc, rejectSvc, slotSvc, presenceSync, dir, orderRepo, earningsRepo)
	r := transport.NewRouter(h, cfg.JWTSecret, m)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Println("[dispatch] http listening on", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = shutdownTracer(shutdownCtx)
	log.Println("[dispatch] stopped")
}
