package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/codesweep/codesweep/internal/config"
	"github.com/codesweep/codesweep/internal/pipeline"
	"github.com/codesweep/codesweep/internal/store"
	"github.com/codesweep/codesweep/pkg/cache"
	"github.com/codesweep/codesweep/pkg/db"
	"github.com/codesweep/codesweep/pkg/mq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	conn, err := db.Open(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	queue, err := mq.Connect(cfg.AMQPURL)
	if err != nil {
		log.Fatalf("connect queue: %v", err)
	}
	defer queue.Close()

	st := store.NewGormStore(conn)
	tracker := pipeline.NewTracker(st, cache.NewProgressCache(cfg.RedisAddr))
	runner := pipeline.NewRunner(st, tracker, cfg.BatchSize, cfg.FileDelay)
	orch := pipeline.NewOrchestrator(st, tracker, runner, pipeline.NewAggregator(st), pipeline.DefaultSpans())

	msgs, err := queue.Consume(cfg.WorkerCount * 2)
	if err != nil {
		log.Fatalf("consume queue: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs := make(chan amqp.Delivery, cfg.WorkerCount)
	for w := 1; w <= cfg.WorkerCount; w++ {
		go worker(ctx, w, jobs, orch)
	}

	log.Printf("scan-worker started with %d workers", cfg.WorkerCount)

	for {
		select {
		case <-ctx.Done():
			log.Println("scan-worker shutting down")
			return
		case d, ok := <-msgs:
			if !ok {
				log.Println("queue channel closed")
				return
			}
			jobs <- d
		}
	}
}

// worker runs scans one at a time. Within a scan, files and phases are
// strictly sequential; concurrency exists only across scans.
func worker(ctx context.Context, id int, jobs <-chan amqp.Delivery, orch *pipeline.Orchestrator) {
	for d := range jobs {
		scanID, err := mq.ParseScanID(d.Body)
		if err != nil {
			log.Printf("[worker-%d] dropping message: %v", id, err)
			d.Nack(false, false)
			continue
		}

		log.Printf("[worker-%d] running scan %d", id, scanID)
		orch.Run(ctx, scanID)
		d.Ack(false)
	}
}
