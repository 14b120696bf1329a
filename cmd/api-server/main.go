package main

import (
	"log"

	"github.com/codesweep/codesweep/internal/config"
	"github.com/codesweep/codesweep/internal/server"
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

	srv := server.New(
		store.NewGormStore(conn),
		queue,
		cache.NewProgressCache(cfg.RedisAddr),
	)

	log.Printf("api-server listening on %s", cfg.ListenAddr)
	if err := srv.Router().Run(cfg.ListenAddr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
