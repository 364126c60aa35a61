package main

import (
	"context"
	"log"

	"cc-intelligence-be/internal/bootstrap"
	"cc-intelligence-be/internal/config"
	"cc-intelligence-be/internal/model"
	"cc-intelligence-be/internal/server"
	"cc-intelligence-be/internal/tracer"
	"cc-intelligence-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (optional, falls back to in-memory sessions)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		if err := db.AutoMigrate(&model.ResearchSessionRecord{}, &model.SessionAuxRecord{}); err != nil {
			log.Panicf("Unable to migrate session tables: %v", err)
		}
		gormDB = db
	} else {
		log.Println("[WARN] DB_CONNECTION_STRING not set, sessions are kept in memory only")
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Consumer Service...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
