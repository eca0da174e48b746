package main

import (
	"context"
	"log"
	"os"

	"github.com/ben/grant-pursuit/internal/ai"
	"github.com/ben/grant-pursuit/internal/api"
	"github.com/ben/grant-pursuit/internal/auth"
	"github.com/ben/grant-pursuit/internal/db"
	"github.com/ben/grant-pursuit/internal/kv"
	"github.com/ben/grant-pursuit/internal/pursuit"
	"github.com/ben/grant-pursuit/internal/search"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	ctx := context.Background()

	var backing kv.Store
	var authService *auth.Service
	if os.Getenv("DATABASE_URL") != "" {
		pool, err := db.Connect(ctx)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		if err := db.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}

		backing = kv.NewPostgres(pool)
		authService = auth.NewService(pool)
	} else {
		log.Print("DATABASE_URL is not set; running with in-memory storage")
		backing = kv.NewMemory()
	}

	registry, err := search.LoadRegistry(os.Getenv("SOURCES_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}
	adapters, err := search.BuildAdapters(registry)
	if err != nil {
		log.Fatalf("Failed to build source adapters: %v", err)
	}
	searcher := search.NewSearcher(adapters...)

	pursuits := pursuit.New(backing)
	if err := pursuits.Load(ctx); err != nil {
		log.Fatalf("Failed to load pursuit state: %v", err)
	}
	defer func() {
		if err := pursuits.Flush(context.Background()); err != nil {
			log.Printf("Final pursuit flush failed: %v", err)
		}
	}()

	dispatcher := ai.NewDispatcher(backing)

	srv := api.NewServer(searcher, pursuits, dispatcher, authService, backing)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(":" + port); err != nil {
		log.Fatal(err)
	}
}
