package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"rbac-rag-api/internal/config"
	"rbac-rag-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	b, cleanup, err := wire.InitializeBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize bootstrap: %v", err)
	}
	defer cleanup()

	// 1. 建表
	if err := b.Postgres.AutoMigrate(ctx); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	fmt.Println("Database schema is up to date.")

	// 2. 首个管理员；密码必须由环境变量提供
	adminUsername := os.Getenv("BOOTSTRAP_ADMIN_USERNAME")
	if adminUsername == "" {
		adminUsername = "admin"
	}
	adminPassword := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
	if adminPassword == "" {
		log.Fatalf("BOOTSTRAP_ADMIN_PASSWORD is required")
	}

	created, err := b.Accounts.EnsureAdmin(ctx, adminUsername, adminPassword)
	if err != nil {
		log.Fatalf("failed to create admin user: %v", err)
	}
	if created {
		fmt.Printf("Admin user %s created.\n", adminUsername)
	} else {
		fmt.Printf("Admin user %s already exists.\n", adminUsername)
	}

	// 3. 向量集合与索引
	if err := b.Chunks.EnsureChunkCollection(ctx); err != nil {
		log.Fatalf("failed to ensure vector collection: %v", err)
	}
	fmt.Println("Vector collection is ready.")

	fmt.Println("Bootstrap completed successfully.")
}
