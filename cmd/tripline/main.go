package main

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/tripline-dev/tripline/db"
	"github.com/tripline-dev/tripline/internal/auth"
	"github.com/tripline-dev/tripline/internal/handlers"
	"github.com/tripline-dev/tripline/internal/router"
	"github.com/tripline-dev/tripline/internal/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	if err := auth.InitJWTSecret(); err != nil {
		log.Fatalf("Failed to initialize JWT secret: %v", err)
	}

	if err := db.ConnectDatabase(os.Getenv("DATABASE_URL")); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	poolSize := workers.DefaultSize

	if raw := os.Getenv("CHAT_WORKERS"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			log.Fatalf("Invalid CHAT_WORKERS value: %q", raw)
		}
		poolSize = size
	}

	pool := workers.NewPool(poolSize)
	defer pool.Shutdown()

	handlers.InitChat(pool)

	r := router.NewRouter()

	var port string

	if port = os.Getenv("PORT"); port == "" {
		port = "3000"
		log.Println("PORT not set, defaulting to 3000")
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
