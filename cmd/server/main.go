package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/conquian-game/server/internal/cache"
	"github.com/conquian-game/server/internal/handlers"
	"github.com/conquian-game/server/internal/registry"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// The engine runs fine without Redis; only the action history is lost.
	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("Redis unavailable, action history disabled: %v", err)
		cache.Rdb = nil
	}

	idleTimeout := time.Duration(getEnvInt("ROOM_IDLE_TIMEOUT_SEC", 600)) * time.Second
	reg := registry.NewStore(idleTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reg.RunReaper(ctx, time.Minute)

	srv := handlers.NewRoomServer(reg)

	mux := http.NewServeMux()
	mux.Handle("/ws", http.HandlerFunc(handlers.RoomWSHandler(logger, srv)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
