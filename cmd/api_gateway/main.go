// cmd/api_gateway serves the WebSocket fan-out and REST API on top of the
// indicator engine's Redis output: live bar/indicator pub/sub, historical
// reads from the Redis streams, and the active indicator configuration.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ta-enginev1/internal/gateway"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	_ = godotenv.Load()
	processStart := time.Now()

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	gatewayAddr := getEnv("GATEWAY_ADDR", ":8080")
	symbols := parseSymbols(os.Getenv("SYMBOLS"))

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("[gateway] redis unreachable at %s: %v", redisAddr, err)
	}
	pingCancel()
	log.Printf("[gateway] ✅ connected to Redis at %s", redisAddr)

	hub := gateway.NewHub(rdb, symbols)
	go hub.Run(ctx)
	go hub.StartMetricsBroadcast(ctx, processStart)

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, rdb, processStart)

	srv := &http.Server{Addr: gatewayAddr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[gateway] listening on %s (symbols: %v)", gatewayAddr, symbols)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[gateway] server error: %v", err)
	}
	log.Println("[gateway] shutdown complete")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
