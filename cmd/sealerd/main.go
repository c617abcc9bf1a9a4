// sealerd serves the anti-tamper sealing API over HTTP.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"

	seal "github.com/whosthedumbass/sealer"
	"github.com/whosthedumbass/sealer/internal/api"
	"github.com/whosthedumbass/sealer/internal/retry"
	"github.com/whosthedumbass/sealer/store"
	memorystore "github.com/whosthedumbass/sealer/store/memory"
	redisstore "github.com/whosthedumbass/sealer/store/redis"
	sqlitestore "github.com/whosthedumbass/sealer/store/sqlite"
	"github.com/whosthedumbass/sealer/turnstile"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// openLedger selects the nonce ledger backend: Redis when SEALERD_REDIS_ADDR
// is set, SQLite when SEALERD_SQLITE_PATH is set, in-memory otherwise.
func openLedger(ctx context.Context) (store.NonceLedger, error) {
	if addr := os.Getenv("SEALERD_REDIS_ADDR"); addr != "" {
		rc := goredis.NewClient(&goredis.Options{Addr: addr})
		b := retry.Backoff{Base: 250 * time.Millisecond, Growth: 2.0, Jitter: 0.5}
		if err := b.Do(ctx, 5, func() error { return rc.Ping(ctx).Err() }); err != nil {
			return nil, fmt.Errorf("redis at %s is not reachable: %w", addr, err)
		}
		return redisstore.New(rc, "nonce"), nil
	}
	if path := os.Getenv("SEALERD_SQLITE_PATH"); path != "" {
		db, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
		}
		return sqlitestore.New(db)
	}
	slog.Warn("No nonce store configured, using in-memory ledger (nonces will not survive restarts)")
	return memorystore.New(), nil
}

func main() {
	addr := getenv("SEALERD_ADDR", ":8080")

	ctx := context.Background()
	ledger, err := openLedger(ctx)
	if err != nil {
		slog.Error("Failed to open nonce ledger", "error", err)
		os.Exit(1)
	}

	var bots seal.BotVerifier
	if secret := os.Getenv("SEALERD_TURNSTILE_SECRET"); secret != "" {
		bots = turnstile.New(secret, nil)
	} else {
		slog.Warn("Turnstile secret not configured, bot verification disabled")
	}

	// A missing signing secret is fatal: better down than responding with
	// unsigned-looking results.
	svc, err := seal.NewService(ledger, []byte(os.Getenv("SEALERD_HMAC_SECRET")), bots, nil)
	if err != nil {
		slog.Error("Failed to initialize sealing service", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	api.NewRouter(svc).Register(mux)

	slog.Info("sealerd listening", "addr", addr)
	if err := http.ListenAndServe(addr, api.CORS(mux)); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
