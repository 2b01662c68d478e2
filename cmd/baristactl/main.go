package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"coffeehouse/internal/app"
	"coffeehouse/internal/auth"
	"coffeehouse/internal/config"
	"coffeehouse/internal/handler"
	"coffeehouse/internal/live"
	"coffeehouse/internal/logging"
)

func main() {
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := auth.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.LoadConfig()
	log := logging.NewWithWriter(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	rdb, err := app.OpenRedis(ctx, cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open redis: %v\n", err)
		os.Exit(1)
	}

	// Changes made here reach the web dashboards through the Redis bridge.
	var pub live.Publisher
	if rdb != nil {
		defer rdb.Close()
		hub := live.NewHub()
		go hub.Run(ctx)
		pub = live.NewBridge(rdb, hub, live.DefaultChannel, log)
	}

	svc, err := app.NewService(cfg, store, rdb, pub, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build service: %v\n", err)
		os.Exit(1)
	}
	loc, _ := cfg.Location()

	fmt.Println("FX7 Coffee House barista console. Type 'help' for commands.")
	if err := handler.New(svc, os.Stdout, loc).Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		os.Exit(1)
	}
}
