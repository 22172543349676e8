// Command simulate runs the full pipeline for n posts with delivery
// disabled (dry-run), exercising ranking, dedup and ledger recording.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"promobot/internal/app"
)

func main() {
	var (
		cfgPath string
		n       int
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.IntVar(&n, "n", 5, "number of posts to simulate")
	flag.Parse()

	a, err := app.New(cfgPath, app.Options{DryRun: true, NoScheduler: true})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	posted := a.Simulate(ctx, n)
	_ = a.Stop(context.Background())

	fmt.Printf("simulation done, posted %d offers\n", posted)
}
