// Command postnow runs one immediate best-effort publish attempt and exits.
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
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.Parse()

	a, err := app.New(cfgPath, app.Options{NoScheduler: true})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	offer, ok := a.PostNow(ctx)
	_ = a.Stop(context.Background())

	if !ok {
		fmt.Println("no offer published")
		os.Exit(1)
	}
	fmt.Println("published:", offer.ProductID)
}
