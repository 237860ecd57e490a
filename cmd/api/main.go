package main

import (
	"log"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/avelichko/fundsops/internal/api"
	"github.com/avelichko/fundsops/internal/config"
	"github.com/avelichko/fundsops/internal/models"
	"github.com/avelichko/fundsops/internal/service"
	"github.com/avelichko/fundsops/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// Initialize Layers
	st := store.New(models.AccountBalances{
		DemoBalance: cfg.DemoBalance,
		LiveBalance: cfg.LiveBalance,
	})
	if cfg.FixturePath != "" {
		if err := st.LoadFixture(cfg.FixturePath); err != nil {
			log.Fatalf("Unable to load fixture %s: %v", cfg.FixturePath, err)
		}
	} else {
		st.SeedDefault()
	}

	opts := service.Options{Delay: cfg.ProcessingDelay}
	deposits := service.NewTransferService(st, st, opts)
	withdrawals := service.NewTransferService(st, st, opts)

	handler := api.NewHandler(st, deposits, withdrawals, cfg.SummaryCacheTTL)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	r := handler.Router(cfg.SessionToken, limiter)

	log.Printf("Server starting on :%s (env=%s)", cfg.ServerPort, cfg.Env)
	if err := http.ListenAndServe(":"+cfg.ServerPort, r); err != nil {
		log.Fatal(err)
	}
}
