package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"membership-platform/internal/config"
	pg "membership-platform/internal/infra/db/postgres"
	"membership-platform/internal/infra/logging"
	"membership-platform/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	levelRepo := pg.NewLevelRepo(pool)
	levelUC := usecase.NewLevelUseCase(levelRepo, logger)

	// If levels already exist, do nothing
	levels, err := levelUC.List(ctx)
	if err != nil {
		log.Fatalf("list levels: %v", err)
	}
	if len(levels) > 0 {
		fmt.Printf("%d levels already present. No changes.\n", len(levels))
		for _, l := range levels {
			fmt.Printf("  - %s (priority=%d, days=%d, price=%d %s)\n", l.Name, l.Priority, l.DurationDays, l.PriceCents, l.Currency)
		}
		return
	}

	// Seed a small ladder for exercising the checkout flow
	seed := []struct {
		Name     string
		Price    int64
		Priority int
		Days     int
	}{
		{"Basic", 4_99, 1, 30},
		{"Silver", 9_99, 2, 30},
		{"Gold", 19_99, 3, 30},
	}

	for _, s := range seed {
		l, err := levelUC.Create(ctx, s.Name, s.Price, "USD", s.Priority, s.Days)
		if err != nil {
			log.Fatalf("create level %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, priority=%d, days=%d, price=%d USD cents)\n", l.Name, l.ID, l.Priority, l.DurationDays, l.PriceCents)
	}

	fmt.Println("Seeding complete.")
}
