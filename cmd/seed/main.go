package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"contentops-credits/internal/config"
	"contentops-credits/internal/domain/model"
	pg "contentops-credits/internal/infra/db/postgres"
	"contentops-credits/internal/infra/logging"
	"contentops-credits/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
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

	planRepo := pg.NewPlanRepo(pool)
	planUC := usecase.NewPlanUseCase(planRepo, logger)

	// If plans already exist, do nothing
	plans, err := planUC.List(ctx)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (id=%s, credits=%s, days=%d)\n", p.Name, p.ID, describeAllotment(p.Allotment), p.PeriodDays)
		}
		return
	}

	seed := []struct {
		ID        string
		Name      string
		Allotment model.Allotment
		Days      int
		Features  []string
	}{
		{model.FreePlanID, "Free", model.Bounded(3), 30, nil},
		{"creator", "Creator", model.Bounded(40), 30, []string{"priority_render"}},
		{"pro", "Pro", model.Bounded(200), 30, []string{"priority_render", "brand_kits"}},
		{"agency", "Agency", model.Unlimited(), 30, []string{"priority_render", "brand_kits", "team_seats"}},
	}

	for _, s := range seed {
		p, err := planUC.Create(ctx, s.ID, s.Name, s.Allotment, s.Days, s.Features)
		if err != nil {
			log.Fatalf("create plan %q: %v", s.ID, err)
		}
		fmt.Printf("seeded: %s (id=%s, credits=%s, days=%d)\n", p.Name, p.ID, describeAllotment(p.Allotment), p.PeriodDays)
	}

	fmt.Println("✅ Seeding complete.")
}

func describeAllotment(a model.Allotment) string {
	if a.IsUnlimited() {
		return "unlimited"
	}
	return fmt.Sprintf("%d", a.Credits())
}
