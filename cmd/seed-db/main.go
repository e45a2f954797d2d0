package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/streamcart/streamcart/internal/domain/coupon"
	"github.com/streamcart/streamcart/internal/domain/plan"
	"github.com/streamcart/streamcart/internal/repository"
)

type planJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Logo  string `json:"logo"`
}

func main() {
	var (
		databaseURL string
		plansFile   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&plansFile, "plans-file", "db/seed/plans.json", "path to plans JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, plansFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, plansFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedPlans(ctx, repository.NewPlanRepository(pool), plansFile); err != nil {
		return errors.Wrap(err, "seed plans")
	}

	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedPlans(ctx context.Context, repo *repository.PlanRepository, plansFile string) error {
	slog.Info("reading plans file", slog.String("path", plansFile))

	data, err := os.ReadFile(plansFile)
	if err != nil {
		return errors.Wrap(err, "read plans file")
	}

	var plans []planJSON
	if err := json.Unmarshal(data, &plans); err != nil {
		return errors.Wrap(err, "parse plans JSON")
	}

	slog.Info("upserting plans", slog.Int("count", len(plans)))

	for _, p := range plans {
		if err := repo.Upsert(ctx, &plan.Plan{
			ID:    p.ID,
			Name:  p.Name,
			Price: p.Price,
			Logo:  p.Logo,
		}); err != nil {
			return errors.Wrapf(err, "upsert plan %d", p.ID)
		}

		slog.Info("upserted plan", slog.Int64("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding demo coupons")

	nextMonth := time.Now().AddDate(0, 1, 0)

	coupons := []coupon.Coupon{
		{Code: "SAVE50", Kind: coupon.KindFlat, Amount: 50},
		{Code: "WELCOME10", Kind: coupon.KindPercent, Amount: 10},
		{Code: "FESTIVE25", Kind: coupon.KindPercent, Amount: 25, ExpiresAt: &nextMonth},
	}

	for _, c := range coupons {
		if err := repo.Upsert(ctx, &c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon",
			slog.String("code", c.Code),
			slog.String("kind", string(c.Kind)),
			slog.Int64("amount", c.Amount),
		)
	}

	return nil
}
