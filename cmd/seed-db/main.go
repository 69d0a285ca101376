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
	"github.com/shopspring/decimal"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/repository"
)

type couponJSON struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discountType"`
	Value        decimal.Decimal `json:"value"`
	Description  string          `json:"description"`
	ValidFrom    *time.Time      `json:"validFrom"`
	ValidUntil   *time.Time      `json:"validUntil"`
	MaxUses      int             `json:"maxUses"`
}

func main() {
	var (
		databaseURL string
		couponsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&couponsFile, "coupons-file", "db/seed/coupons.json", "path to coupons JSON file")
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

	if err := run(ctx, databaseURL, couponsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, couponsFile string) error {
	rules, err := readCoupons(couponsFile)
	if err != nil {
		return errors.Wrap(err, "read coupons")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	applied, err := repository.RunMigrations(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}
	for _, v := range applied {
		slog.Info("applied migration", slog.String("version", v))
	}

	slog.Info("upserting coupons", slog.Int("count", len(rules)))

	if err := repository.NewCouponRepository(pool).Upsert(ctx, rules); err != nil {
		return errors.Wrap(err, "upsert coupons")
	}
	for _, r := range rules {
		slog.Info("upserted coupon", slog.String("code", r.Code), slog.String("description", r.Description))
	}

	return nil
}

func readCoupons(path string) ([]coupon.Rule, error) {
	slog.Info("reading coupons file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read coupons file")
	}

	var coupons []couponJSON
	if err := json.Unmarshal(data, &coupons); err != nil {
		return nil, errors.Wrap(err, "parse coupons JSON")
	}

	rules := make([]coupon.Rule, 0, len(coupons))
	for _, c := range coupons {
		rule := coupon.Rule{
			Code:         coupon.NormalizeCode(c.Code),
			DiscountType: coupon.DiscountType(c.DiscountType),
			Value:        c.Value,
			Description:  c.Description,
			ValidFrom:    c.ValidFrom,
			ValidUntil:   c.ValidUntil,
			MaxUses:      c.MaxUses,
		}
		if rule.Code == "" {
			return nil, errors.New("coupon without code")
		}
		if !rule.DiscountType.Valid() {
			return nil, errors.Errorf("coupon %s: unknown discount type %q", rule.Code, c.DiscountType)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
