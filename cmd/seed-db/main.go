package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/twcjewels/storefront-api/internal/repository"
)

type productJSON struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	ActualPrice *decimal.Decimal `json:"actualPrice"`
	Category    string           `json:"category"`
	Image       string           `json:"image"`
}

const upsertProductSQL = `
INSERT INTO products (id, name, price, actual_price, category, image, active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    price = EXCLUDED.price,
    actual_price = EXCLUDED.actual_price,
    category = EXCLUDED.category,
    image = EXCLUDED.image,
    active = TRUE
`

const upsertCouponSQL = `
INSERT INTO coupons (code, discount_type, discount_value, min_purchase, max_discount, usage_limit, active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
ON CONFLICT (code) DO UPDATE SET
    discount_type = EXCLUDED.discount_type,
    discount_value = EXCLUDED.discount_value,
    min_purchase = EXCLUDED.min_purchase,
    max_discount = EXCLUDED.max_discount,
    usage_limit = EXCLUDED.usage_limit,
    active = TRUE
`

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
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

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
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

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Price, p.ActualPrice, p.Category, p.Image,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

type couponSeed struct {
	code         string
	discountType string
	value        decimal.Decimal
	minPurchase  *decimal.Decimal
	maxDiscount  *decimal.Decimal
	usageLimit   *int
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding launch coupons")

	ptr := func(d decimal.Decimal) *decimal.Decimal { return &d }
	limit := 500

	coupons := []couponSeed{
		{
			code:         "WELCOME10",
			discountType: "percentage",
			value:        decimal.NewFromInt(10),
			minPurchase:  ptr(decimal.NewFromInt(999)),
			maxDiscount:  ptr(decimal.NewFromInt(500)),
		},
		{
			code:         "FLAT200",
			discountType: "fixed",
			value:        decimal.NewFromInt(200),
			minPurchase:  ptr(decimal.NewFromInt(1499)),
			usageLimit:   &limit,
		},
	}

	for _, c := range coupons {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			c.code, c.discountType, c.value, c.minPurchase, c.maxDiscount, c.usageLimit,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code))
	}

	return nil
}
