package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketbay/storefront/internal/domain/auth"
	"github.com/marketbay/storefront/internal/domain/coupon"
	"github.com/marketbay/storefront/internal/domain/product"
	"github.com/marketbay/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Image    string          `json:"image"`
}

type couponSeed struct {
	code        string
	description string
	rate        string
}

var couponSeeds = []couponSeed{
	{code: "SAVE10", description: "10% off your order", rate: "0.10"},
	{code: "WELCOME15", description: "Welcome: 15% off", rate: "0.15"},
	{code: "HALFPRICE", description: "50% off everything", rate: "0.50"},
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STOREFRONT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STOREFRONT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STOREFRONT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STOREFRONT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STOREFRONT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
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
		err := repo.Upsert(ctx, product.Product{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Category: p.Category,
			Image:    p.Image,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	slog.Info("seeding coupons", slog.Int("count", len(couponSeeds)))

	for _, s := range couponSeeds {
		rate, err := decimal.NewFromString(s.rate)
		if err != nil {
			return errors.Wrapf(err, "parse rate for coupon %s", s.code)
		}

		err = repo.Create(ctx, &coupon.Coupon{
			Code:         s.code,
			Description:  s.description,
			DiscountRate: rate,
			Active:       true,
		})
		if err != nil {
			// Re-running the seed against an existing database is expected.
			slog.Warn("coupon insert skipped", slog.String("code", s.code), slog.String("error", err.Error()))
		}
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin api key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))

	return repo.Upsert(ctx, auth.APIKeyInfo{
		ID:      uuid.New().String(),
		KeyHash: hex.EncodeToString(mac.Sum(nil)),
		Name:    "seeded-admin",
		Scopes:  []string{"admin"},
	})
}
