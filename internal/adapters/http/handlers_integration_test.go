//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	handler "github.com/samirrijal/localshop/internal/adapters/http"
	"github.com/samirrijal/localshop/internal/adapters/postgres"
	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/core/usecases"
	"github.com/samirrijal/localshop/internal/pkg/config"
	"github.com/samirrijal/localshop/internal/pkg/logging"
)

// setupTestDB connects to the database named by the LOCALSHOP_DATABASE_* env.
// The schema in migrations/ must already be applied.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("localshop-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 5)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return db
}

// setupTestDeps wires the real PostGIS store with no geocoding providers.
func setupTestDeps(db *postgres.DB) *handler.Dependencies {
	repo := postgres.NewShopRepo(db)
	logger := logging.Discard()
	geo := usecases.NewGeocodingService(nil, usecases.GeocodingOptions{Logger: logger})
	return &handler.Dependencies{
		Geocoding: geo,
		Search:    usecases.NewShopSearchService(repo, geo, usecases.SearchOptions{Logger: logger}),
		Shops:     usecases.NewShopService(repo, geo, usecases.ShopServiceOptions{Logger: logger}),
		Checks:    map[string]handler.ReadinessCheck{"database": db.Ping},
		Logger:    logger,
	}
}

// seedShop inserts a live shop at lon/lat with a unique category so
// concurrent runs do not see each other's rows.
func seedShop(t *testing.T, db *postgres.DB, name, category string, lon, lat float64) string {
	loc := domain.NewGeoPoint(lon, lat)
	now := time.Now().UTC()
	shop := &domain.Shop{
		ID:        uuid.NewString(),
		OwnerID:   "integration",
		Name:      name,
		Category:  category,
		Location:  &loc,
		Status:    domain.ShopLive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := postgres.NewShopRepo(db).Save(context.Background(), shop); err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	return shop.ID
}

func TestSearchShops_Integration_ThreeShopRadius(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	category := "integ-" + time.Now().Format("20060102150405.000")
	near := seedShop(t, db, "Chaat Corner", category, 77.2090, 28.6229)
	mid := seedShop(t, db, "Paratha Wala", category, 77.2090, 28.6364)
	seedShop(t, db, "Far Dhaba", category, 77.2090, 28.6499)

	app := setupApp(setupTestDeps(db))

	req := httptest.NewRequest("GET", "/v1/shops/search?lat=28.6139&lon=77.2090&radius=3000&category="+category, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got handler.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Results) != 2 || got.Pagination.Total != 2 {
		t.Fatalf("expected 2 shops within 3km, got %d (total %d)", len(got.Results), got.Pagination.Total)
	}
	if got.Results[0].ID != near || got.Results[1].ID != mid {
		t.Errorf("expected near-to-far order [%s %s], got [%s %s]", near, mid, got.Results[0].ID, got.Results[1].ID)
	}
	if d := *got.Results[0].Distance; d != 1.0 {
		t.Errorf("expected 1.0 km, got %v", d)
	}
}

func TestGetShop_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	id := seedShop(t, db, "Chai Point", "integ-get", 77.2167, 28.6315)
	app := setupApp(setupTestDeps(db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/shops/"+id, nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var shop domain.Shop
	if err := json.NewDecoder(resp.Body).Decode(&shop); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if shop.Location == nil || shop.Location.Lat != 28.6315 {
		t.Errorf("expected location round-trip, got %v", shop.Location)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/shops/"+uuid.NewString(), nil), -1)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for unknown shop, got %d", resp.StatusCode)
	}
}

func TestReady_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	app := setupApp(setupTestDeps(db))
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
