package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbay/storefront/internal/domain/auth"
	"github.com/marketbay/storefront/internal/domain/cart"
	"github.com/marketbay/storefront/internal/domain/coupon"
	"github.com/marketbay/storefront/internal/domain/order"
	"github.com/marketbay/storefront/internal/domain/product"
)

const (
	testAdminKey = "secret-admin-key"
	testPepper   = "test-pepper"
)

type mockProductRepo struct {
	products map[string]product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

type mockCouponRepo struct {
	coupons map[string]*coupon.Coupon
	err     error
	created []*coupon.Coupon
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok || !c.Active {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) Create(_ context.Context, c *coupon.Coupon) error {
	m.created = append(m.created, c)
	return nil
}

func (m *mockCouponRepo) Deactivate(_ context.Context, code string) error {
	if c, ok := m.coupons[strings.ToUpper(code)]; ok {
		c.Active = false
	}
	return nil
}

type mockOrderRepo struct {
	created []*order.Order
	err     error
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, o)
	return nil
}

type mockAPIKeyRepo struct {
	hashes map[string]*auth.APIKeyInfo
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.hashes[hash]
	if !ok {
		return nil, errors.New("api key not found")
	}
	return info, nil
}

type testEnv struct {
	mux     *http.ServeMux
	carts   *cart.Registry
	coupons *mockCouponRepo
	orders  *mockOrderRepo
}

func hashKey(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	products := &mockProductRepo{products: map[string]product.Product{
		"p1": {ID: "p1", Name: "Waffle", Price: dec("25.00"), Category: "Waffle", Image: "p1.jpg"},
		"p2": {ID: "p2", Name: "Smoothie", Price: dec("18.50"), Category: "Drinks", Image: "p2.jpg"},
	}}
	coupons := &mockCouponRepo{coupons: map[string]*coupon.Coupon{
		"SAVE10": {Code: "SAVE10", Description: "10% off", DiscountRate: dec("0.10"), Active: true},
	}}
	orders := &mockOrderRepo{}
	apikeys := &mockAPIKeyRepo{hashes: map[string]*auth.APIKeyInfo{
		hashKey(testAdminKey): {
			ID:      "key-1",
			KeyHash: hashKey(testAdminKey),
			Name:    "test-admin",
			Scopes:  []string{"admin"},
		},
	}}

	carts := cart.NewRegistry(coupon.NewRepoFinder(coupons), time.Hour)
	h := NewHandler(carts, products, coupons, order.NewService(orders), NewSecurity(apikeys, []byte(testPepper)))

	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{mux: mux, carts: carts, coupons: coupons, orders: orders}
}

func (env *testEnv) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		d := json.NewDecoder(bytes.NewReader(rec.Body.Bytes()))
		d.UseNumber()
		require.NoError(t, d.Decode(&decoded), "body: %s", rec.Body.String())
	}
	return rec, decoded
}

func (env *testEnv) createCart(t *testing.T) string {
	t.Helper()
	rec, body := env.do(t, http.MethodPost, "/api/carts", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func money(t *testing.T, body map[string]any, field string) string {
	t.Helper()
	n, ok := body[field].(json.Number)
	require.True(t, ok, "field %q = %v", field, body[field])
	return n.String()
}

func TestCreateCart(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/carts", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "0.00", money(t, body, "subtotal"))
	assert.Empty(t, body["items"])
}

func TestGetCart_Unknown(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/carts/no-such-cart", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "cart not found", body["message"])
}

func TestAddItem(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)

	rec, body := env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	items := body["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "p1", item["productId"])
	assert.Equal(t, "Waffle", item["name"])
	assert.Equal(t, json.Number("2"), item["quantity"])
	assert.Equal(t, "50.00", money(t, body, "subtotal"))
	assert.Equal(t, json.Number("2"), body["itemCount"])
}

func TestAddItem_DefaultsQuantityToOne(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)

	rec, body := env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, json.Number("1"), body["itemCount"])
}

func TestAddItem_UnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)

	rec, body := env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"ghost"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["message"], "ghost")
}

func TestAddItem_MissingProductID(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)

	rec, _ := env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"quantity":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddItem_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)

	rec, _ := env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetQuantity(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1","quantity":2}`)

	rec, body := env.do(t, http.MethodPut, "/api/carts/"+id+"/items/p1", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, json.Number("5"), body["itemCount"])
	assert.Equal(t, "125.00", money(t, body, "subtotal"))
}

func TestSetQuantity_ZeroRemoves(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1"}`)

	rec, body := env.do(t, http.MethodPut, "/api/carts/"+id+"/items/p1", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["items"])
	assert.Equal(t, "0.00", money(t, body, "subtotal"))
}

func TestSetQuantity_MissingQuantity(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1"}`)

	rec, _ := env.do(t, http.MethodPut, "/api/carts/"+id+"/items/p1", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveItem_AbsentProductIsOK(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1"}`)

	rec, body := env.do(t, http.MethodDelete, "/api/carts/"+id+"/items/ghost", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, json.Number("1"), body["itemCount"])
}

func TestApplyCoupon_Valid(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1"}`)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p2"}`)

	rec, body := env.do(t, http.MethodPost, "/api/carts/"+id+"/coupon", `{"code":"SAVE10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["applied"])

	cartBody := body["cart"].(map[string]any)
	assert.Equal(t, "SAVE10", cartBody["couponCode"])
	assert.Equal(t, "43.50", money(t, cartBody, "subtotal"))
	assert.Equal(t, "4.35", money(t, cartBody, "discount"))
	assert.Equal(t, "39.15", money(t, cartBody, "total"))
}

func TestApplyCoupon_UnknownCode(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1"}`)

	rec, body := env.do(t, http.MethodPost, "/api/carts/"+id+"/coupon", `{"code":"NOPE"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["applied"])

	cartBody := body["cart"].(map[string]any)
	assert.Empty(t, cartBody["couponCode"])
	assert.Equal(t, "0.00", money(t, cartBody, "discount"))
}

func TestApplyCoupon_TransportFailure(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1"}`)

	rec, _ := env.do(t, http.MethodPost, "/api/carts/"+id+"/coupon", `{"code":"SAVE10"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	env.coupons.err = errors.New("connection refused")

	rec, body := env.do(t, http.MethodPost, "/api/carts/"+id+"/coupon", `{"code":"SAVE20"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "coupon service unavailable", body["message"])

	// The previously applied coupon is still in effect.
	env.coupons.err = nil
	rec, body = env.do(t, http.MethodGet, "/api/carts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SAVE10", body["couponCode"])
}

func TestApplyCoupon_EmptyCode(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)

	rec, _ := env.do(t, http.MethodPost, "/api/carts/"+id+"/coupon", `{"code":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearCart(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1"}`)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/coupon", `{"code":"SAVE10"}`)

	rec, body := env.do(t, http.MethodDelete, "/api/carts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["items"])
	assert.Empty(t, body["couponCode"])
	assert.Equal(t, "0.00", money(t, body, "total"))

	// The session itself survives a clear.
	rec, _ = env.do(t, http.MethodGet, "/api/carts/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckout(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1"}`)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p2"}`)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/coupon", `{"code":"SAVE10"}`)

	rec, body := env.do(t, http.MethodPost, "/api/carts/"+id+"/checkout", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "SAVE10", body["couponCode"])
	assert.Equal(t, "43.50", money(t, body, "subtotal"))
	assert.Equal(t, "4.35", money(t, body, "discount"))
	assert.Equal(t, "39.15", money(t, body, "total"))
	require.Len(t, env.orders.created, 1)

	// The session is gone after a successful checkout.
	rec, _ = env.do(t, http.MethodGet, "/api/carts/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCart(t)

	rec, body := env.do(t, http.MethodPost, "/api/carts/"+id+"/checkout", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cart is empty", body["message"])
	assert.Empty(t, env.orders.created)
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var products []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 2)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/products/p1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Waffle", body["name"])
	assert.Equal(t, "25.00", money(t, body, "price"))

	rec, _ = env.do(t, http.MethodGet, "/api/products/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCreateCoupon(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/admin/coupons",
		`{"code":"spring20","description":"Spring sale","discountRate":0.20}`,
		"api_key", testAdminKey)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "SPRING20", body["code"])
	assert.Equal(t, true, body["active"])
	require.Len(t, env.coupons.created, 1)
	assert.True(t, env.coupons.created[0].DiscountRate.Equal(dec("0.20")))
}

func TestAdminCreateCoupon_RateOutOfRange(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/admin/coupons",
		`{"code":"TOOMUCH","discountRate":1.5}`,
		"api_key", testAdminKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.coupons.created)
}

func TestAdminCreateCoupon_MissingKey(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/admin/coupons", `{"code":"X","discountRate":0.1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "api key required", body["message"])
}

func TestAdminCreateCoupon_BadKey(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/admin/coupons",
		`{"code":"X","discountRate":0.1}`,
		"api_key", "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid api key", body["message"])
}

func TestAdminDeactivateCoupon(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodDelete, "/api/admin/coupons/SAVE10", "", "api_key", testAdminKey)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.coupons.coupons["SAVE10"].Active)

	// The deactivated coupon no longer applies to carts.
	id := env.createCart(t)
	env.do(t, http.MethodPost, "/api/carts/"+id+"/items", `{"productId":"p1"}`)
	rec, body := env.do(t, http.MethodPost, "/api/carts/"+id+"/coupon", `{"code":"SAVE10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["applied"])
}
