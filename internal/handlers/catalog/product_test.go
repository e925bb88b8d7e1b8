package catalog

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/validate"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.ProductVariant{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newProductHandler(t *testing.T) *ProductHandler {
	t.Helper()
	return &ProductHandler{DB: initTestDB(t), Producer: &events.Producer{}}
}

func do(t *testing.T, handler echo.HandlerFunc, method, path string, body any, params ...string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	e.Validator = validate.New()

	var reader *bytes.Reader
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		reader = bytes.NewReader(bodyBytes)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	return rec, handler(c)
}

func seedProduct(t *testing.T, db *gorm.DB, title, status string) models.Product {
	t.Helper()
	prod := models.Product{Title: title, Status: status}
	require.NoError(t, db.Create(&prod).Error)
	return prod
}

func TestGetProductsOnlyActive(t *testing.T) {
	h := newProductHandler(t)
	seedProduct(t, h.DB, "Plain Tee", models.ProductActive)
	seedProduct(t, h.DB, "Retired Hoodie", models.ProductInactive)

	rec, err := do(t, h.GetProducts, http.MethodGet, "/products", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
			Page  int   `json:"page"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Plain Tee", resp.Data[0].Title)
	require.Equal(t, int64(1), resp.Meta.Total)
}

func TestGetProductsPagination(t *testing.T) {
	h := newProductHandler(t)
	for _, title := range []string{"Tee One", "Tee Two", "Tee Three"} {
		seedProduct(t, h.DB, title, models.ProductActive)
	}

	rec, err := do(t, h.GetProducts, http.MethodGet, "/products?page=2&size=2", nil)
	require.NoError(t, err)

	var resp struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Total      int64 `json:"total"`
			TotalPages int64 `json:"total_pages"`
			HasPrev    bool  `json:"has_prev"`
			HasNext    bool  `json:"has_next"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Tee Three", resp.Data[0].Title)
	require.Equal(t, int64(3), resp.Meta.Total)
	require.Equal(t, int64(2), resp.Meta.TotalPages)
	require.True(t, resp.Meta.HasPrev)
	require.False(t, resp.Meta.HasNext)
}

func TestGetProductHidesDeletedVariants(t *testing.T) {
	h := newProductHandler(t)
	prod := seedProduct(t, h.DB, "Plain Tee", models.ProductActive)
	require.NoError(t, h.DB.Create(&models.ProductVariant{
		ProductID: prod.ID, ColorName: "Black", ColorCode: "#000", Size: "M", Stock: 5, Price: 10,
	}).Error)
	require.NoError(t, h.DB.Create(&models.ProductVariant{
		ProductID: prod.ID, ColorName: "Red", ColorCode: "#f00", Size: "M", Stock: 5, Price: 10,
		IsDeleted: true,
	}).Error)

	rec, err := do(t, h.GetProduct, http.MethodGet, "/products/1", nil, "id", "1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Variants, 1)
	require.Equal(t, "Black", got.Variants[0].ColorName)
}

func TestGetProductNotFound(t *testing.T) {
	h := newProductHandler(t)
	seedProduct(t, h.DB, "Retired Hoodie", models.ProductInactive)

	// Inactive products are invisible to the public endpoint.
	_, err := do(t, h.GetProduct, http.MethodGet, "/products/1", nil, "id", "1")
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestCreateProduct(t *testing.T) {
	h := newProductHandler(t)

	rec, err := do(t, h.CreateProduct, http.MethodPost, "/products", map[string]any{
		"title": "Plain Tee",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, rec.Code)

	var prod models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prod))
	require.Equal(t, "Plain Tee", prod.Title)
	require.Equal(t, models.ProductActive, prod.Status)
}

func TestCreateProductValidation(t *testing.T) {
	h := newProductHandler(t)

	_, err := do(t, h.CreateProduct, http.MethodPost, "/products", map[string]any{
		"title":  "X",
		"status": "WEIRD",
	})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)

	// Both failing fields are reported in one pass.
	body, ok := he.Message.(map[string]any)
	require.True(t, ok, "expected structured validation message")
	require.Equal(t, "error", body["status"])
	require.Len(t, body["errors"], 2)
}

func TestDeleteProductSoft(t *testing.T) {
	h := newProductHandler(t)
	prod := seedProduct(t, h.DB, "Plain Tee", models.ProductActive)

	rec, err := do(t, h.DeleteProduct, http.MethodDelete, "/products/1", nil, "id", "1")
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var reloaded models.Product
	require.NoError(t, h.DB.First(&reloaded, prod.ID).Error)
	require.Equal(t, models.ProductInactive, reloaded.Status)
}

func TestDeleteProductNotFound(t *testing.T) {
	h := newProductHandler(t)

	_, err := do(t, h.DeleteProduct, http.MethodDelete, "/products/99", nil, "id", "99")
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusNotFound, he.Code)
}
