package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Validation paths only; decision computation and repricing semantics are
// covered by the pricing package tests.
func TestPricingHandlerValidation(t *testing.T) {
	h := &PricingHandler{}

	rec, _ := doJSON(t, h.GetSeatPrice, http.MethodGet, "/v1/layouts/x/seats/A1/price",
		"", map[string]string{"id": "x", "uid": "A1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h.GetBulkPrices, http.MethodPost, "/v1/layouts/1/prices",
		`{"seat_uids":[]}`, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h.CreateOverride, http.MethodPost, "/v1/layouts/1/overrides",
		`{"seat_uid":"","price_cents":100}`, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h.CreateOverride, http.MethodPost, "/v1/layouts/1/overrides",
		`{"seat_uid":"A1","price_cents":-5}`, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h.CreateOverride, http.MethodPost, "/v1/layouts/1/overrides",
		`{"seat_uid":"A1","price_cents":100,"effective_from":"2026-06-01T12:00:00Z","effective_to":"2026-06-01T11:00:00Z"}`,
		map[string]string{"id": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "inverted override window is rejected")

	rec, _ = doJSON(t, h.CreateRule, http.MethodPost, "/v1/pricing/rules",
		`{"strategy":"","scope":"global"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h.CreateRule, http.MethodPost, "/v1/pricing/rules",
		`{"strategy":"flat_price","scope":"venue"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown scope is rejected")

	rec, _ = doJSON(t, h.ApplyReprice, http.MethodPost, "/v1/layouts/1/reprice",
		`{}`, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h.PreviewReprice, http.MethodPost, "/v1/layouts/1/reprice/preview",
		`{}`, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
