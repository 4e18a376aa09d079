package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuekit/seat-inventory/internal/inventory"
	"github.com/venuekit/seat-inventory/internal/model"
	"github.com/venuekit/seat-inventory/internal/repository"
)

// memStore is an in-memory inventory.Store for handler tests.  The mutex
// plays the role of the database's atomic conditional update.
type memStore struct {
	mu    sync.Mutex
	seats map[string]*model.Seat
}

func newMemStore() *memStore {
	return &memStore{seats: make(map[string]*model.Seat)}
}

func (m *memStore) seed(layoutID int64, status model.SeatStatus, uids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, uid := range uids {
		m.seats[uid] = &model.Seat{
			LayoutID:     layoutID,
			SeatUID:      uid,
			SectionCode:  "A",
			RowLabel:     "1",
			SeatNumber:   uint32(i + 1),
			Status:       status,
			Version:      1,
			LastChangeAt: time.Now().UTC(),
		}
	}
}

func (m *memStore) BulkTransition(_ context.Context, layoutID int64, seatUIDs []string, from, to model.SeatStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, uid := range seatUIDs {
		st, ok := m.seats[uid]
		if !ok || st.LayoutID != layoutID || st.Status != from {
			continue
		}
		st.Status = to
		st.Version++
		st.LastChangeAt = time.Now().UTC()
		n++
	}
	return n, nil
}

func (m *memStore) UpdateByVersion(_ context.Context, layoutID int64, seatUID string, expectedVersion int64, upd repository.SeatFieldUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.seats[seatUID]
	if !ok || st.LayoutID != layoutID || st.Version != expectedVersion {
		return false, nil
	}
	if upd.PriceCentsOverride != nil {
		v := *upd.PriceCentsOverride
		st.PriceCentsOverride = &v
	}
	if upd.Status != nil {
		st.Status = *upd.Status
	}
	st.Version++
	st.LastChangeAt = time.Now().UTC()
	return true, nil
}

func (m *memStore) InsertAll(_ context.Context, seats []model.Seat, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range seats {
		cp := st
		cp.LastChangeAt = time.Now().UTC()
		m.seats[st.SeatUID] = &cp
	}
	return nil
}

func (m *memStore) CountByLayout(_ context.Context, layoutID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, st := range m.seats {
		if st.LayoutID == layoutID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetByUID(_ context.Context, layoutID int64, seatUID string) (*model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.seats[seatUID]
	if !ok || st.LayoutID != layoutID {
		return nil, repository.ErrSeatNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *memStore) ListByUIDs(_ context.Context, layoutID int64, seatUIDs []string) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Seat
	for _, uid := range seatUIDs {
		if st, ok := m.seats[uid]; ok && st.LayoutID == layoutID {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (m *memStore) ListByStatus(_ context.Context, layoutID int64, status model.SeatStatus) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Seat
	for _, st := range m.seats {
		if st.LayoutID == layoutID && st.Status == status {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (m *memStore) ListByLayout(_ context.Context, layoutID int64) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Seat
	for _, st := range m.seats {
		if st.LayoutID == layoutID {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (m *memStore) StatusCounts(_ context.Context, layoutID int64) (map[model.SeatStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.SeatStatus]int64, len(model.AllStatuses))
	for _, st := range model.AllStatuses {
		counts[st] = 0
	}
	for _, st := range m.seats {
		if st.LayoutID == layoutID {
			counts[st.Status]++
		}
	}
	return counts, nil
}

func (m *memStore) ModifiedSince(_ context.Context, layoutID int64, since time.Time) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Seat
	for _, st := range m.seats {
		if st.LayoutID == layoutID && st.LastChangeAt.After(since) {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (m *memStore) DeleteByLayout(_ context.Context, layoutID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.seats {
		if st.LayoutID == layoutID && (st.Status == model.StatusHeld || st.Status == model.StatusSold) {
			return 0, repository.ErrSeatsInUse
		}
	}
	var n int64
	for uid, st := range m.seats {
		if st.LayoutID == layoutID {
			delete(m.seats, uid)
			n++
		}
	}
	return n, nil
}

func newTestHandler(store *memStore) *InventoryHandler {
	return NewInventoryHandler(inventory.NewManager(store))
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string, params map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	names := make([]string, 0, len(params))
	values := make([]string, 0, len(params))
	for name, value := range params {
		names = append(names, name)
		values = append(values, value)
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	require.NoError(t, h(c))
	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestHoldSeatsFullSuccess(t *testing.T) {
	store := newMemStore()
	store.seed(1, model.StatusAvailable, "A1", "A2")
	h := newTestHandler(store)

	rec, payload := doJSON(t, h.HoldSeats, http.MethodPost, "/v1/layouts/1/seats/hold",
		`{"seat_uids":["A1","A2"]}`, map[string]string{"id": "1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), payload["requested"])
	assert.Equal(t, float64(2), payload["transitioned"])
	assert.Equal(t, false, payload["conflict"])
	assert.NotContains(t, payload, "statuses")
}

func TestHoldSeatsPartialReportsConflict(t *testing.T) {
	store := newMemStore()
	store.seed(1, model.StatusAvailable, "A1")
	store.seed(1, model.StatusSold, "A2")
	h := newTestHandler(store)

	rec, payload := doJSON(t, h.HoldSeats, http.MethodPost, "/v1/layouts/1/seats/hold",
		`{"seat_uids":["A1","A2"]}`, map[string]string{"id": "1"})

	assert.Equal(t, http.StatusOK, rec.Code, "contention is a result, not an error")
	assert.Equal(t, float64(1), payload["transitioned"])
	assert.Equal(t, true, payload["conflict"])
	statuses, ok := payload["statuses"].(map[string]any)
	require.True(t, ok, "partial success must carry current seat statuses")
	assert.Equal(t, "held", statuses["A1"])
	assert.Equal(t, "sold", statuses["A2"])
}

func TestHoldSeatsRequiresBody(t *testing.T) {
	h := newTestHandler(newMemStore())

	rec, _ := doJSON(t, h.HoldSeats, http.MethodPost, "/v1/layouts/1/seats/hold",
		`{"seat_uids":[]}`, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h.HoldSeats, http.MethodPost, "/v1/layouts/x/seats/hold",
		`{"seat_uids":["A1"]}`, map[string]string{"id": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSellRequiresHold(t *testing.T) {
	store := newMemStore()
	store.seed(1, model.StatusAvailable, "A1")
	h := newTestHandler(store)

	rec, payload := doJSON(t, h.SellSeats, http.MethodPost, "/v1/layouts/1/seats/sell",
		`{"seat_uids":["A1"]}`, map[string]string{"id": "1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), payload["transitioned"])
	assert.Equal(t, true, payload["conflict"])
}

func TestUpdateSeatStaleVersionConflict(t *testing.T) {
	store := newMemStore()
	store.seed(1, model.StatusAvailable, "A1")
	h := newTestHandler(store)

	rec, payload := doJSON(t, h.UpdateSeat, http.MethodPatch, "/v1/layouts/1/seats/A1",
		`{"expected_version":1,"price_cents_override":9900}`, map[string]string{"id": "1", "uid": "A1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["updated"])

	// Same expected_version again: the row moved on.
	rec, payload = doJSON(t, h.UpdateSeat, http.MethodPatch, "/v1/layouts/1/seats/A1",
		`{"expected_version":1,"price_cents_override":100}`, map[string]string{"id": "1", "uid": "A1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	seat, ok := payload["seat"].(map[string]any)
	require.True(t, ok, "conflict response carries the current row")
	assert.Equal(t, float64(2), seat["version"])
	assert.Equal(t, float64(9900), seat["price_cents_override"])
}

func TestUpdateSeatInvalidStatusChange(t *testing.T) {
	store := newMemStore()
	store.seed(1, model.StatusAvailable, "A1")
	h := newTestHandler(store)

	rec, _ := doJSON(t, h.UpdateSeat, http.MethodPatch, "/v1/layouts/1/seats/A1",
		`{"expected_version":1,"status":"sold"}`, map[string]string{"id": "1", "uid": "A1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateSeatUnknownSeat(t *testing.T) {
	h := newTestHandler(newMemStore())

	rec, _ := doJSON(t, h.UpdateSeat, http.MethodPatch, "/v1/layouts/1/seats/nope",
		`{"expected_version":1,"status":"held"}`, map[string]string{"id": "1", "uid": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStatusCountsIncludesAllStatuses(t *testing.T) {
	store := newMemStore()
	store.seed(1, model.StatusAvailable, "A1", "A2")
	store.seed(1, model.StatusSold, "A3")
	h := newTestHandler(store)

	rec, payload := doJSON(t, h.GetStatusCounts, http.MethodGet, "/v1/layouts/1/seats/counts",
		"", map[string]string{"id": "1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), payload["total"])
	counts, ok := payload["counts"].(map[string]any)
	require.True(t, ok)
	require.Len(t, counts, len(model.AllStatuses))
	assert.Equal(t, float64(2), counts["available"])
	assert.Equal(t, float64(1), counts["sold"])
	assert.Equal(t, float64(0), counts["disabled"])
}

func TestGetChangesRejectsBadSince(t *testing.T) {
	h := newTestHandler(newMemStore())

	rec, _ := doJSON(t, h.GetChanges, http.MethodGet, "/v1/layouts/1/seats/changes?since=yesterday",
		"", map[string]string{"id": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChangesReturnsModifiedSeats(t *testing.T) {
	store := newMemStore()
	store.seed(1, model.StatusAvailable, "A1", "A2")
	h := newTestHandler(store)

	cut := time.Now().UTC().Add(time.Second).Format(time.RFC3339)
	rec, payload := doJSON(t, h.GetChanges, http.MethodGet, "/v1/layouts/1/seats/changes?since="+cut,
		"", map[string]string{"id": "1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), payload["count"])
	assert.NotEmpty(t, payload["polled_at"])

	// A transition after the watermark shows up.
	_, err := store.BulkTransition(context.Background(), 1, []string{"A1"}, model.StatusAvailable, model.StatusHeld)
	require.NoError(t, err)
	store.mu.Lock()
	store.seats["A1"].LastChangeAt = time.Now().UTC().Add(2 * time.Second)
	store.mu.Unlock()

	rec, payload = doJSON(t, h.GetChanges, http.MethodGet, "/v1/layouts/1/seats/changes?since="+cut,
		"", map[string]string{"id": "1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), payload["count"])
}

const geometryBody = `{
  "sections": [
    {"code": "FLOOR", "rows": [
      {"label": "1", "seats": [
        {"seat_uid": "F-1-1", "seat_number": 1},
        {"seat_uid": "F-1-2", "seat_number": 2}
      ]}
    ]}
  ]
}`

func TestInitializeLayoutOnce(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)

	rec, payload := doJSON(t, h.InitializeLayout, http.MethodPost, "/v1/layouts/1/seats",
		geometryBody, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(2), payload["seats_created"])

	rec, _ = doJSON(t, h.InitializeLayout, http.MethodPost, "/v1/layouts/1/seats",
		geometryBody, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = doJSON(t, h.InitializeLayout, http.MethodPost, "/v1/layouts/2/seats",
		`{"sections":[]}`, map[string]string{"id": "2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty geometry is rejected")
}

func TestResetLayoutRefusedWhileInUse(t *testing.T) {
	store := newMemStore()
	store.seed(1, model.StatusHeld, "A1")
	h := newTestHandler(store)

	rec, _ := doJSON(t, h.ResetLayout, http.MethodDelete, "/v1/layouts/1/seats",
		"", map[string]string{"id": "1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, err := store.BulkTransition(context.Background(), 1, []string{"A1"}, model.StatusHeld, model.StatusAvailable)
	require.NoError(t, err)

	rec, payload := doJSON(t, h.ResetLayout, http.MethodDelete, "/v1/layouts/1/seats",
		"", map[string]string{"id": "1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), payload["seats_deleted"])
}
