package gin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/albumly/billing-svc/internal/domain/billing"
	"github.com/albumly/billing-svc/internal/port/outbound"
	"github.com/albumly/billing-svc/internal/utils/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockLimitsDomain is a mock implementation of inbound.LimitsDomain.
type MockLimitsDomain struct {
	mock.Mock
}

func (m *MockLimitsDomain) GetUserLimits(ctx context.Context, userID int64) (*billing.LimitsSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.LimitsSnapshot), args.Error(1)
}

func (m *MockLimitsDomain) CheckLimitsForOperation(ctx context.Context, userID int64, delta billing.OperationDelta) (*billing.OperationCheck, error) {
	args := m.Called(ctx, userID, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.OperationCheck), args.Error(1)
}

func (m *MockLimitsDomain) ReserveUsage(ctx context.Context, userID int64, delta billing.OperationDelta) (*billing.Reservation, error) {
	args := m.Called(ctx, userID, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Reservation), args.Error(1)
}

func (m *MockLimitsDomain) ReleaseUsage(ctx context.Context, userID int64, delta billing.OperationDelta) (*billing.Release, error) {
	args := m.Called(ctx, userID, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Release), args.Error(1)
}

func (m *MockLimitsDomain) ListPlans(ctx context.Context) ([]*billing.PlanLimits, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.PlanLimits), args.Error(1)
}

type handlerFixture struct {
	domain  *MockLimitsDomain
	metrics *metrics.Metrics
	router  *gin.Engine
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		domain:  new(MockLimitsDomain),
		metrics: metrics.New("test", prometheus.NewRegistry()),
		router:  gin.New(),
	}
	RegisterRoutes(f.router, NewLimitsHandler(f.domain, f.metrics, zap.NewNop()))
	t.Cleanup(func() { f.domain.AssertExpectations(t) })
	return f
}

func (f *handlerFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func sampleSnapshot(t *testing.T) *billing.LimitsSnapshot {
	t.Helper()
	albums, err := billing.NewLimitInfo(3, 5)
	require.NoError(t, err)
	pages, err := billing.NewLimitInfo(10, -1)
	require.NoError(t, err)
	gb := int64(1)
	storage, err := billing.CreateStorageLimitInfo(nil, &gb)
	require.NoError(t, err)
	return &billing.LimitsSnapshot{Albums: albums, Pages: pages, Storage: storage}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGetLimits_OK(t *testing.T) {
	f := newHandlerFixture(t)
	f.domain.On("GetUserLimits", mock.Anything, int64(42)).Return(sampleSnapshot(t), nil)

	w := f.do(http.MethodGet, "/limits?user_id=42", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"albums":  {"used": 3, "limit": 5, "remaining": 2},
		"pages":   {"used": 10, "limit": -1, "remaining": -1},
		"storage": {"used_mb": 0, "limit_mb": 1024, "remaining_mb": 1024}
	}`, w.Body.String())
}

func TestGetLimits_InvalidUserID(t *testing.T) {
	for _, target := range []string{"/limits", "/limits?user_id=", "/limits?user_id=abc", "/limits?user_id=0", "/limits?user_id=-4", "/limits?user_id=1.5", "/limits?user_id=99999999999999999999"} {
		t.Run(target, func(t *testing.T) {
			f := newHandlerFixture(t)

			w := f.do(http.MethodGet, target, "")

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeBody(t, w)["code"])
		})
	}
}

func TestGetLimits_BusinessErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		detail string
	}{
		{"no subscription", billing.ErrNoActiveSubscription, http.StatusNotFound, "NO_ACTIVE_SUBSCRIPTION", "no active subscription"},
		{"no plan", billing.ErrPlanNotFound, http.StatusNotFound, "PLAN_NOT_FOUND", "plan not found"},
		{"corrupt usage", mustLimitErr(t), http.StatusUnprocessableEntity, "LIMIT_EXCEEDED_AT_CONSTRUCTION", "used 7 exceeds limit 5"},
		{"storage fault", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			f.domain.On("GetUserLimits", mock.Anything, int64(7)).Return(nil, tt.err)

			w := f.do(http.MethodGet, "/limits?user_id=7", "")

			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.detail, body["detail"])
		})
	}
}

func mustLimitErr(t *testing.T) error {
	t.Helper()
	_, err := billing.NewLimitInfo(7, 5)
	require.Error(t, err)
	return err
}

func TestCheckLimits_Allowed(t *testing.T) {
	f := newHandlerFixture(t)
	delta := billing.OperationDelta{AlbumsDelta: 1}
	f.domain.On("CheckLimitsForOperation", mock.Anything, int64(42), delta).
		Return(&billing.OperationCheck{CanProceed: true, ExceededLimits: []string{}, Limits: sampleSnapshot(t)}, nil)

	w := f.do(http.MethodPost, "/limits/check?user_id=42", `{"albums_delta": 1}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["can_proceed"])
	assert.Equal(t, []any{}, body["exceeded_limits"])
	assert.Nil(t, body["message"])
	assert.NotNil(t, body["limits"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitChecksTotal.WithLabelValues(resultAllowed)))
}

func TestCheckLimits_EmptyBodyIsZeroDelta(t *testing.T) {
	f := newHandlerFixture(t)
	f.domain.On("CheckLimitsForOperation", mock.Anything, int64(42), billing.OperationDelta{}).
		Return(&billing.OperationCheck{CanProceed: true, ExceededLimits: []string{}, Limits: sampleSnapshot(t)}, nil)

	w := f.do(http.MethodPost, "/limits/check?user_id=42", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckLimits_Denied(t *testing.T) {
	f := newHandlerFixture(t)
	msg := billing.MessageLimitsExceeded
	delta := billing.OperationDelta{AlbumsDelta: 5}
	f.domain.On("CheckLimitsForOperation", mock.Anything, int64(42), delta).
		Return(&billing.OperationCheck{
			CanProceed:     false,
			ExceededLimits: []string{"exceeded albums limit: 8/5"},
			Limits:         sampleSnapshot(t),
			Message:        &msg,
		}, nil)

	w := f.do(http.MethodPost, "/limits/check?user_id=42", `{"albums_delta": 5}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["can_proceed"])
	assert.Equal(t, []any{"exceeded albums limit: 8/5"}, body["exceeded_limits"])
	assert.Equal(t, msg, body["message"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitChecksTotal.WithLabelValues(resultDenied)))
}

func TestCheckLimits_NoSubscriptionIsSoft(t *testing.T) {
	f := newHandlerFixture(t)
	msg := billing.ErrNoActiveSubscription.Error()
	f.domain.On("CheckLimitsForOperation", mock.Anything, int64(9), billing.OperationDelta{PagesDelta: 2}).
		Return(&billing.OperationCheck{CanProceed: false, ExceededLimits: []string{}, Message: &msg}, nil)

	w := f.do(http.MethodPost, "/limits/check?user_id=9", `{"pages_delta": 2}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"can_proceed": false, "exceeded_limits": [], "limits": null, "message": "no active subscription"}`, w.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitChecksTotal.WithLabelValues(resultNoSubscription)))
}

func TestCheckLimits_InvalidBody(t *testing.T) {
	bodies := map[string]string{
		"negative":   `{"albums_delta": -1}`,
		"fractional": `{"pages_delta": 1.5}`,
		"string":     `{"storage_delta_mb": "10"}`,
		"malformed":  `{"albums_delta":`,
		"array":      `[1, 2]`,
		"too large":  `{"albums_delta": 1099511627777}`,
		"overflow":   `{"pages_delta": 9223372036854775807}`,
		"trailing":   `{"albums_delta": 1} trailing`,
		"two values": `{"albums_delta": 1} {"albums_delta": 2}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			f := newHandlerFixture(t)

			w := f.do(http.MethodPost, "/limits/check?user_id=42", body)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeBody(t, w)["code"])
		})
	}
}

func TestCheckLimits_BodyEdges(t *testing.T) {
	tests := []struct {
		name string
		body string
		want billing.OperationDelta
	}{
		{"maximum delta", `{"storage_delta_mb": 1099511627776}`, billing.OperationDelta{StorageDeltaMB: billing.MaxDelta}},
		{"unknown fields ignored", `{"photos_delta": 1, "pages_delta": 2}`, billing.OperationDelta{PagesDelta: 2}},
		{"trailing whitespace", "{\"albums_delta\": 1}\n  ", billing.OperationDelta{AlbumsDelta: 1}},
		{"explicit zero", `{"albums_delta": 0}`, billing.OperationDelta{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			f.domain.On("CheckLimitsForOperation", mock.Anything, int64(42), tt.want).
				Return(&billing.OperationCheck{CanProceed: true, ExceededLimits: []string{}, Limits: sampleSnapshot(t)}, nil)

			w := f.do(http.MethodPost, "/limits/check?user_id=42", tt.body)

			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestCheckLimits_StorageFault(t *testing.T) {
	f := newHandlerFixture(t)
	f.domain.On("CheckLimitsForOperation", mock.Anything, int64(42), billing.OperationDelta{}).
		Return(nil, errors.New("timeout"))

	w := f.do(http.MethodPost, "/limits/check?user_id=42", `{}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitChecksTotal.WithLabelValues(resultError)))
}

func TestReserveUsage(t *testing.T) {
	t.Run("reserved", func(t *testing.T) {
		f := newHandlerFixture(t)
		delta := billing.OperationDelta{StorageDeltaMB: 200}
		f.domain.On("ReserveUsage", mock.Anything, int64(42), delta).
			Return(&billing.Reservation{Reserved: true, ExceededLimits: []string{}, Limits: sampleSnapshot(t)}, nil)

		w := f.do(http.MethodPost, "/limits/reserve?user_id=42", `{"storage_delta_mb": 200}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["reserved"])
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitReservationsTotal.WithLabelValues(resultReserved)))
	})

	t.Run("reserved without limits", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.domain.On("ReserveUsage", mock.Anything, int64(42), billing.OperationDelta{AlbumsDelta: 1}).
			Return(&billing.Reservation{Reserved: true, ExceededLimits: []string{}}, nil)

		w := f.do(http.MethodPost, "/limits/reserve?user_id=42", `{"albums_delta": 1}`)

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["reserved"])
		assert.Nil(t, body["limits"])
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitReservationsTotal.WithLabelValues(resultReserved)))
	})

	t.Run("denied", func(t *testing.T) {
		f := newHandlerFixture(t)
		msg := billing.MessageLimitsExceeded
		f.domain.On("ReserveUsage", mock.Anything, int64(42), billing.OperationDelta{AlbumsDelta: 3}).
			Return(&billing.Reservation{Reserved: false, ExceededLimits: []string{"exceeded albums limit: 6/5"}, Limits: sampleSnapshot(t), Message: &msg}, nil)

		w := f.do(http.MethodPost, "/limits/reserve?user_id=42", `{"albums_delta": 3}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decodeBody(t, w)["reserved"])
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitReservationsTotal.WithLabelValues(resultDenied)))
	})

	t.Run("no subscription", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.domain.On("ReserveUsage", mock.Anything, int64(42), billing.OperationDelta{AlbumsDelta: 1}).
			Return(nil, billing.ErrNoActiveSubscription)

		w := f.do(http.MethodPost, "/limits/reserve?user_id=42", `{"albums_delta": 1}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitReservationsTotal.WithLabelValues(resultNoSubscription)))
	})

	t.Run("contention", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.domain.On("ReserveUsage", mock.Anything, int64(42), billing.OperationDelta{AlbumsDelta: 1}).
			Return(nil, outbound.ErrConflict)

		w := f.do(http.MethodPost, "/limits/reserve?user_id=42", `{"albums_delta": 1}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitReservationsTotal.WithLabelValues(resultError)))
	})
}

func TestReleaseUsage(t *testing.T) {
	t.Run("released", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.domain.On("ReleaseUsage", mock.Anything, int64(42), billing.OperationDelta{PagesDelta: 4}).
			Return(&billing.Release{Released: true, Limits: sampleSnapshot(t)}, nil)

		w := f.do(http.MethodPost, "/limits/release?user_id=42", `{"pages_delta": 4}`)

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["released"])
		assert.Contains(t, body["limits"], "albums")
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitReleasesTotal))
	})

	t.Run("released without limits", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.domain.On("ReleaseUsage", mock.Anything, int64(42), billing.OperationDelta{AlbumsDelta: 1}).
			Return(&billing.Release{Released: true}, nil)

		w := f.do(http.MethodPost, "/limits/release?user_id=42", `{"albums_delta": 1}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"released": true, "limits": null}`, w.Body.String())
	})

	t.Run("delta above maximum", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.domain.On("ReleaseUsage", mock.Anything, int64(42), billing.OperationDelta{AlbumsDelta: 1}).
			Return(nil, billing.ErrDeltaTooLarge)

		w := f.do(http.MethodPost, "/limits/release?user_id=42", `{"albums_delta": 1}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeBody(t, w)["code"])
		assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.LimitReleasesTotal))
	})
}

func TestListPlans(t *testing.T) {
	f := newHandlerFixture(t)
	albums := int64(5)
	f.domain.On("ListPlans", mock.Anything).Return([]*billing.PlanLimits{
		{ID: 1, Name: "Starter", Features: []string{}, MaxAlbums: albums, MaxPagesPerAlbum: 20, MaxMediaFiles: -1, MaxQRCodes: -1, MaxStorageGB: 1},
	}, nil)

	w := f.do(http.MethodGet, "/plans", "")

	require.Equal(t, http.StatusOK, w.Code)
	plans, ok := decodeBody(t, w)["plans"].([]any)
	require.True(t, ok)
	require.Len(t, plans, 1)
	plan := plans[0].(map[string]any)
	assert.Equal(t, "Starter", plan["name"])
	assert.Equal(t, -1.0, plan["max_media_files"])
}

func TestRegisterRoutes_GuardsOnlyLimits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	domain := new(MockLimitsDomain)
	domain.On("ListPlans", mock.Anything).Return([]*billing.PlanLimits{}, nil)

	r := gin.New()
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	RegisterRoutes(r, NewLimitsHandler(domain, metrics.New("test", prometheus.NewRegistry()), zap.NewNop()), deny)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limits?user_id=1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plans", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
