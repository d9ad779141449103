package stickers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aboudjelida/aimenboudev/internal/middleware"
	"github.com/aboudjelida/aimenboudev/internal/telemetry/metrics"

	"github.com/go-redis/redis_rate/v9"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// use TestMain(m *testing.M) { ... } for
// global set-up/tear-down for all the tests in a package
func TestMain(m *testing.M) {
	m.Run()

	goleak.VerifyTestMain(m,
		// INFO: https://github.com/go-redis/redis/issues/1029
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
	)
}

type allowAllRateLimiter struct{}

func (allowAllRateLimiter) Allow(
	_ context.Context, _ string, limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	return &redis_rate.Result{Limit: limit, Allowed: 1, Remaining: 1}, nil
}

type denyAllRateLimiter struct{}

func (denyAllRateLimiter) Allow(
	_ context.Context, _ string, limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	return &redis_rate.Result{Limit: limit, Allowed: 0, Remaining: 0}, nil
}

func setupStickersRouterForTests(
	t *testing.T,
	repo Api,
	metricsManager *metrics.Manager,
	rateLimiter middleware.RequestRateLimiter,
) (*mux.Router, *Hub) {
	t.Helper()

	r := mux.NewRouter()

	// the same setup as in Server.routerSetup() ... these are not so much of a "unit" tests
	r.Use(middleware.PanicRecovery(metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.DrainAndCloseRequest())

	hub := NewHub(nil, metricsManager)
	handler := NewHandler(repo, hub, NewListCache(), metricsManager)
	handler.SetupRoutes(r, rateLimiter, 10)

	return r, hub
}

func TestNewHandler_routes(t *testing.T) {
	r := mux.NewRouter()
	handler := NewHandler(nil, NewHub(nil, nil), NewListCache(), metrics.NewTestManager())
	handler.SetupRoutes(r, allowAllRateLimiter{}, 10)

	for caseName, route := range map[string]struct {
		name   string
		path   string
		method string
	}{
		"new-sticker": {
			name:   "new-sticker",
			path:   "/stickers",
			method: "POST",
		},
		"all-stickers": {
			name:   "all-stickers",
			path:   "/stickers",
			method: "GET",
		},
		"count-stickers": {
			name:   "count-stickers",
			path:   "/stickers/count",
			method: "GET",
		},
		"subscribe-stickers": {
			name:   "subscribe-stickers",
			path:   "/ws/stickers",
			method: "GET",
		},
	} {
		t.Run(caseName, func(t *testing.T) {
			req, err := http.NewRequest(route.method, route.path, nil)
			require.NoError(t, err)

			routeMatch := &mux.RouteMatch{}
			muxRoute := r.Get(route.name)
			require.NotNil(t, muxRoute)
			isMatch := muxRoute.Match(req, routeMatch)
			assert.True(t, isMatch, caseName)
		})
	}
}

func TestHandler_handleGetAllStickers_empty(t *testing.T) {
	repo := NewMockRepo()
	r, _ := setupStickersRouterForTests(t, repo, metrics.NewTestManager(), allowAllRateLimiter{})

	req, err := http.NewRequest("GET", "/stickers", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "[]", rr.Body.String())
}

func TestHandler_handleGetAllStickers_repoErrorServesEmptyBoard(t *testing.T) {
	repo := NewMockRepo()
	repo.ListErr = errors.New("pg is gone")
	r, _ := setupStickersRouterForTests(t, repo, metrics.NewTestManager(), allowAllRateLimiter{})

	req, err := http.NewRequest("GET", "/stickers", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	// the board never breaks the page, worst case it shows up empty
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
}

func TestHandler_handleNewSticker_thenList(t *testing.T) {
	repo := NewMockRepo()
	r, _ := setupStickersRouterForTests(t, repo, metrics.NewTestManager(), allowAllRateLimiter{})

	postSticker := func(name, message string) Sticker {
		body, err := json.Marshal(Sticker{Name: name, Kind: KindText, Message: message})
		require.NoError(t, err)
		req, err := http.NewRequest("POST", "/stickers", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Origin", "test")
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code)

		var created Sticker
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
		return created
	}

	first := postSticker("ada", "first!")
	second := postSticker("grace", "saying hi")

	// the created sticker comes back complete, ready for an optimistic prepend
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "ada", first.Name)
	assert.Equal(t, KindText, first.Kind)
	assert.False(t, first.CreatedAt.IsZero())
	assert.True(t, second.CreatedAt.After(first.CreatedAt))

	req, err := http.NewRequest("GET", "/stickers", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var listed []Sticker
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	// newest first
	assert.Equal(t, second.ID, listed[0].ID)
	assert.Equal(t, first.ID, listed[1].ID)
}

func TestHandler_handleNewSticker_form(t *testing.T) {
	repo := NewMockRepo()
	r, _ := setupStickersRouterForTests(t, repo, metrics.NewTestManager(), allowAllRateLimiter{})

	form := url.Values{}
	form.Set("name", "linus")
	form.Set("kind", "text")
	form.Set("message", "just passing by")

	req, err := http.NewRequest("POST", "/stickers", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 1, repo.AddCalls)
}

func TestHandler_handleNewSticker_drawing(t *testing.T) {
	repo := NewMockRepo()
	r, _ := setupStickersRouterForTests(t, repo, metrics.NewTestManager(), allowAllRateLimiter{})

	body, err := json.Marshal(Sticker{
		Name:    "frida",
		Kind:    KindDrawing,
		Drawing: testDrawingDataURL(t, false),
	})
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "/stickers", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)

	var created Sticker
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, KindDrawing, created.Kind)
	assert.NotEmpty(t, created.Drawing)
	assert.Empty(t, created.Message)
}

func TestHandler_handleNewSticker_invalidNeverHitsStore(t *testing.T) {
	for caseName, tc := range map[string]struct {
		sticker Sticker
		wantErr error
	}{
		"no name": {
			sticker: Sticker{Kind: KindText, Message: "hi"},
			wantErr: ErrNameMissing,
		},
		"bad kind": {
			sticker: Sticker{Name: "x", Kind: "gif", Message: "hi"},
			wantErr: ErrInvalidKind,
		},
		"message too long": {
			sticker: Sticker{
				Name:    "x",
				Kind:    KindText,
				Message: strings.Repeat("a", MaxMessageLength+1),
			},
			wantErr: ErrMessageTooLong,
		},
		"blank drawing": {
			sticker: Sticker{Name: "x", Kind: KindDrawing},
			wantErr: ErrDrawingMissing,
		},
	} {
		t.Run(caseName, func(t *testing.T) {
			repo := NewMockRepo()
			m := metrics.NewTestManager()
			r, _ := setupStickersRouterForTests(t, repo, m, allowAllRateLimiter{})

			body, err := json.Marshal(tc.sticker)
			require.NoError(t, err)
			req, err := http.NewRequest("POST", "/stickers", bytes.NewReader(body))
			require.NoError(t, err)
			req.Header.Set("Origin", "test")
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			r.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.wantErr.Error())
			// rejected before any store call
			assert.Equal(t, 0, repo.AddCalls)
		})
	}
}

func TestHandler_handleNewSticker_storeError(t *testing.T) {
	repo := NewMockRepo()
	repo.AddErr = errors.New("pg is gone")
	r, _ := setupStickersRouterForTests(t, repo, metrics.NewTestManager(), allowAllRateLimiter{})

	body, err := json.Marshal(Sticker{Name: "ada", Kind: KindText, Message: "hi"})
	require.NoError(t, err)
	req, err := http.NewRequest("POST", "/stickers", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to store sticker")
}

func TestHandler_handleNewSticker_rateLimited(t *testing.T) {
	repo := NewMockRepo()
	r, _ := setupStickersRouterForTests(t, repo, metrics.NewTestManager(), denyAllRateLimiter{})

	body, err := json.Marshal(Sticker{Name: "ada", Kind: KindText, Message: "hi"})
	require.NoError(t, err)
	req, err := http.NewRequest("POST", "/stickers", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, 0, repo.AddCalls)
}

func TestHandler_handleStickersCount(t *testing.T) {
	repo := NewMockRepo()
	for i := 0; i < 5; i++ {
		_, err := repo.Add(context.Background(), Sticker{
			Name:    fmt.Sprintf("visitor %d", i),
			Kind:    KindText,
			Message: "hi",
		})
		require.NoError(t, err)
	}

	r, _ := setupStickersRouterForTests(t, repo, metrics.NewTestManager(), allowAllRateLimiter{})

	req, err := http.NewRequest("GET", "/stickers/count", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"count":5}`, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestHandler_listCacheInvalidatedOnNewSticker(t *testing.T) {
	repo := NewMockRepo()
	r, _ := setupStickersRouterForTests(t, repo, metrics.NewTestManager(), allowAllRateLimiter{})

	getAll := func() {
		req, err := http.NewRequest("GET", "/stickers", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "test")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	_, err := repo.Add(context.Background(), Sticker{Name: "a", Kind: KindText, Message: "1"})
	require.NoError(t, err)

	getAll()
	getAll()
	// second read served from cache
	assert.Equal(t, 1, repo.ListCalls)

	body, err := json.Marshal(Sticker{Name: "b", Kind: KindText, Message: "2"})
	require.NoError(t, err)
	req, err := http.NewRequest("POST", "/stickers", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	getAll()
	// the insert dropped the cached list
	assert.Equal(t, 2, repo.ListCalls)
}

func TestHandler_handleSubscribe_receivesNewStickers(t *testing.T) {
	repo := NewMockRepo()
	r, hub := setupStickersRouterForTests(t, repo, metrics.NewTestManager(), allowAllRateLimiter{})

	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/stickers"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"test"}})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, conn.Close())
	}()
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	require.Eventually(t, func() bool {
		return hub.SubscribersCount() == 1
	}, time.Second, 10*time.Millisecond)

	body, err := json.Marshal(Sticker{Name: "ada", Kind: KindText, Message: "live!"})
	require.NoError(t, err)
	req, err := http.NewRequest("POST", server.URL+"/stickers", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	req.Header.Set("Content-Type", "application/json")
	postResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, postResp.StatusCode)
	require.NoError(t, postResp.Body.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "sticker:new", event.Type)
	assert.Equal(t, "ada", event.Sticker.Name)
	assert.Equal(t, "live!", event.Sticker.Message)
	assert.NotEqual(t, uuid.Nil, event.Sticker.ID)
}
