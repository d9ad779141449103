package stickers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aboudjelida/aimenboudev/internal/middleware"
	"github.com/aboudjelida/aimenboudev/internal/telemetry/metrics"
	"github.com/aboudjelida/aimenboudev/internal/telemetry/tracing"
	"github.com/aboudjelida/aimenboudev/pkg"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	api       Api
	hub       *Hub
	listCache *ListCache
	metrics   *metrics.Manager
	upgrader  websocket.Upgrader
}

func NewHandler(
	api Api,
	hub *Hub,
	listCache *ListCache,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		api:       api,
		hub:       hub,
		listCache: listCache,
		metrics:   metricsManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// no origin: curl, tests, native clients
				return origin == "" || middleware.OriginAllowed(origin)
			},
		},
	}
}

func (handler *Handler) SetupRoutes(
	router *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	submitAllowedPerMin int,
) {
	router.Handle(
		"/stickers",
		middleware.RateLimit(rateLimiter, "new-sticker", submitAllowedPerMin, handler.metrics)(
			http.HandlerFunc(handler.handleNewSticker),
		),
	).Methods("POST", "OPTIONS").Name("new-sticker")
	router.HandleFunc("/stickers", handler.handleGetAllStickers).Methods("GET").Name("all-stickers")
	router.HandleFunc("/stickers/count", handler.handleStickersCount).Methods("GET").Name("count-stickers")
	router.HandleFunc("/ws/stickers", handler.handleSubscribe).Methods("GET").Name("subscribe-stickers")
}

// handleGetAllStickers serves the whole board, newest first. A repo
// failure is served as an empty board: the guestbook is non-critical
// and must never take the page down with it.
func (handler *Handler) handleGetAllStickers(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "stickersHandler.all")
	defer span.End()

	if cached, ok := handler.listCache.Get(); ok {
		pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, cached)
		return
	}

	allStickers, err := handler.api.List(ctx)
	if err != nil {
		log.Errorf("get all stickers error: %s", err)
		pkg.WriteJSONResponseOK(w, "[]")
		return
	}

	if len(allStickers) == 0 {
		pkg.WriteJSONResponseOK(w, "[]")
		return
	}

	stickersJson, err := json.Marshal(allStickers)
	if err != nil {
		log.Errorf("marshal stickers error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	handler.listCache.Set(stickersJson)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, stickersJson)
}

func (handler *Handler) handleNewSticker(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "stickersHandler.new")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var sticker Sticker
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&sticker); err != nil {
			log.Errorf("store new sticker, unmarshal json params: %s", err)
			http.Error(w, "failed to store sticker", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("add new sticker failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		sticker = Sticker{
			Name:    r.Form.Get("name"),
			Kind:    Kind(r.Form.Get("kind")),
			Message: r.Form.Get("message"),
			Drawing: r.Form.Get("drawing"),
		}
	}

	if err := sticker.Validate(); err != nil {
		handler.metrics.CounterStickersRejected.Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	addedSticker, err := handler.api.Add(ctx, sticker)
	if err != nil {
		log.Errorf("store new sticker error: %s", err)
		http.Error(w, "failed to store sticker", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterStickers.Inc()
	handler.listCache.Invalidate()
	handler.hub.Publish(ctx, addedSticker)

	log.Tracef("new sticker added: [%s] %s", addedSticker.Kind, addedSticker.ID)

	// return the created sticker so the client can optimistically
	// prepend it without a full re-fetch
	pkg.SendJsonResponse(w, http.StatusCreated, addedSticker)
}

func (handler *Handler) handleStickersCount(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "stickersHandler.count")
	defer span.End()

	count, err := handler.api.Count(ctx)
	if err != nil {
		log.Errorf("get stickers count error: %s", err)
		http.Error(w, "failed to get stickers count", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"count":%d}`, count))
}

// handleSubscribe upgrades to a websocket and pushes every committed
// sticker as a board event. Delivery is best-effort, clients de-dup by
// sticker id and fall back to plain list refreshes when the socket dies.
func (handler *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("stickers subscribe, upgrade: %s", err)
		return
	}

	sub := handler.hub.Subscribe()
	defer handler.hub.Unsubscribe(sub)
	defer func() {
		if err := conn.Close(); err != nil {
			log.Tracef("stickers subscribe, close conn: %s", err)
		}
	}()

	log.Tracef("stickers subscriber connected: %s", r.RemoteAddr)

	// writer: hub events -> socket
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for sticker := range sub.Events {
			event := Event{Type: "sticker:new", Sticker: sticker}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}()

	// reader: only there to notice the peer going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	handler.hub.Unsubscribe(sub)
	<-writeDone
}
