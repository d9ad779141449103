package reading

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aboudjelida/aimenboudev/internal/telemetry/tracing"
	"github.com/aboudjelida/aimenboudev/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	readingCacheKey = "reading::current"
	readingCacheTTL = time.Hour
)

// fallbackBook keeps the widget rendering when literal.club is not
// configured or not reachable.
var fallbackBook = Book{
	Slug:   "Tokyo Ghoul",
	Title:  "Tokyo Ghoul",
	Author: "Sui Ishida",
	Cover:  "/images/tokyo-ghoul.jpg",
}

type Handler struct {
	client      *Client
	redisClient *redis.Client
}

func NewHandler(client *Client, redisClient *redis.Client) *Handler {
	return &Handler{
		client:      client,
		redisClient: redisClient,
	}
}

func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/reading", h.handleReading).Methods("GET").Name("reading")
}

// handleReading always serves a book; on any trouble the fallback one.
func (h *Handler) handleReading(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "readingHandler.current")
	defer span.End()

	if cached := h.cachedBook(ctx); cached != "" {
		pkg.WriteJSONResponseOK(w, cached)
		return
	}

	book, err := h.client.CurrentlyReading(ctx)
	if err != nil {
		if err != ErrNotConfigured {
			log.Errorf("get currently reading: %s", err)
		}
		pkg.SendJsonResponse(w, http.StatusOK, fallbackBook)
		return
	}

	bookJson, err := json.Marshal(book)
	if err != nil {
		log.Errorf("marshal currently reading book: %s", err)
		pkg.SendJsonResponse(w, http.StatusOK, fallbackBook)
		return
	}

	h.cacheBook(ctx, bookJson)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, bookJson)
}

func (h *Handler) cachedBook(ctx context.Context) string {
	if h.redisClient == nil {
		return ""
	}
	cached, err := h.redisClient.Get(ctx, readingCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Errorf("get cached reading book: %s", err)
		}
		return ""
	}
	return cached
}

func (h *Handler) cacheBook(ctx context.Context, bookJson []byte) {
	if h.redisClient == nil {
		return
	}
	if err := h.redisClient.Set(ctx, readingCacheKey, bookJson, readingCacheTTL).Err(); err != nil {
		log.Errorf("cache reading book: %s", err)
	}
}
