package lastcommit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aboudjelida/aimenboudev/internal/telemetry/tracing"
	"github.com/aboudjelida/aimenboudev/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	commitCacheKey = "lastcommit::current"
	commitCacheTTL = 10 * time.Minute
)

type Handler struct {
	client      *Client
	fallback    Commit
	redisClient *redis.Client
}

func NewHandler(client *Client, redisClient *redis.Client) *Handler {
	return &Handler{
		client: client,
		fallback: Commit{
			Date: "2025-08-09",
			URL:  fmt.Sprintf("https://github.com/%s/%s", client.owner, client.repo),
		},
		redisClient: redisClient,
	}
}

func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/lastcommit", h.handleLastCommit).Methods("GET").Name("last-commit")
}

// handleLastCommit always serves a commit; on github trouble (the
// unauthenticated rate limit mostly) the static fallback.
func (h *Handler) handleLastCommit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "lastCommitHandler.current")
	defer span.End()

	if cached := h.cachedCommit(ctx); cached != "" {
		pkg.WriteJSONResponseOK(w, cached)
		return
	}

	commit, err := h.client.LatestCommit(ctx)
	if err != nil {
		log.Errorf("get latest commit: %s", err)
		pkg.SendJsonResponse(w, http.StatusOK, h.fallback)
		return
	}

	commitJson, err := json.Marshal(commit)
	if err != nil {
		log.Errorf("marshal latest commit: %s", err)
		pkg.SendJsonResponse(w, http.StatusOK, h.fallback)
		return
	}

	h.cacheCommit(ctx, commitJson)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, commitJson)
}

func (h *Handler) cachedCommit(ctx context.Context) string {
	if h.redisClient == nil {
		return ""
	}
	cached, err := h.redisClient.Get(ctx, commitCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Errorf("get cached latest commit: %s", err)
		}
		return ""
	}
	return cached
}

func (h *Handler) cacheCommit(ctx context.Context, commitJson []byte) {
	if h.redisClient == nil {
		return
	}
	if err := h.redisClient.Set(ctx, commitCacheKey, commitJson, commitCacheTTL).Err(); err != nil {
		log.Errorf("cache latest commit: %s", err)
	}
}
