package nowplaying

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
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
)

const (
	nowPlayingCacheKey = "nowplaying::current"
	nowPlayingCacheTTL = time.Minute
)

// Player is the slice of the spotify client the widget needs.
type Player interface {
	PlayerCurrentlyPlaying(ctx context.Context, opts ...spotify.RequestOption) (*spotify.CurrentlyPlaying, error)
	PlayerRecentlyPlayed(ctx context.Context) ([]spotify.RecentlyPlayedItem, error)
}

type Handler struct {
	auth               *spotifyauth.Authenticator
	player             Player
	redisClient        *redis.Client
	randStateGenerator func() string
	state              string
}

// NewHandler sets up the now playing widget. With no client id the auth
// flow is disabled and the widget serves the static fallback forever.
func NewHandler(
	redirectURI string,
	spotifyClientID string,
	spotifyClientSecret string,
	randStateGenerator func() string,
	redisClient *redis.Client,
) *Handler {
	h := &Handler{
		randStateGenerator: randStateGenerator,
		redisClient:        redisClient,
	}
	if spotifyClientID != "" {
		h.auth = spotifyauth.New(
			spotifyauth.WithRedirectURL(redirectURI),
			spotifyauth.WithScopes(
				spotifyauth.ScopeUserReadCurrentlyPlaying,
				spotifyauth.ScopeUserReadRecentlyPlayed,
			),
			spotifyauth.WithClientID(spotifyClientID),
			spotifyauth.WithClientSecret(spotifyClientSecret),
		)
	}
	return h
}

func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/nowplaying", h.handleNowPlaying).Methods("GET").Name("now-playing")
	router.HandleFunc("/spotify/auth", h.handleAuthenticate).Methods("GET").Name("spotify-auth")
	router.HandleFunc("/spotify/auth/redirect", h.handleAuthRedirect).Methods("GET").Name("spotify-auth-redirect")
}

// handleNowPlaying always serves a song, the widget must render no
// matter what state spotify is in.
func (h *Handler) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "nowPlayingHandler.current")
	defer span.End()

	if cached := h.cachedSong(ctx); cached != "" {
		pkg.WriteJSONResponseOK(w, cached)
		return
	}

	song := h.currentSong(ctx)

	songJson, err := json.Marshal(song)
	if err != nil {
		log.Errorf("marshal now playing song: %s", err)
		pkg.SendJsonResponse(w, http.StatusOK, fallbackSong)
		return
	}

	h.cacheSong(ctx, songJson)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, songJson)
}

func (h *Handler) currentSong(ctx context.Context) Song {
	if h.player == nil {
		return fallbackSong
	}

	current, err := h.player.PlayerCurrentlyPlaying(ctx)
	if err != nil {
		log.Errorf("get currently playing: %s", err)
	} else if current != nil && current.Playing && current.Item != nil {
		return songFromFullTrack(current.Item, true)
	}

	// nothing on right now, show what played last
	recent, err := h.player.PlayerRecentlyPlayed(ctx)
	if err != nil {
		log.Errorf("get recently played: %s", err)
		return fallbackSong
	}
	if len(recent) == 0 {
		return fallbackSong
	}

	return songFromSimpleTrack(recent[0].Track)
}

func (h *Handler) cachedSong(ctx context.Context) string {
	if h.redisClient == nil {
		return ""
	}
	cached, err := h.redisClient.Get(ctx, nowPlayingCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Errorf("get cached now playing song: %s", err)
		}
		return ""
	}
	return cached
}

func (h *Handler) cacheSong(ctx context.Context, songJson []byte) {
	if h.redisClient == nil {
		return
	}
	if err := h.redisClient.Set(ctx, nowPlayingCacheKey, songJson, nowPlayingCacheTTL).Err(); err != nil {
		log.Errorf("cache now playing song: %s", err)
	}
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "nowPlayingHandler.authenticate")
	defer span.End()

	if h.auth == nil {
		http.Error(w, "spotify not configured", http.StatusNotFound)
		return
	}

	h.state = h.randStateGenerator()
	redirectURL := h.auth.AuthURL(h.state)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *Handler) handleAuthRedirect(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "nowPlayingHandler.authRedirect")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if h.auth == nil {
		http.Error(w, "spotify not configured", http.StatusNotFound)
		return
	}

	tok, err := h.auth.Token(ctx, h.state, r)
	if err != nil {
		http.Error(w, "failed to get token", http.StatusForbidden)
		log.Errorf("failed to get token: %v", err)
		return
	}
	if st := r.FormValue("state"); st != h.state {
		http.Error(w, "state mismatch", http.StatusForbidden)
		log.Errorf("state mismatch: %s != %s", st, h.state)
		return
	}

	// redirect to the main page
	http.Redirect(w, r, "/", http.StatusFound)

	// let the request finish, and we set the spotify client in a new goroutine
	go func() {
		var err error
		innerCtx, innerSpan := tracing.GlobalTracer.Start(
			context.WithoutCancel(ctx),
			"nowPlayingHandler.authRedirect.setClient",
		)
		defer func() {
			tracing.EndSpanWithErrCheck(innerSpan, err)
		}()

		client := spotify.New(h.auth.Client(innerCtx, tok))

		u, err := client.CurrentUser(innerCtx)
		if err != nil {
			log.Errorf("failed to get current user: %s", err)
		} else {
			log.Debugf("authenticated as: %s", u.DisplayName)
		}

		h.player = client

		// a stale song might be cached from before auth
		if h.redisClient != nil {
			if err := h.redisClient.Del(innerCtx, nowPlayingCacheKey).Err(); err != nil {
				log.Errorf("drop cached now playing song: %s", err)
			}
		}
	}()
}
