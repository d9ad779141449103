package reading

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultEndpoint = "https://literal.club/graphql/"

	tokenCacheKey = "literal::token"
	tokenCacheTTL = 12 * time.Hour
)

var ErrNotConfigured = errors.New("literal.club credentials not configured")

// Book is what the reading widget renders.
type Book struct {
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Cover  string `json:"cover"`
}

// Client talks to the literal.club graphql api: a login mutation for a
// bearer token, then the reading states query. The token is kept in
// redis so restarts do not re-login.
type Client struct {
	endpoint    string
	email       string
	password    string
	httpClient  *http.Client
	redisClient *redis.Client
}

func NewClient(
	endpoint string,
	email string,
	password string,
	httpClient *http.Client,
	redisClient *redis.Client,
) *Client {
	return &Client{
		endpoint:    endpoint,
		email:       email,
		password:    password,
		httpClient:  httpClient,
		redisClient: redisClient,
	}
}

func (c *Client) Configured() bool {
	return c.email != "" && c.password != ""
}

const loginMutation = `
	mutation login($email: String!, $password: String!) {
		login(email: $email, password: $password) {
			token
		}
	}
`

const myReadingStatesQuery = `
	query myReadingStates {
		myReadingStates {
			status
			book {
				slug
				title
				cover
				authors {
					name
				}
			}
		}
	}
`

type graphqlRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables,omitempty"`
}

type loginResponse struct {
	Data struct {
		Login struct {
			Token string `json:"token"`
		} `json:"login"`
	} `json:"data"`
}

type readingStatesResponse struct {
	Data struct {
		MyReadingStates []struct {
			Status string `json:"status"`
			Book   struct {
				Slug    string `json:"slug"`
				Title   string `json:"title"`
				Cover   string `json:"cover"`
				Authors []struct {
					Name string `json:"name"`
				} `json:"authors"`
			} `json:"book"`
		} `json:"myReadingStates"`
	} `json:"data"`
}

// CurrentlyReading returns the latest book on the IS_READING shelf.
func (c *Client) CurrentlyReading(ctx context.Context) (Book, error) {
	if !c.Configured() {
		return Book{}, ErrNotConfigured
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return Book{}, fmt.Errorf("get access token: %w", err)
	}

	var states readingStatesResponse
	if err := c.query(ctx, token, graphqlRequest{Query: myReadingStatesQuery}, &states); err != nil {
		return Book{}, fmt.Errorf("query reading states: %w", err)
	}

	// the newest IS_READING shelf entry is the last one
	for i := len(states.Data.MyReadingStates) - 1; i >= 0; i-- {
		state := states.Data.MyReadingStates[i]
		if state.Status != "IS_READING" {
			continue
		}
		book := Book{
			Slug:  state.Book.Slug,
			Title: state.Book.Title,
			Cover: state.Book.Cover,
		}
		if len(state.Book.Authors) > 0 {
			book.Author = state.Book.Authors[0].Name
		}
		return book, nil
	}

	return Book{}, errors.New("no book on the reading shelf")
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.redisClient != nil {
		token, err := c.redisClient.Get(ctx, tokenCacheKey).Result()
		if err == nil && token != "" {
			return token, nil
		}
		if err != nil && err != redis.Nil {
			log.Errorf("get cached literal token: %s", err)
		}
	}

	var login loginResponse
	err := c.query(ctx, "", graphqlRequest{
		Query: loginMutation,
		Variables: map[string]string{
			"email":    c.email,
			"password": c.password,
		},
	}, &login)
	if err != nil {
		return "", err
	}

	token := login.Data.Login.Token
	if token == "" {
		return "", errors.New("no token in login response")
	}

	if c.redisClient != nil {
		if err := c.redisClient.Set(ctx, tokenCacheKey, token, tokenCacheTTL).Err(); err != nil {
			log.Errorf("cache literal token: %s", err)
		}
	}

	return token, nil
}

func (c *Client) query(ctx context.Context, token string, gqlReq graphqlRequest, response any) error {
	reqBody, err := json.Marshal(gqlReq)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
