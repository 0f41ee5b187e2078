package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access","token_type":"Bearer","refresh_token":"refresh","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/authorize",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestBasicRouter(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle("GET", "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "pong")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
			t.Errorf("GET: got %d %q", rec.Code, rec.Body.String())
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed || !strings.Contains(rec.Header().Get("Allow"), "GET") {
			t.Errorf("POST: got %d allow=%q", rec.Code, rec.Header().Get("Allow"))
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle("GET", "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	handler := Recover(log.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected panic in log, got %q", buf.String())
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=secret", nil))

	out := buf.String()
	if !strings.Contains(out, "/callback") || !strings.Contains(out, "418") {
		t.Errorf("expected path and status in log, got %q", out)
	}
	if strings.Contains(out, "secret") {
		t.Errorf("query string must not be logged: %q", out)
	}
}

func TestOAuthHandler(t *testing.T) {
	tokens := tokenServer(t)

	t.Run("successful exchange", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(tokens.URL), "state")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state&code=good-code", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := <-h.Result()
		if result.Error() != nil || result.Token == nil || result.Token.AccessToken != "access" {
			t.Errorf("unexpected result %+v err=%v", result.Token, result.Error())
		}
	})

	t.Run("invalid state", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(tokens.URL), "state")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=good-code", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if !errors.Is(result.Error(), ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", result.Error())
		}
	})

	t.Run("denied authorization", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(tokens.URL), "state")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state&error=access_denied", nil))

		result := <-h.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected access_denied error, got %v", result.Error())
		}
	})

	t.Run("failed exchange", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(tokens.URL), "state")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state&code=bad", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected exchange error")
		}
	})

	t.Run("second callback rejected", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(tokens.URL), "state")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=state&code=good-code", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state&code=good-code", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}
	})
}

func TestAwaitToken(t *testing.T) {
	tokens := tokenServer(t)

	t.Run("receives token", func(t *testing.T) {
		addr := freeAddr(t)
		var opened string
		flow := AuthFlow{
			Addr:    addr,
			Config:  testConfig(tokens.URL),
			State:   "xyz",
			Timeout: 5 * time.Second,
			Open: func(authURL string) error {
				opened = authURL
				go func() {
					resp, err := http.Get("http://" + addr + "/callback?state=xyz&code=good-code")
					if err == nil {
						resp.Body.Close()
					}
				}()
				return nil
			},
		}

		token, err := AwaitToken(context.Background(), flow)
		if err != nil {
			t.Fatalf("AwaitToken() error = %v", err)
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", token)
		}
		if !strings.Contains(opened, "state=xyz") || !strings.Contains(opened, "access_type=offline") {
			t.Errorf("unexpected auth URL %s", opened)
		}
	})

	t.Run("times out", func(t *testing.T) {
		flow := AuthFlow{Addr: freeAddr(t), Config: testConfig(tokens.URL), State: "xyz", Timeout: 50 * time.Millisecond}
		if _, err := AwaitToken(context.Background(), flow); !errors.Is(err, ErrAuthTimeout) {
			t.Errorf("expected ErrAuthTimeout, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		flow := AuthFlow{Addr: freeAddr(t), Config: testConfig(tokens.URL), State: "xyz"}
		if _, err := AwaitToken(ctx, flow); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("nil config", func(t *testing.T) {
		if _, err := AwaitToken(context.Background(), AuthFlow{}); err == nil {
			t.Error("expected error")
		}
	})
}
