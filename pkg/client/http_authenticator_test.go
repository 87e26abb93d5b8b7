package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPAuthenticator_SuccessfulLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != loginPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body loginRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Email != "user@example.com" || body.Password != "secret1" {
			t.Errorf("unexpected credentials %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"token": "tok_1", "subscription_active": true},
		})
	}))
	defer srv.Close()

	auth := NewHTTPAuthenticator(srv.URL, srv.Client())
	result, err := auth.Login(context.Background(), "user@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token != "tok_1" || !result.SubscriptionActive {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestHTTPAuthenticator_UnauthorizedMapsToNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	auth := NewHTTPAuthenticator(srv.URL, srv.Client())
	_, err := auth.Login(context.Background(), "user@example.com", "secret1")
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestHTTPAuthenticator_ServerErrorIsHard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	auth := NewHTTPAuthenticator(srv.URL, srv.Client())
	_, err := auth.Login(context.Background(), "user@example.com", "secret1")
	if err == nil || errors.Is(err, ErrNotReady) {
		t.Fatalf("expected hard error, got %v", err)
	}
}
