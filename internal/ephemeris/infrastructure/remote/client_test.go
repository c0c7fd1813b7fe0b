package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"natal-engine/internal/ephemeris/domain"
)

func TestRawPosition(t *testing.T) {
	var gotAuth, gotBody, gotInstant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/ephemeris/position" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotBody = r.URL.Query().Get("body")
		gotInstant = r.URL.Query().Get("instant")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ra":1.25,"dec":-0.3}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", "secret")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	instant := time.Date(1990, 5, 17, 14, 30, 0, 0, time.UTC)
	eq, err := client.RawPosition(context.Background(), "mars", instant, -23.55, -46.63)
	if err != nil {
		t.Fatalf("raw position: %v", err)
	}
	if eq.RightAscension != 1.25 || eq.Declination != -0.3 {
		t.Fatalf("unexpected position: %+v", eq)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody != "mars" || gotInstant != "1990-05-17T14:30:00Z" {
		t.Fatalf("unexpected query body=%q instant=%q", gotBody, gotInstant)
	}
}

func TestRawPositionNotFoundIsUnknownBody(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client, _ := NewClient(srv.URL, "")
	_, err := client.RawPosition(context.Background(), "chiron", time.Now(), 0, 0)
	if !errors.Is(err, ephemeris.ErrUnknownBody) {
		t.Fatalf("expected ErrUnknownBody, got %v", err)
	}
}

func TestServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "")
	if _, err := client.RawPosition(context.Background(), "sun", time.Now(), 0, 0); !errors.Is(err, ephemeris.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := client.SiderealTime(context.Background(), time.Now(), 0); !errors.Is(err, ephemeris.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMissingFieldsAreNotZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "")
	if _, err := client.RawPosition(context.Background(), "sun", time.Now(), 0, 0); !errors.Is(err, ephemeris.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty payload, got %v", err)
	}
	if _, err := client.SiderealTime(context.Background(), time.Now(), 0); !errors.Is(err, ephemeris.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty payload, got %v", err)
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, _ := NewClient(url, "", WithTimeout(time.Second))
	if _, err := client.SiderealTime(context.Background(), time.Now(), 10); !errors.Is(err, ephemeris.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSiderealTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lon") != "-46.63" {
			t.Errorf("unexpected lon %q", r.URL.Query().Get("lon"))
		}
		_, _ = w.Write([]byte(`{"lst":3.5}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "")
	lst, err := client.SiderealTime(context.Background(), time.Now(), -46.63)
	if err != nil || lst != 3.5 {
		t.Fatalf("unexpected lst=%v err=%v", lst, err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("", ""); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
