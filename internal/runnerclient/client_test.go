package runnerclient

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonsson/defcon/internal/jwtkeys"
	"github.com/jonsson/defcon/internal/model"
)

func generateRunnerKeyPair(t *testing.T) *jwtkeys.RunnerKeys {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes})
	keys, err := jwtkeys.LoadRunnerPrivateKey(privPEM)
	if err != nil {
		t.Fatalf("load private key: %v", err)
	}
	return keys
}

func TestStaleChecksSendsBearerTokenAndParsesResponse(t *testing.T) {
	keys := generateRunnerKeyPair(t)

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/runner/checks" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]runnerCheckPayload{
			{UUID: "abc", Name: "ping google", Interval: model.NewDuration(time.Minute), Spec: model.Spec{Kind: model.KindPing}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "eu-1", keys, 5*time.Second)
	stale, err := c.StaleChecks("eu-1")
	if err != nil {
		t.Fatalf("StaleChecks: %v", err)
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Fatalf("expected Bearer token, got %q", gotAuth)
	}
	if len(stale) != 1 || stale[0].Check.UUID != "abc" || stale[0].Site != "eu-1" || stale[0].Check.Kind != model.KindPing {
		t.Fatalf("unexpected stale checks: %+v", stale)
	}
}

func TestIngestPostsReportAndExpectsNoContent(t *testing.T) {
	keys := generateRunnerKeyPair(t)

	var gotBody runnerReportRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/runner/report" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "eu-1", keys, 5*time.Second)
	check := &model.Check{UUID: "abc"}
	if err := c.Ingest(check, "eu-1", model.StatusCritical, "boom"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if gotBody.Check != "abc" || gotBody.Status != model.StatusCritical || gotBody.Message != "boom" {
		t.Fatalf("unexpected report body: %+v", gotBody)
	}
}

func TestIngestReturnsErrorOnUnexpectedStatus(t *testing.T) {
	keys := generateRunnerKeyPair(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "eu-1", keys, 5*time.Second)
	check := &model.Check{UUID: "abc"}
	if err := c.Ingest(check, "eu-1", model.StatusOK, ""); err == nil {
		t.Fatalf("expected error on 500 response")
	}
}
