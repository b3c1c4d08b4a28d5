package checkout

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDeleteSession_Success(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "test-key", testLogger())
	if err := client.DeleteSession(context.Background(), "cs_123"); err != nil {
		t.Fatalf("DeleteSession: неожиданная ошибка: %v", err)
	}

	if gotMethod != http.MethodDelete {
		t.Errorf("method: хотели DELETE, получили %s", gotMethod)
	}
	if gotPath != "/v1/checkouts/cs_123" {
		t.Errorf("path: получили %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization: получили %q", gotAuth)
	}
}

func TestDeleteSession_NotFoundIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "test-key", testLogger())
	if err := client.DeleteSession(context.Background(), "cs_gone"); err != nil {
		t.Fatalf("DeleteSession: 404 должен считаться успехом, получили %v", err)
	}
}

func TestDeleteSession_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "test-key", testLogger())
	if err := client.DeleteSession(context.Background(), "cs_busy"); err == nil {
		t.Fatal("DeleteSession: ожидали ошибку для статуса 409")
	}
}

func TestDeletePlan(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "test-key", testLogger())
	if err := client.DeletePlan(context.Background(), "plan_9"); err != nil {
		t.Fatalf("DeletePlan: неожиданная ошибка: %v", err)
	}
	if gotPath != "/v1/plans/plan_9" {
		t.Errorf("path: получили %s", gotPath)
	}
}
