package inference_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/inference"
)

func newTestEngine(baseURL string) *inference.Engine {
	return inference.NewEngine(baseURL, "gemma2:latest", 0.8, 5*time.Second, zap.NewNop())
}

func ollamaStub(t *testing.T, response string, wantPromptURL string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gemma2:latest" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		if wantPromptURL != "" && !strings.Contains(req.Prompt, wantPromptURL) {
			t.Errorf("prompt missing URL %q: %s", wantPromptURL, req.Prompt)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
}

// Test: a clean single-name completion comes back verbatim with the
// configured confidence and model stamped on.
func TestInfer_CleanCompletion(t *testing.T) {
	srv := ollamaStub(t, "payment_service", "http://payment-gateway.internal/api/charge")
	defer srv.Close()

	inf, err := newTestEngine(srv.URL).Infer(context.Background(), "service_a", "http://payment-gateway.internal/api/charge", "post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inf == nil {
		t.Fatal("expected an inference")
	}
	if inf.Callee != "payment_service" {
		t.Errorf("expected payment_service, got %s", inf.Callee)
	}
	if inf.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %f", inf.Confidence)
	}
	if inf.Model != "gemma2:latest" {
		t.Errorf("expected model gemma2:latest, got %s", inf.Model)
	}
	if inf.RawResponse != "payment_service" {
		t.Errorf("expected raw response retained, got %q", inf.RawResponse)
	}
}

// Test: markdown emphasis, quotes and trailing explanation lines are all
// stripped down to the bare service name, but the raw response survives.
func TestInfer_VerboseCompletion(t *testing.T) {
	raw := "**\"payment_service\"**\nI believe this URL points at the payment component."
	srv := ollamaStub(t, raw, "")
	defer srv.Close()

	inf, err := newTestEngine(srv.URL).Infer(context.Background(), "service_a", "http://payment-gateway.internal/api/charge", "post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inf == nil {
		t.Fatal("expected an inference")
	}
	if inf.Callee != "payment_service" {
		t.Errorf("expected payment_service, got %q", inf.Callee)
	}
	if inf.RawResponse != raw {
		t.Errorf("expected raw response retained verbatim, got %q", inf.RawResponse)
	}
}

// Test: an empty or whitespace-only completion is "no result", not an error.
func TestInfer_EmptyCompletion(t *testing.T) {
	srv := ollamaStub(t, "   \n  ", "")
	defer srv.Close()

	inf, err := newTestEngine(srv.URL).Infer(context.Background(), "service_a", "http://x/y", "get")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inf != nil {
		t.Fatalf("expected no inference, got %+v", inf)
	}
}

// Test: non-200 responses are transport-level errors.
func TestInfer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	inf, err := newTestEngine(srv.URL).Infer(context.Background(), "service_a", "http://x/y", "get")
	if err == nil {
		t.Fatal("expected error")
	}
	if inf != nil {
		t.Fatalf("expected no inference, got %+v", inf)
	}
}

// Test: an unreachable endpoint surfaces as an error.
func TestInfer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed immediately: connection refused

	_, err := newTestEngine(srv.URL).Infer(context.Background(), "service_a", "http://x/y", "get")
	if err == nil {
		t.Fatal("expected error")
	}
}

// Test: malformed JSON from the endpoint is an error, not a silent skip.
func TestInfer_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newTestEngine(srv.URL).Infer(context.Background(), "service_a", "http://x/y", "get")
	if err == nil {
		t.Fatal("expected error")
	}
}

// Test: context cancellation aborts the request.
func TestInfer_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(srv.URL).Infer(ctx, "service_a", "http://x/y", "get")
	if err == nil {
		t.Fatal("expected error")
	}
}
