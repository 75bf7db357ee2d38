package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"
)

func TestHTTPClientInvoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %s", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected message roles: %s, %s", req.Messages[0].Role, req.Messages[1].Role)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("expected response_format json_object")
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "glossary_lookup" {
			t.Errorf("unexpected tools: %+v", req.Tools)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"lines":[]}`}},
			},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 15},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key", "test-model", 5*time.Second, nil)
	resp, err := client.Invoke(context.Background(), Request{
		System:       "You are a translator.",
		User:         "Translate this.",
		Tools:        []ToolSpec{{Name: "glossary_lookup", Description: "Look up a term."}},
		OutputSchema: "translation_result",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Content != `{"lines":[]}` {
		t.Errorf("unexpected content: %s", resp.Content)
	}
	if resp.PromptTokens != 120 || resp.OutputTokens != 15 {
		t.Errorf("unexpected usage: %d / %d", resp.PromptTokens, resp.OutputTokens)
	}
}

func TestHTTPClientInvokeModelOverride(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", "default-model", 5*time.Second, nil)

	if _, err := client.Invoke(context.Background(), Request{System: "s", User: "u"}); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if gotModel != "default-model" {
		t.Errorf("expected default model, got %s", gotModel)
	}

	if _, err := client.Invoke(context.Background(), Request{Model: "pinned", System: "s", User: "u"}); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if gotModel != "pinned" {
		t.Errorf("expected pinned model, got %s", gotModel)
	}
}

func TestHTTPClientInvokeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", "m", 5*time.Second, nil)
	_, err := client.Invoke(context.Background(), Request{System: "s", User: "u"})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status code in error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected body snippet in error, got: %v", err)
	}
}

func TestHTTPClientInvokeErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "model not found", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", "m", 5*time.Second, nil)
	_, err := client.Invoke(context.Background(), Request{System: "s", User: "u"})
	if err == nil {
		t.Fatal("expected error for error payload")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected endpoint message in error, got: %v", err)
	}
}

func TestHTTPClientInvokeEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", "m", 5*time.Second, nil)
	_, err := client.Invoke(context.Background(), Request{System: "s", User: "u"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if !strings.Contains(err.Error(), "no choices") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMockDefaults(t *testing.T) {
	m := &Mock{}
	resp, err := m.Invoke(context.Background(), Request{System: "s", User: "u"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Content != "{}" {
		t.Errorf("expected default content {}, got %s", resp.Content)
	}
	m.Invoke(context.Background(), Request{})
	if got := m.Calls(); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}

func TestMockDelegate(t *testing.T) {
	m := &Mock{Fn: func(ctx context.Context, req Request) (*Response, error) {
		if req.User == "fail" {
			return nil, errors.New("scripted failure")
		}
		return &Response{Content: "scripted"}, nil
	}}

	resp, err := m.Invoke(context.Background(), Request{User: "ok"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Content != "scripted" {
		t.Errorf("unexpected content: %s", resp.Content)
	}

	if _, err := m.Invoke(context.Background(), Request{User: "fail"}); err == nil {
		t.Error("expected scripted failure")
	}
}

func TestLimiterBurst(t *testing.T) {
	l := NewLimiter(1, 3)
	defer l.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		start := time.Now()
		if err := l.Wait(ctx, "endpoint"); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("Wait %d blocked for %v within burst", i, elapsed)
		}
	}

	ok, delay := l.take("endpoint")
	if ok {
		t.Error("expected bucket exhausted after burst")
	}
	if delay <= 0 || delay > 2*time.Second {
		t.Errorf("unexpected refill delay: %v", delay)
	}
}

func TestLimiterWaitCancelled(t *testing.T) {
	l := NewLimiter(0.001, 1)
	defer l.Close()

	if err := l.Wait(context.Background(), "endpoint"); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx, "endpoint")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLimiterRefill(t *testing.T) {
	l := NewLimiter(10, 1)
	defer l.Close()

	if ok, _ := l.take("endpoint"); !ok {
		t.Fatal("expected first take to succeed")
	}
	if ok, _ := l.take("endpoint"); ok {
		t.Fatal("expected second take to fail")
	}

	l.mu.Lock()
	l.buckets["endpoint"].lastAccess = time.Now().Add(-time.Second)
	l.mu.Unlock()

	if ok, _ := l.take("endpoint"); !ok {
		t.Error("expected take to succeed after refill window")
	}
}

func TestLimiterEvictStale(t *testing.T) {
	l := NewLimiter(1, 1)
	defer l.Close()

	l.take("stale")
	l.take("fresh")

	l.mu.Lock()
	l.buckets["stale"].lastAccess = time.Now().Add(-time.Hour)
	l.mu.Unlock()

	l.evictStale()

	l.mu.Lock()
	_, staleExists := l.buckets["stale"]
	_, freshExists := l.buckets["fresh"]
	l.mu.Unlock()

	if staleExists {
		t.Error("expected stale bucket to be evicted")
	}
	if !freshExists {
		t.Error("expected fresh bucket to survive eviction")
	}
}

func TestNilLimiter(t *testing.T) {
	var l *Limiter
	if err := l.Wait(context.Background(), "any"); err != nil {
		t.Errorf("nil limiter Wait returned error: %v", err)
	}
	l.Close()
}

func TestBoundCapsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	release := make(chan struct{})

	inner := &Mock{Fn: func(ctx context.Context, req Request) (*Response, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		<-release

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &Response{Content: "{}"}, nil
	}}

	c := Bound(inner, semaphore.NewWeighted(2))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Invoke(context.Background(), Request{}); err != nil {
				t.Errorf("Invoke failed: %v", err)
			}
		}()
	}

	// Let the first wave land before opening the gate.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds bound 2", peak)
	}
	if inner.Calls() != 6 {
		t.Errorf("expected 6 calls, got %d", inner.Calls())
	}
}

func TestBoundCancelledWaiter(t *testing.T) {
	sem := semaphore.NewWeighted(1)
	if err := sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("priming acquire failed: %v", err)
	}
	defer sem.Release(1)

	c := Bound(&Mock{}, sem)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Invoke(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBoundNilSemaphore(t *testing.T) {
	inner := &Mock{}
	if c := Bound(inner, nil); c != Client(inner) {
		t.Error("expected nil semaphore to return the inner client unchanged")
	}
}
