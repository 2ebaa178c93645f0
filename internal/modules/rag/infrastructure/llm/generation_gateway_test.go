package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSuccess(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "Paris is the capital of France."})
	}))
	defer srv.Close()

	g := NewOllamaGateway(srv.URL, "mistral", 5*time.Second)
	answer := g.Generate(context.Background(), "What is the capital of France?")

	assert.Equal(t, "Paris is the capital of France.", answer)
	assert.Equal(t, "mistral", gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.Contains(t, gotReq.Prompt, "capital of France")
}

func TestGenerateNon200ReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewOllamaGateway(srv.URL, "mistral", 5*time.Second)
	assert.Equal(t, FallbackAnswer, g.Generate(context.Background(), "q"))
}

func TestGenerateBadJSONReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	g := NewOllamaGateway(srv.URL, "mistral", 5*time.Second)
	assert.Equal(t, FallbackAnswer, g.Generate(context.Background(), "q"))
}

func TestGenerateEmptyResponseReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Response: ""})
	}))
	defer srv.Close()

	g := NewOllamaGateway(srv.URL, "mistral", 5*time.Second)
	assert.Equal(t, FallbackAnswer, g.Generate(context.Background(), "q"))
}

func TestGenerateUnreachableReturnsFallback(t *testing.T) {
	g := NewOllamaGateway("http://127.0.0.1:1", "mistral", time.Second)
	assert.Equal(t, FallbackAnswer, g.Generate(context.Background(), "q"))
}

func TestGenerateTimeoutReturnsFallback(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	g := NewOllamaGateway(srv.URL, "mistral", 100*time.Millisecond)
	start := time.Now()
	answer := g.Generate(context.Background(), "q")

	assert.Equal(t, FallbackAnswer, answer)
	// 降级应在超时阈值附近返回，不会无界等待
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGenerateTrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer srv.Close()

	g := NewOllamaGateway(srv.URL+"/", "mistral", 5*time.Second)
	assert.Equal(t, "ok", g.Generate(context.Background(), "q"))
}
