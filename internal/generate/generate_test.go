// internal/generate/generate_test.go
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/template"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boardJSON(categories, rows int) string {
	var b template.Board
	for i := 0; i < categories; i++ {
		cat := template.BoardCategory{Title: fmt.Sprintf("Category %d", i+1)}
		for j := 0; j < rows; j++ {
			cat.Clues = append(cat.Clues, template.BoardClue{
				Points: (j + 1) * 100,
				Prompt: fmt.Sprintf("Prompt %d-%d", i, j),
				Answer: fmt.Sprintf("Answer %d-%d", i, j),
			})
		}
		b.Categories = append(b.Categories, cat)
	}
	out, _ := json.Marshal(b)
	return string(out)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *clockwork.FakeClock) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	clock := clockwork.NewFakeClock()
	c := New(Config{
		ResponsesURL: srv.URL + "/v1/responses",
		ImagesURL:    srv.URL + "/v1/images/generations",
		APIKey:       "sk-test",
		MinInterval:  10 * time.Second,
		HTTPClient:   srv.Client(),
		Clock:        clock,
	})
	return c, clock
}

func TestGenerateBoard(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		body, _ := json.Marshal(map[string]any{
			"output": []any{map[string]any{"content": []any{map[string]any{
				"type": "output_text",
				"text": "```json\n" + boardJSON(6, 5) + "\n```",
			}}}},
		})
		_, _ = w.Write(body)
	})

	board, err := c.GenerateBoard(context.Background(), "rivers", models.DefaultSettings())
	require.NoError(t, err)
	assert.Len(t, board.Categories, 6)
	assert.Len(t, board.Categories[0].Clues, 5)
	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.Contains(t, got["input"], "Topic: rivers")
}

func TestGenerateBoardRejectsWrongShape(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{"output_text": boardJSON(5, 5)})
		_, _ = w.Write(body)
	})
	_, err := c.GenerateBoard(context.Background(), "rivers", models.DefaultSettings())
	require.Error(t, err)
	assert.Equal(t, KindMalformedOutput, KindOf(err))
}

func TestGenerateBoardRejectsProse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output_text":"Sure! Here are some questions about rivers."}`))
	})
	_, err := c.GenerateBoard(context.Background(), "rivers", models.DefaultSettings())
	assert.Equal(t, KindMalformedOutput, KindOf(err))
}

func TestGenerateErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"quota", http.StatusTooManyRequests, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, KindQuotaExceeded},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`, KindOverloaded},
		{"overloaded", http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`, KindOverloaded},
		{"server error", http.StatusInternalServerError, `oops`, KindOverloaded},
		{"policy", http.StatusBadRequest, `{"error":{"message":"rejected","code":"content_policy_violation"}}`, KindPolicyBlocked},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, KindUnauthorized},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"project not allowed"}}`, KindUnauthorized},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad model"}}`, KindMalformedOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.GenerateBoard(context.Background(), "rivers", models.DefaultSettings())
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestGenerateRefusal(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[{"content":[{"type":"refusal","refusal":"I can't help with that."}]}]}`))
	})
	_, err := c.GenerateBoard(context.Background(), "rivers", models.DefaultSettings())
	assert.Equal(t, KindPolicyBlocked, KindOf(err))
}

func TestGenerateIsThrottled(t *testing.T) {
	calls := 0
	c, clock := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := json.Marshal(map[string]any{"output_text": boardJSON(6, 5)})
		_, _ = w.Write(body)
	})
	ctx := context.Background()

	_, err := c.GenerateBoard(ctx, "rivers", models.DefaultSettings())
	require.NoError(t, err)
	_, err = c.GenerateBoard(ctx, "lakes", models.DefaultSettings())
	assert.Equal(t, KindBusy, KindOf(err))
	_, err = c.GenerateVisual(ctx, "a river")
	assert.Equal(t, KindBusy, KindOf(err), "boards and visuals share the limit")
	assert.Equal(t, 1, calls)

	clock.Advance(10 * time.Second)
	_, err = c.GenerateBoard(ctx, "lakes", models.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGenerateVisual(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, strings.HasSuffix(req["prompt"].(string), "the Nile delta"))
		body, _ := json.Marshal(map[string]any{"data": []any{map[string]any{"b64_json": png}}})
		_, _ = w.Write(body)
	})
	v, err := c.GenerateVisual(context.Background(), "the Nile delta")
	require.NoError(t, err)
	assert.Equal(t, png, v.Data)
	assert.Equal(t, "image/png", v.MediaType)
	assert.True(t, strings.HasPrefix(v.DataURL(), "data:image/png;base64,"))

	assert.Equal(t, "https://cdn/x.png", Visual{URL: "https://cdn/x.png"}.DataURL())
}

func TestGenerateNotConfigured(t *testing.T) {
	c := New(Config{})
	_, err := c.GenerateBoard(context.Background(), "rivers", models.DefaultSettings())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.GenerateVisual(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
