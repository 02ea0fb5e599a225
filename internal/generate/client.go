// internal/generate/client.go
package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/template"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Config configures the OpenAI-compatible endpoints and throttling.
type Config struct {
	ResponsesURL string
	ImagesURL    string
	APIKey       string
	Model        string
	ImageModel   string

	// MinInterval is the minimum time between two generation calls.
	MinInterval time.Duration
	// Categories is the exact number of columns a generated board must have.
	Categories int

	HTTPClient *http.Client
	Clock      clockwork.Clock
}

// Client generates boards and clue visuals.
type Client struct {
	cfg     Config
	limiter *rate.Limiter
}

// New builds a Client, filling defaults for anything left empty.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if strings.TrimSpace(cfg.ResponsesURL) == "" {
		cfg.ResponsesURL = "https://api.openai.com/v1/responses"
	}
	if strings.TrimSpace(cfg.ImagesURL) == "" {
		cfg.ImagesURL = "https://api.openai.com/v1/images/generations"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gpt-image-1"
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 5 * time.Second
	}
	if cfg.Categories <= 0 {
		cfg.Categories = 6
	}
	return &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
	}
}

// throttle fails fast instead of queueing a second call inside the interval.
func (c *Client) throttle() error {
	if !c.limiter.AllowN(c.cfg.Clock.Now(), 1) {
		return newError(KindBusy, "another generation ran too recently", nil)
	}
	return nil
}

const boardInstructions = `You write trivia boards for a live quiz show.
Return only JSON of the form {"categories":[{"title":string,"clues":[{"points":int,"prompt":string,"answer":string}]}]}.
Use exactly %d categories with exactly %d clues each. Points must go %s in ascending order within each category.
The prompt is read aloud to contestants; the answer is short.
Topic: %s`

// GenerateBoard asks the model for a full board on topic and checks its shape
// against settings.
func (c *Client) GenerateBoard(ctx context.Context, topic string, settings models.Settings) (template.Board, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return template.Board{}, ErrNotConfigured
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return template.Board{}, fmt.Errorf("topic is required")
	}
	if err := c.throttle(); err != nil {
		return template.Board{}, err
	}

	shape := template.DefaultShape(settings)
	shape.Categories = c.cfg.Categories
	prompt := fmt.Sprintf(boardInstructions, shape.Categories, shape.CluesPerCategory, pointLadder(settings, shape.CluesPerCategory), topic)

	text, err := c.invoke(ctx, prompt)
	if err != nil {
		return template.Board{}, err
	}

	var board template.Board
	if err := json.Unmarshal([]byte(stripFences(text)), &board); err != nil {
		return template.Board{}, newError(KindMalformedOutput, "response is not a board", err)
	}
	if err := board.CheckShape(shape); err != nil {
		return template.Board{}, newError(KindMalformedOutput, "board has the wrong shape", err)
	}
	return board, nil
}

// Visual is a generated clue image. Exactly one of URL or Data is set.
type Visual struct {
	URL       string
	Data      []byte
	MediaType string
}

// DataURL returns the visual as something a clue's mediaUrl can hold.
func (v Visual) DataURL() string {
	if v.URL != "" {
		return v.URL
	}
	return "data:" + v.MediaType + ";base64," + base64.StdEncoding.EncodeToString(v.Data)
}

// GenerateVisual produces an illustration for a clue prompt.
func (c *Client) GenerateVisual(ctx context.Context, prompt string) (Visual, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return Visual{}, ErrNotConfigured
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Visual{}, fmt.Errorf("prompt is required")
	}
	if err := c.throttle(); err != nil {
		return Visual{}, err
	}

	res, err := c.post(ctx, c.cfg.ImagesURL, map[string]any{
		"model":  c.cfg.ImageModel,
		"prompt": "An illustration for a trivia clue, with no text in the image: " + prompt,
		"size":   "1024x1024",
	})
	if err != nil {
		return Visual{}, err
	}
	defer res.Body.Close()

	var payload struct {
		Data []struct {
			URL     string `json:"url"`
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Visual{}, newError(KindMalformedOutput, "decode image response", err)
	}
	if len(payload.Data) == 0 {
		return Visual{}, newError(KindMalformedOutput, "image response has no data", nil)
	}
	img := payload.Data[0]
	if img.URL != "" {
		return Visual{URL: img.URL, MediaType: "image/png"}, nil
	}
	data, err := base64.StdEncoding.DecodeString(img.B64JSON)
	if err != nil || len(data) == 0 {
		return Visual{}, newError(KindMalformedOutput, "image payload is not base64", err)
	}
	return Visual{Data: data, MediaType: http.DetectContentType(data)}, nil
}

func (c *Client) invoke(ctx context.Context, prompt string) (string, error) {
	res, err := c.post(ctx, c.cfg.ResponsesURL, map[string]any{
		"model": c.cfg.Model,
		"input": prompt,
	})
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type    string `json:"type"`
				Text    string `json:"text"`
				Refusal string `json:"refusal"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", newError(KindMalformedOutput, "decode response", err)
	}
	outputText := strings.TrimSpace(payload.OutputText)
	if outputText == "" {
		for _, item := range payload.Output {
			for _, content := range item.Content {
				if content.Type == "refusal" || strings.TrimSpace(content.Refusal) != "" {
					return "", newError(KindPolicyBlocked, "model refused the request", nil)
				}
				if strings.TrimSpace(content.Text) != "" {
					outputText = strings.TrimSpace(content.Text)
					break
				}
			}
			if outputText != "" {
				break
			}
		}
	}
	if outputText == "" {
		return "", newError(KindMalformedOutput, "response missing output text", nil)
	}
	return outputText, nil
}

// post sends a JSON request and maps unsuccessful statuses to typed errors.
// The caller closes the body of a successful response.
func (c *Client) post(ctx context.Context, url string, body map[string]any) (*http.Response, error) {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, newError(KindOverloaded, "request failed", err)
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return nil, classify(res.StatusCode, raw)
}

// classify maps an error response onto a Kind.
func classify(status int, body []byte) *Error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := strings.TrimSpace(payload.Error.Message)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	detail := fmt.Errorf("status %d: %s", status, msg)
	code := strings.ToLower(payload.Error.Code + " " + payload.Error.Type)

	switch {
	case strings.Contains(code, "policy") || strings.Contains(code, "safety") || status == http.StatusUnavailableForLegalReasons:
		return newError(KindPolicyBlocked, "request rejected by content policy", detail)
	case status == http.StatusTooManyRequests && strings.Contains(code, "quota"):
		return newError(KindQuotaExceeded, "usage quota exhausted", detail)
	case status == http.StatusPaymentRequired:
		return newError(KindQuotaExceeded, "usage quota exhausted", detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(KindUnauthorized, "provider rejected the API key", detail)
	case status == http.StatusTooManyRequests || status >= 500:
		return newError(KindOverloaded, "provider is overloaded", detail)
	}
	return newError(KindMalformedOutput, "provider rejected the request", detail)
}

// stripFences removes a Markdown code fence around a JSON body.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func pointLadder(s models.Settings, rows int) string {
	if rows <= 1 || s.MaxPoints <= s.MinPoints {
		return fmt.Sprintf("from %d", s.MinPoints)
	}
	return fmt.Sprintf("from %d to %d", s.MinPoints, s.MaxPoints)
}
