package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

const ollamaSystemPrompt = "Eres un analizador de sentimiento. Responde solo con un número entre -1 y 1, " +
	"donde -1 es muy negativo, 0 es neutro y 1 es muy positivo."

var numberPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// OllamaScorer asks a local Ollama model to rate the text.
type OllamaScorer struct {
	endpoint string
	model    string
	client   *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllamaScorer(endpoint, model string) *OllamaScorer {
	if model == "" {
		model = "llama3.2:latest"
	}
	return &OllamaScorer{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   http.DefaultClient,
	}
}

func (g *OllamaScorer) Score(ctx context.Context, text string) (float64, error) {
	payload := ollamaRequest{
		Model:   g.model,
		Prompt:  text,
		System:  ollamaSystemPrompt,
		Stream:  false,
		Options: ollamaOptions{Temperature: 0, NumPredict: 8},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("ollama returned status %s", resp.Status)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode ollama response: %w", err)
	}
	return parseScore(out.Response)
}

// parseScore extracts the first number in a model reply. Replies without a
// number count as no signal.
func parseScore(reply string) (float64, error) {
	match := numberPattern.FindString(reply)
	if match == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(match, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("parse score %q: %w", match, err)
	}
	return clamp(v), nil
}
