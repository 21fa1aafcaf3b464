package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const systemInstruction = `You are a disciplined swing-trading analyst. ` +
	`Given a stock's technical snapshot, respond ONLY with a JSON object: ` +
	`{"action": "BUY"|"SELL"|"HOLD", "confidence": 1-10, "reasoning": "<one paragraph>"}. ` +
	`Be conservative: recommend BUY or SELL only on clear evidence.`

// GeminiClient calls the Gemini REST API for trade verdicts. A missing API
// key disables the client; every call then returns the fail-safe verdict.
type GeminiClient struct {
	apiKey string
	url    string
	http   *http.Client
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	if apiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, advisory decisions disabled")
	}
	return &GeminiClient{
		apiKey: apiKey,
		url:    fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", model),
		http:   &http.Client{Timeout: 60 * time.Second},
	}
}

// GetDecision sends the prompt to Gemini and parses the JSON verdict out of
// the response. Never returns an error: transport failures, bad payloads and
// schema violations all collapse into FailSafe().
func (c *GeminiClient) GetDecision(ctx context.Context, prompt string) Decision {
	if c.apiKey == "" {
		return FailSafe()
	}

	payload := map[string]interface{}{
		"system_instruction": map[string]interface{}{
			"parts": map[string]interface{}{
				"text": systemInstruction,
			},
		},
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"response_mime_type": "application/json",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal advisory request")
		return FailSafe()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"?key="+c.apiKey, bytes.NewBuffer(body))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build advisory request")
		return FailSafe()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Advisory API call failed")
		return FailSafe()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		log.Error().Int("status", resp.StatusCode).Str("body", string(raw)).Msg("Advisory API error")
		return FailSafe()
	}

	text, err := extractText(resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("Unexpected advisory response structure")
		return FailSafe()
	}

	return Parse(text)
}

// Parse unmarshals and validates the model's JSON verdict, falling back to
// the fail-safe on any violation.
func Parse(text string) Decision {
	var d Decision
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &d); err != nil {
		log.Error().Err(err).Str("raw", text).Msg("Failed to parse advisory JSON output")
		return FailSafe()
	}
	if reason := validate(d); reason != "" {
		log.Error().Str("reason", reason).Str("raw", text).Msg("Advisory verdict failed validation")
		return FailSafe()
	}
	d.Action = strings.ToUpper(strings.TrimSpace(d.Action))
	return d
}

// extractText digs candidates[0].content.parts[0].text out of the Gemini
// response envelope.
func extractText(r io.Reader) (string, error) {
	var result map[string]interface{}
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return "", err
	}
	candidates, ok := result["candidates"].([]interface{})
	if !ok || len(candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate, ok := candidates[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("malformed candidate")
	}
	content, ok := candidate["content"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("malformed content")
	}
	parts, ok := content["parts"].([]interface{})
	if !ok || len(parts) == 0 {
		return "", fmt.Errorf("no parts in content")
	}
	part, ok := parts[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("malformed part")
	}
	text, ok := part["text"].(string)
	if !ok {
		return "", fmt.Errorf("part has no text")
	}
	return text, nil
}
