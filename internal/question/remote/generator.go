package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/internal/question"
)

// Config holds connection details for the question generator service.
type Config struct {
	GeneratorURL string
	GeneratorKey string
	Timeout      time.Duration
}

// Generator implements question.RemoteGenerator over HTTP.
type Generator struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	generateURL string
}

var _ question.RemoteGenerator = (*Generator)(nil)

func NewGenerator(cfg Config, logger zerolog.Logger) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	base := strings.TrimSuffix(cfg.GeneratorURL, "/")

	return &Generator{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:      cfg,
		logger:      logger.With().Str("component", "question_generator").Logger(),
		generateURL: base + "/generate",
	}
}

// Generate requests count fresh items for tier. The generator may answer
// with fewer items than asked for.
func (g *Generator) Generate(ctx context.Context, tier string, count int) ([]question.Item, error) {
	if g.config.GeneratorURL == "" {
		return nil, fmt.Errorf("generator endpoint not configured")
	}

	body, err := json.Marshal(generatorRequest{Level: tier, Count: count})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.generateURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.config.GeneratorKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.config.GeneratorKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var genResp generatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decode generator payload: %w", err)
	}

	items := make([]question.Item, 0, len(genResp.Questions))
	for _, q := range genResp.Questions {
		item, ok := normalize(q)
		if !ok {
			g.logger.Debug().Str("tier", tier).Str("prompt", q.Prompt).Msg("dropping unplayable generated item")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// normalize accepts either an explicit correct_index or an answer string
// that must match one of the options.
func normalize(q generatedQuestion) (question.Item, bool) {
	correct := -1
	if q.CorrectIndex != nil {
		correct = *q.CorrectIndex
	} else if q.Answer != "" {
		for i, opt := range q.Options {
			if strings.EqualFold(strings.TrimSpace(opt), strings.TrimSpace(q.Answer)) {
				correct = i
				break
			}
		}
	}

	id := q.ID
	if id == "" {
		id = uuid.NewString()
	}

	item := question.Item{
		ID:           id,
		Prompt:       strings.TrimSpace(q.Prompt),
		Options:      q.Options,
		CorrectIndex: correct,
		Explanation:  q.Explanation,
		Source:       question.SourceRemote,
	}
	return item, item.Valid()
}

type generatorRequest struct {
	Level string `json:"level"`
	Count int    `json:"count"`
}

type generatedQuestion struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct_index"`
	Answer       string   `json:"answer"`
	Explanation  string   `json:"explanation"`
}

type generatorResponse struct {
	Questions []generatedQuestion `json:"questions"`
}
