package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"summarist/internal/domain"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const DefaultModel = "gpt-4o-mini"

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	client openai.Client
	model  string
}

// NewOpenAISummarizer builds a new summarizer instance. baseURL is optional and
// points the client at an OpenAI-compatible endpoint.
func NewOpenAISummarizer(apiKey string, model string, baseURL string) (*OpenAISummarizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAISummarizer{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Summarize sends one prompt and returns the generated text. There is no retry:
// one failed request is one failed summary.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return "", domain.NewError(domain.KindSummarization, domain.PhaseSummarize, nil,
			errors.New("prompt is empty"))
	}

	params := responses.ResponseNewParams{
		Model: s.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}
	if instructions := strings.TrimSpace(input.Instructions); instructions != "" {
		params.Instructions = openai.String(instructions)
	}
	if input.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(input.MaxOutputTokens)
	}

	resp, err := s.client.Responses.New(ctx, params)
	if err != nil {
		return "", classifyError(fmt.Errorf("do request: %w", err))
	}

	summary := strings.TrimSpace(resp.OutputText())

	if resp.Status == "incomplete" && summary == "" {
		return "", domain.NewError(domain.KindSummarization, domain.PhaseSummarize, nil,
			fmt.Errorf("response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				input.MaxOutputTokens))
	}

	if summary == "" {
		return "", domain.NewError(domain.KindSummarization, domain.PhaseSummarize, nil,
			fmt.Errorf("output text is missing (status = %s)", resp.Status))
	}

	return summary, nil
}

func classifyError(err error) error {
	kind := domain.KindSummarization

	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		kind = domain.KindAuthentication
	}

	return domain.NewError(kind, domain.PhaseSummarize, nil, err)
}
