// Package model is the vision-model client: querying a vision-capable chat
// model with a message history and an optional screenshot, parsing its
// reply into actions, and running the auxiliary-model correction and
// three-stage plan-execute-correct pipelines.
package model

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultTimeout      = 60 * time.Second
	threeStageTimeout   = 180 * time.Second
	retries             = 3
	delayBetweenRetries = time.Second
)

// Config names which models back each pipeline stage and whether the
// three-stage pipeline is enabled.
type Config struct {
	APIKey  string
	BaseURL string

	PrimaryModel   string
	AuxiliaryModel string // correction pass; empty disables it

	ThreeStage   bool
	PlanModel    string
	ExecuteModel string
}

// Client is the model client, wrapping go-openai with retry/backoff for
// the well-known HTTP failure modes and fatal-vs-retryable classification
// surfaced as typed *Error values.
type Client struct {
	apiClient *openai.Client
	cfg       Config
}

// New builds a Client against the given config, mirroring
// openai.New(apiKey, baseURL, ...)'s constructor shape.
func New(cfg Config) *Client {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	httpTimeout := defaultTimeout
	if cfg.ThreeStage {
		httpTimeout = threeStageTimeout
	}
	conf.HTTPClient = &http.Client{Timeout: httpTimeout}

	return &Client{
		apiClient: openai.NewClientWithConfig(conf),
		cfg:       cfg,
	}
}

// QueryWithMessages implements the single-stage contract: send history,
// parse the reply, and if that yields zero actions and an auxiliary model is
// configured, issue one correction request and re-parse. When the config
// enables the three-stage pipeline, the query is delegated to RunThreeStage.
func (c *Client) QueryWithMessages(ctx context.Context, messages []Message, screenshotB64 string, resolvePackage func(string) (string, error)) (*Response, error) {
	if c.cfg.ThreeStage {
		return c.RunThreeStage(ctx, messages, screenshotB64, resolvePackage)
	}

	ctx = WithStage(ctx, StageSingle)

	raw, usage, err := c.complete(ctx, c.cfg.PrimaryModel, messages, screenshotB64, 0.2)
	if err != nil {
		return nil, err
	}

	parsed := ParseResponse(raw, resolvePackage)

	if len(parsed.Actions) == 0 && c.cfg.AuxiliaryModel != "" {
		corrected, err := c.correct(ctx, raw, resolvePackage)
		if err != nil {
			log.Warn().Err(err).Msg("auxiliary correction request failed, returning empty action list")
		} else {
			parsed = corrected
		}
	}

	return &Response{
		RawContent: raw,
		Reasoning:  parsed.Reasoning,
		Actions:    parsed.Actions,
		TokensUsed: usage,
	}, nil
}

// correctionSystemPrompt instructs the auxiliary model to normalise
// malformed output without inventing new operations.
const correctionSystemPrompt = "The previous response could not be parsed into a do(...) or finish(...) call. " +
	"Re-emit the same intended operation using the exact do(action=..., ...) or finish(message=...) grammar. " +
	"Do not invent new operations. Do not unroll loops. Emit exactly one call."

func (c *Client) correct(ctx context.Context, rawReply string, resolvePackage func(string) (string, error)) (ParseResult, error) {
	ctx = WithStage(ctx, StageCorrect)

	messages := []Message{
		{Role: RoleSystem, Content: correctionSystemPrompt},
		{Role: RoleUser, Content: rawReply},
	}

	raw, _, err := c.complete(ctx, c.cfg.AuxiliaryModel, messages, "", 0.0)
	if err != nil {
		return ParseResult{}, err
	}

	return ParseResponse(raw, resolvePackage), nil
}

// RunThreeStage implements the optional three-stage plan/execute/correct
// pipeline: one operation per cycle.
func (c *Client) RunThreeStage(ctx context.Context, messages []Message, screenshotB64 string, resolvePackage func(string) (string, error)) (*Response, error) {
	plan, err := c.plan(ctx, messages)
	if err != nil {
		return nil, err
	}

	execMessages := []Message{{Role: RoleUser, Content: plan}}
	raw, usage, err := c.complete(WithStage(ctx, StageExecute), c.cfg.ExecuteModel, execMessages, screenshotB64, 0.0)
	if err != nil {
		return nil, err
	}

	parsed := ParseResponse(raw, resolvePackage)
	if len(parsed.Actions) == 0 && c.cfg.AuxiliaryModel != "" {
		corrected, err := c.correct(ctx, raw, resolvePackage)
		if err == nil {
			parsed = corrected
		}
	}

	return &Response{
		RawContent: raw,
		Reasoning:  plan,
		Actions:    parsed.Actions,
		TokensUsed: usage,
	}, nil
}

func (c *Client) plan(ctx context.Context, messages []Message) (string, error) {
	raw, _, err := c.complete(WithStage(ctx, StagePlan), c.cfg.PlanModel, messages, "", 0.3)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// complete issues one chat completion, with the final user message carrying
// the screenshot (if any) as a multimodal part — earlier messages stay
// plain text, since vision tokens are expensive and only the current frame
// matters.
func (c *Client) complete(ctx context.Context, modelName string, messages []Message, screenshotB64 string, temperature float32) (string, int, error) {
	req := openai.ChatCompletionRequest{
		Model:       modelName,
		Temperature: temperature,
		Messages:    toChatMessages(messages, screenshotB64),
	}

	timeout := defaultTimeout
	if StageFromContext(ctx) == StagePlan || StageFromContext(ctx) == StageExecute {
		timeout = threeStageTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp openai.ChatCompletionResponse
	err := retry.Do(func() error {
		var callErr error
		resp, callErr = c.apiClient.CreateChatCompletion(reqCtx, req)
		if callErr != nil {
			return classify(callErr)
		}
		return nil
	},
		retry.Attempts(retries),
		retry.Delay(delayBetweenRetries),
		retry.LastErrorOnly(true),
		retry.Context(reqCtx),
		retry.RetryIf(func(err error) bool {
			var modelErr *Error
			if errors.As(err, &modelErr) {
				return modelErr.Kind == ErrRateLimit
			}
			return true
		}),
	)
	if err != nil {
		return "", 0, err
	}

	if len(resp.Choices) == 0 {
		return "", 0, NewError(ErrAPIError, "model returned no choices")
	}

	return resp.Choices[0].Message.Content, resp.Usage.TotalTokens, nil
}

// classify maps a go-openai transport error onto a typed *Error by
// string-matching the status it carries (401 → fatal, 429 → retryable
// rate limit), plus network-error subclassification for everything else.
func classify(err error) error {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "401"):
		return retry.Unrecoverable(NewError(ErrInvalidAPIKey, "model API rejected credentials: %v", err))
	case strings.Contains(msg, "429"):
		log.Warn().Err(err).Msg("model API rate limited, retrying with backoff")
		return NewError(ErrRateLimit, "model API rate limited: %v", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(ErrTimeout, "model API request timed out: %v", err)
	}
	if strings.Contains(msg, "connection refused") {
		return retry.Unrecoverable(NewError(ErrConnectionReset, "model API connection refused: %v", err))
	}

	return NewError(ErrNetworkError, "model API request failed: %v", err)
}

func toChatMessages(messages []Message, screenshotB64 string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))

	for i, m := range messages {
		isLastUser := screenshotB64 != "" && i == len(messages)-1 && m.Role == RoleUser
		if !isLastUser {
			out = append(out, openai.ChatCompletionMessage{
				Role:    string(m.Role),
				Content: m.Content,
			})
			continue
		}

		out = append(out, openai.ChatCompletionMessage{
			Role: string(m.Role),
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: m.Content},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:image/png;base64," + screenshotB64,
					},
				},
			},
		})
	}

	return out
}
