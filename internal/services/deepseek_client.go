package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lessonforge/backend/internal/logger"
	pkgerrors "github.com/lessonforge/backend/internal/pkg/errors"
	"github.com/lessonforge/backend/internal/types"
)

// TextGenerator produces a structured lesson plan from a composed prompt.
// The credential is caller-supplied per request; a rejection is reported as
// pkgerrors.ErrInvalidCredential so the orchestrator can abort the batch.
type TextGenerator interface {
	GenerateLessonPlan(ctx context.Context, prompt string, credential string) (*types.LessonPlan, error)
}

type deepSeekClient struct {
	log        *logger.Logger
	baseURL    string
	model      string
	httpClient *http.Client

	maxAttempts int
}

func NewDeepSeekClient(log *logger.Logger) TextGenerator {
	baseURL := os.Getenv("DEEPSEEK_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}
	model := os.Getenv("DEEPSEEK_MODEL")
	if model == "" {
		model = "deepseek-chat"
	}

	timeoutSec := 120
	if v := os.Getenv("DEEPSEEK_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}
	maxAttempts := 5
	if v := os.Getenv("DEEPSEEK_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			maxAttempts = parsed
		}
	}

	return &deepSeekClient{
		log:         log.With("service", "DeepSeekClient"),
		baseURL:     baseURL,
		model:       model,
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxAttempts: maxAttempts,
	}
}

type generatorHTTPError struct {
	StatusCode int
	Body       string
}

func (e *generatorHTTPError) Error() string {
	return fmt.Sprintf("deepseek http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pkgerrors.ErrInvalidCredential) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *generatorHTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

// +/- 20%
func jitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	j := 0.2
	low := base.Seconds() * (1 - j)
	high := base.Seconds() * (1 + j)
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *deepSeekClient) doOnce(ctx context.Context, credential string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return resp, raw, fmt.Errorf("deepseek rejected credential (http %d): %w", resp.StatusCode, pkgerrors.ErrInvalidCredential)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &generatorHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// GenerateLessonPlan asks the model for the strict-JSON plan shape and
// re-prompts on malformed output, feeding the parse error and the offending
// content back so the model can correct itself on the next attempt.
func (c *deepSeekClient) GenerateLessonPlan(ctx context.Context, prompt string, credential string) (*types.LessonPlan, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("no generator credential supplied: %w", pkgerrors.ErrInvalidCredential)
	}

	backoff := 1 * time.Second
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		currentPrompt := prompt
		if lastErr != nil {
			var parseErr *planParseError
			if errors.As(lastErr, &parseErr) {
				currentPrompt = prompt + parseErr.Feedback()
			}
		}

		req := chatRequest{
			Model:       c.model,
			Messages:    []chatMessage{{Role: "user", Content: currentPrompt}},
			Temperature: 0.7,
		}

		resp, raw, err := c.doOnce(ctx, credential, req)
		if err == nil {
			var out chatResponse
			if uErr := json.Unmarshal(raw, &out); uErr != nil {
				err = fmt.Errorf("deepseek decode error: %w", uErr)
			} else if len(out.Choices) == 0 {
				err = fmt.Errorf("deepseek returned no choices")
			} else {
				plan, pErr := parseLessonPlanJSON(out.Choices[0].Message.Content)
				if pErr == nil {
					return plan, nil
				}
				err = pErr
			}
		}

		if errors.Is(err, pkgerrors.ErrInvalidCredential) {
			return nil, err
		}
		lastErr = err

		var parseErr *planParseError
		retryable := isRetryableErr(err) || errors.As(err, &parseErr)
		if !retryable || attempt == c.maxAttempts {
			return nil, err
		}

		sleepFor := backoff
		if resp != nil {
			if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
				if secs, raErr := strconv.Atoi(ra); raErr == nil && secs > 0 {
					sleepFor = time.Duration(secs) * time.Second
				}
			}
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		c.log.Warn("DeepSeek request retrying",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	return nil, lastErr
}

type planParseError struct {
	Err     error
	Content string
}

func (e *planParseError) Error() string { return fmt.Sprintf("parse lesson plan: %v", e.Err) }
func (e *planParseError) Unwrap() error { return e.Err }

// Feedback is appended to the retry prompt so the model sees what went wrong.
func (e *planParseError) Feedback() string {
	content := e.Content
	if runes := []rune(content); len(runes) > 500 {
		content = string(runes[:500]) + "..."
	}
	return fmt.Sprintf(
		"\n\n--- The previous response failed to parse ---\nError: %v\nReturned content: %s\n\nGenerate again. Return pure JSON only, with no surrounding prose or code fences.",
		e.Err, content,
	)
}

// parseLessonPlanJSON tolerates code fences and stray prose around the JSON
// object, which chat models produce even when told not to.
func parseLessonPlanJSON(content string) (*types.LessonPlan, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, &planParseError{Err: fmt.Errorf("no JSON object in response"), Content: content}
	}
	cleaned = cleaned[start : end+1]

	var plan types.LessonPlan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, &planParseError{Err: err, Content: content}
	}
	if len(plan.TeachingProcess) == 0 {
		return nil, &planParseError{Err: fmt.Errorf("teaching_process is empty"), Content: content}
	}
	return &plan, nil
}
