package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"recapstudio-backend/internal/metrics"
)

// ScriptTransport performs one generation call. Failures are *APIError.
type ScriptTransport interface {
	GenerateText(ctx context.Context, prompt, credential string) (string, error)
}

// ScriptService generates narration scripts with retry on overload.
type ScriptService struct {
	transport ScriptTransport
	prompts   PromptBuilder
	retry     RetryPolicy
	timeout   time.Duration
	logger    zerolog.Logger
	rateChan  chan struct{} // Token bucket
}

func NewScriptService(transport ScriptTransport, prompts PromptBuilder, concurrentReqs int, timeout time.Duration, logger zerolog.Logger) *ScriptService {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &ScriptService{
		transport: transport,
		prompts:   prompts,
		retry:     DefaultRetryPolicy(),
		timeout:   timeout,
		logger:    logger.With().Str("component", "script").Logger(),
		rateChan:  rateChan,
	}
}

// WithRetryPolicy replaces the retry policy, mostly so tests can record
// sleeps instead of waiting.
func (s *ScriptService) WithRetryPolicy(p RetryPolicy) *ScriptService {
	s.retry = p
	return s
}

// acquireRate blocks until a rate slot is available
func (s *ScriptService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *ScriptService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Generate builds the prompt and calls the API, retrying while it reports
// overload. The returned text is trimmed.
func (s *ScriptService) Generate(ctx context.Context, pc PromptContext, credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", &APIError{Class: ClassInvalidCredential, Message: "no API key provided"}
	}

	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	prompt := s.prompts.Build(pc)

	var script string
	err := s.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		callCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		text, err := s.transport.GenerateText(callCtx, prompt, credential)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = &APIError{Class: ClassUnknown, Message: "the text generation request timed out", Err: err}
			}
			class := string(ClassUnknown)
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				class = string(apiErr.Class)
			}
			metrics.Metrics.ScriptAttempts.WithLabelValues(class).Inc()
			s.logger.Warn().Err(err).Int("attempt", attempt).Str("class", class).Msg("script generation attempt failed")
			return err
		}

		metrics.Metrics.ScriptAttempts.WithLabelValues("ok").Inc()
		script = text
		return nil
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(script), nil
}

// ──── REST transport ────

// RESTTransport speaks the generateContent JSON contract directly.
type RESTTransport struct {
	client  *http.Client
	baseURL string
	model   string
}

func NewRESTTransport(client *http.Client, baseURL, model string) *RESTTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &RESTTransport{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type generateErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (t *RESTTransport) GenerateText(ctx context.Context, prompt, credential string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		t.baseURL, url.PathEscape(t.model), url.QueryEscape(credential))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the key; keep it out of logs and messages.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", &APIError{Class: ClassUnknown, Message: "request to the text generation API failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &APIError{Class: ClassUnknown, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody generateErrorBody
		json.Unmarshal(data, &errBody)
		msg := errBody.Error.Message
		return "", &APIError{
			Class:      classifyStatus(resp.StatusCode, msg),
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &APIError{Class: ClassMalformedResponse, StatusCode: resp.StatusCode, Message: "response is not valid JSON", Err: err}
	}
	if len(out.Candidates) == 0 || out.Candidates[0].Content == nil ||
		len(out.Candidates[0].Content.Parts) == 0 || out.Candidates[0].Content.Parts[0].Text == "" {
		return "", &APIError{Class: ClassMalformedResponse, StatusCode: resp.StatusCode, Message: "no script generated"}
	}

	return out.Candidates[0].Content.Parts[0].Text, nil
}

// ──── SDK transport ────

// SDKTransport uses the generative-ai-go client. One client is kept per
// credential since runs may bring their own key.
type SDKTransport struct {
	model string
	opts  []option.ClientOption

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewSDKTransport(model string, opts ...option.ClientOption) *SDKTransport {
	return &SDKTransport{
		model:   model,
		opts:    opts,
		clients: make(map[string]*genai.Client),
	}
}

func (t *SDKTransport) client(ctx context.Context, credential string) (*genai.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.clients[credential]; ok {
		return c, nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(credential)}, t.opts...)
	c, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	t.clients[credential] = c
	return c, nil
}

func (t *SDKTransport) GenerateText(ctx context.Context, prompt, credential string) (string, error) {
	client, err := t.client(ctx, credential)
	if err != nil {
		return "", &APIError{Class: ClassUnknown, Err: err}
	}

	model := client.GenerativeModel(t.model)
	model.SetTemperature(0.8)
	model.SetTopP(0.95)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifySDKError(err)
	}

	text := extractText(resp)
	if text == "" {
		return "", &APIError{Class: ClassMalformedResponse, Message: "no script generated"}
	}
	return text, nil
}

func (t *SDKTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, c := range t.clients {
		c.Close()
		delete(t.clients, key)
	}
}

// extractText returns the first text part of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok && t != "" {
			return string(t)
		}
	}
	return ""
}

// classifySDKError maps gRPC and HTTP API errors onto error classes.
func classifySDKError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{Class: classifyStatus(gerr.Code, gerr.Message), StatusCode: gerr.Code, Message: gerr.Message, Err: err}
	}

	if ae, ok := apierror.FromError(err); ok {
		msg := ae.Error()
		if st := ae.GRPCStatus(); st != nil {
			msg = st.Message()
		}
		if code := ae.HTTPCode(); code > 0 {
			return &APIError{Class: classifyStatus(code, msg), StatusCode: code, Message: msg, Err: err}
		}

		class := ClassUnknown
		switch ae.GRPCStatus().Code() {
		case codes.Unavailable:
			class = ClassOverloaded
		case codes.Unauthenticated, codes.PermissionDenied:
			class = ClassInvalidCredential
		default:
			if ae.Reason() == "API_KEY_INVALID" || mentionsAPIKey(msg) {
				class = ClassInvalidCredential
			}
		}
		return &APIError{Class: class, Message: msg, Err: err}
	}

	class := ClassUnknown
	if mentionsAPIKey(err.Error()) {
		class = ClassInvalidCredential
	}
	return &APIError{Class: class, Message: err.Error(), Err: err}
}
