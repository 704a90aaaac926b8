package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"recapstudio-backend/internal/models"
)

type scriptedResponse struct {
	status int
	body   string
}

// newGeminiStub serves the given responses in order and counts requests.
func newGeminiStub(t *testing.T, responses ...scriptedResponse) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret-key", r.URL.Query().Get("key"))

		var body generateRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) && assert.Len(t, body.Contents, 1) {
			assert.NotEmpty(t, body.Contents[0].Parts[0].Text)
		}

		resp := responses[len(responses)-1]
		if int(n) <= len(responses) {
			resp = responses[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		w.Write([]byte(resp.body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func okBody(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":"` + text + `"}]}}]}`
}

func newTestScriptService(srv *httptest.Server, sleeps *[]time.Duration) *ScriptService {
	transport := NewRESTTransport(srv.Client(), srv.URL, "gemini-test")
	svc := NewScriptService(transport, NewPromptBuilder("English", ""), 1, 5*time.Second, zerolog.Nop())
	policy := DefaultRetryPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return svc.WithRetryPolicy(policy)
}

var testPrompt = PromptContext{Description: "A heist goes wrong."}

func TestGenerate_RetriesOverloadThenSucceeds(t *testing.T) {
	overloaded := scriptedResponse{503, `{"error":{"code":503,"message":"The model is overloaded."}}`}
	srv, calls := newGeminiStub(t, overloaded, overloaded, scriptedResponse{200, okBody("  The vault opens.  ")})

	var sleeps []time.Duration
	script, err := newTestScriptService(srv, &sleeps).Generate(context.Background(), testPrompt, "secret-key")

	require.NoError(t, err)
	assert.Equal(t, "The vault opens.", script)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeps)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestGenerate_GivesUpAfterThreeOverloads(t *testing.T) {
	srv, calls := newGeminiStub(t, scriptedResponse{503, `{"error":{"message":"overloaded"}}`})

	var sleeps []time.Duration
	_, err := newTestScriptService(srv, &sleeps).Generate(context.Background(), testPrompt, "secret-key")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ClassOverloaded, apiErr.Class)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Len(t, sleeps, 2)
}

func TestGenerate_MalformedResponseNotRetried(t *testing.T) {
	srv, calls := newGeminiStub(t, scriptedResponse{200, `{"candidates":[{"content":{"parts":[]}}]}`})

	var sleeps []time.Duration
	_, err := newTestScriptService(srv, &sleeps).Generate(context.Background(), testPrompt, "secret-key")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ClassMalformedResponse, apiErr.Class)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Empty(t, sleeps)
}

func TestGenerate_InvalidKeyNotRetried(t *testing.T) {
	srv, calls := newGeminiStub(t, scriptedResponse{400, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`})

	var sleeps []time.Duration
	_, err := newTestScriptService(srv, &sleeps).Generate(context.Background(), testPrompt, "secret-key")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ClassInvalidCredential, apiErr.Class)
	assert.Contains(t, apiErr.UserMessage(), "API key")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Empty(t, sleeps)
}

func TestGenerate_OtherErrorPassesServerMessage(t *testing.T) {
	srv, _ := newGeminiStub(t, scriptedResponse{500, `{"error":{"code":500,"message":"Internal error encountered."}}`})

	var sleeps []time.Duration
	_, err := newTestScriptService(srv, &sleeps).Generate(context.Background(), testPrompt, "secret-key")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ClassUnknown, apiErr.Class)
	assert.Equal(t, "Internal error encountered.", apiErr.UserMessage())
}

func TestGenerate_EmptyCredential(t *testing.T) {
	srv, calls := newGeminiStub(t, scriptedResponse{200, okBody("x")})

	var sleeps []time.Duration
	_, err := newTestScriptService(srv, &sleeps).Generate(context.Background(), testPrompt, "  ")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ClassInvalidCredential, apiErr.Class)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestGenerate_TimeoutIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	transport := NewRESTTransport(srv.Client(), srv.URL, "gemini-test")
	svc := NewScriptService(transport, NewPromptBuilder("", ""), 1, 50*time.Millisecond, zerolog.Nop())

	_, err := svc.Generate(context.Background(), testPrompt, "secret-key")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ClassUnknown, apiErr.Class)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestRetryPolicy_StopsOnCanceledSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := DefaultRetryPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	var attempts int
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts++
		return &APIError{Class: ClassOverloaded}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_DoesNotRetryPlainErrors(t *testing.T) {
	var attempts int
	err := DefaultRetryPolicy().Do(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		return errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, attempts)
}

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, ExponentialBackoff(1))
	assert.Equal(t, 4*time.Second, ExponentialBackoff(2))
	assert.Equal(t, 8*time.Second, ExponentialBackoff(3))
}

func TestClassifySDKError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"grpc unavailable", status.Error(codes.Unavailable, "model overloaded"), ClassOverloaded},
		{"grpc permission denied", status.Error(codes.PermissionDenied, "forbidden"), ClassInvalidCredential},
		{"grpc invalid key", status.Error(codes.InvalidArgument, "API key not valid"), ClassInvalidCredential},
		{"grpc internal", status.Error(codes.Internal, "oops"), ClassUnknown},
		{"http 503", &googleapi.Error{Code: 503, Message: "overloaded"}, ClassOverloaded},
		{"http 403", &googleapi.Error{Code: 403, Message: "denied"}, ClassInvalidCredential},
		{"plain", errors.New("blocked: safety"), ClassUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var apiErr *APIError
			require.ErrorAs(t, classifySDKError(tc.err), &apiErr)
			assert.Equal(t, tc.expected, apiErr.Class)
		})
	}
}

func TestPromptBuilder_LayersInOrder(t *testing.T) {
	pb := NewPromptBuilder("Hebrew", "Mention the title once\n\n")
	prompt := pb.Build(PromptContext{
		Description: "Two brothers rob a bank.",
		Genre:       "thriller",
		Movie: &models.MovieInfo{
			Plot:      "A plot",
			KeyScenes: []string{"one", "two"},
		},
	})

	desc := strings.Index(prompt, "Two brothers rob a bank.")
	movie := strings.Index(prompt, "Movie context: A plot. Key scenes: one, two")
	reqs := strings.Index(prompt, "Requirements:")
	require.True(t, desc > 0 && movie > desc && reqs > movie, prompt)

	assert.Contains(t, prompt, "Write in Hebrew language")
	assert.Contains(t, prompt, "3-4 sentences")
	assert.Contains(t, prompt, "appropriate for a thriller")
	assert.Contains(t, prompt, "- Mention the title once\n")
	assert.NotContains(t, prompt, "Style inspiration")
}

func TestPromptBuilder_StyleHintFromTopResult(t *testing.T) {
	prompt := NewPromptBuilder("", "").Build(PromptContext{
		Description: "desc",
		Styles: []models.StyleAnalysis{
			{EditingStyle: "fast-paced", AverageClipLengthSeconds: 2},
			{EditingStyle: "detailed", AverageClipLengthSeconds: 5},
		},
	})

	assert.Contains(t, prompt, "Style inspiration: fast-paced editing with 2s clips")
	assert.NotContains(t, prompt, "detailed editing")
	assert.NotContains(t, prompt, "Movie context")
	assert.Contains(t, prompt, "Write in Hebrew language")
}
