package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

var testDocTypes = []string{"receipt", "tax", "medical", "other", "uncategorized"}

// chatServer fakes an OpenAI-compatible endpoint, returning the queued
// response bodies in order.
func chatServer(t *testing.T, contents ...string) *httptest.Server {
	t.Helper()
	i := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"small"},{"id":"large"}]}`)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		require.Less(t, i, len(contents), "unexpected extra LLM call")
		content := contents[i]
		i++
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(ClientConfig{
		BaseURL:             srv.URL + "/v1",
		DefaultModel:        "small",
		EscalationModel:     "large",
		EscalationThreshold: 0.7,
		EscalationDocTypes:  []string{"taxes", "medical", "legal", "insurance"},
		MaxRetries:          3,
	})
}

func validLabelJSON(docType string, confidence float64) string {
	return fmt.Sprintf(`{
		"doc_type": %q, "title": "A receipt", "canonical_filename": "2024-01-02-Financial-Store-Receipt",
		"suggested_tags": ["recurring"], "target_group_path": "03 Financial",
		"date": "2024-01-02", "issuer": "Store", "source": null,
		"confidence": %g, "why": "looks like a receipt"
	}`, docType, confidence)
}

func testContext() LabelingContext {
	return LabelingContext{
		Filename: "receipt.pdf", ParentFolders: []string{"2024"},
		ExtractedText: "TOTAL $12.34", FileSize: 1000,
		DocTypes: testDocTypes,
	}
}

// =============================================================================
// Prompt versioning & truncation
// =============================================================================

func TestPromptVersion_StableAndStructural(t *testing.T) {
	t.Parallel()
	v1 := PromptVersion()
	v2 := PromptVersion()
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 16)
	assert.Regexp(t, "^[0-9a-f]{16}$", v1)
}

func TestBuildUserPrompt_SubstitutesContext(t *testing.T) {
	t.Parallel()
	p := BuildUserPrompt(testContext())
	assert.Contains(t, p, "receipt.pdf")
	assert.Contains(t, p, "TOTAL $12.34")
	assert.Contains(t, p, "receipt, tax, medical, other, uncategorized")
}

func TestBuildUserPrompt_EmptyTextPlaceholder(t *testing.T) {
	t.Parallel()
	ctx := testContext()
	ctx.ExtractedText = ""
	assert.Contains(t, BuildUserPrompt(ctx), "[No text extracted]")
}

func TestTruncateForPrompt_SeventyThirty(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 8000) + strings.Repeat("z", 8000)
	out := truncateForPrompt(text, 8000)

	assert.Contains(t, out, "[... middle section omitted ...]")
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 5600)), "keeps first 70%")
	assert.True(t, strings.HasSuffix(out, strings.Repeat("z", 2400)), "keeps last 30%")
}

// =============================================================================
// Response parsing
// =============================================================================

func TestLabelDocument_BareJSON(t *testing.T) {
	t.Parallel()
	srv := chatServer(t, validLabelJSON("receipt", 0.92))
	client := newTestClient(srv)

	label, err := client.LabelDocument(context.Background(), testContext(), false)
	require.NoError(t, err)
	assert.Equal(t, "receipt", label.DocType)
	assert.InDelta(t, 0.92, label.Confidence, 1e-9)
	require.NotNil(t, label.Date)
	assert.Equal(t, "2024-01-02", *label.Date)
}

func TestLabelDocument_FencedJSONEquivalent(t *testing.T) {
	t.Parallel()
	bare := validLabelJSON("receipt", 0.92)
	fenced := "```json\n" + bare + "\n```"

	srvBare := chatServer(t, bare)
	srvFenced := chatServer(t, fenced)

	l1, err := newTestClient(srvBare).LabelDocument(context.Background(), testContext(), false)
	require.NoError(t, err)
	l2, err := newTestClient(srvFenced).LabelDocument(context.Background(), testContext(), false)
	require.NoError(t, err)
	assert.Equal(t, l1, l2)
}

func TestLabelDocument_OutOfVocabularyRewritten(t *testing.T) {
	t.Parallel()
	srv := chatServer(t, validLabelJSON("invoice_statement", 0.9))
	client := newTestClient(srv)

	label, err := client.LabelDocument(context.Background(), testContext(), false)
	require.NoError(t, err)
	assert.Equal(t, "other", label.DocType)
	assert.True(t, strings.HasPrefix(label.Why, "[Auto-corrected from 'invoice_statement'] "), "got %q", label.Why)
}

func TestLabelDocument_RetriesOnBadJSON(t *testing.T) {
	t.Parallel()
	srv := chatServer(t, "I think this is a receipt!", validLabelJSON("receipt", 0.9))
	client := newTestClient(srv)

	label, err := client.LabelDocument(context.Background(), testContext(), false)
	require.NoError(t, err)
	assert.Equal(t, "receipt", label.DocType)
}

func TestLabelDocument_ExhaustsRetries(t *testing.T) {
	t.Parallel()
	srv := chatServer(t, "nope", "still nope", "never")
	client := newTestClient(srv)

	_, err := client.LabelDocument(context.Background(), testContext(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestLabelDocument_SchemaRejectsOutOfRangeConfidence(t *testing.T) {
	t.Parallel()
	srv := chatServer(t,
		validLabelJSON("receipt", 1.5),
		validLabelJSON("receipt", 1.5),
		validLabelJSON("receipt", 1.5))
	client := newTestClient(srv)

	_, err := client.LabelDocument(context.Background(), testContext(), false)
	require.Error(t, err)
}

func TestStripFence(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `{"a":1}`, stripFence("{\"a\":1}"))
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("  {\"a\":1}  "))
}

// =============================================================================
// Escalation
// =============================================================================

func TestShouldEscalate(t *testing.T) {
	t.Parallel()
	client := newTestClient(chatServer(t))

	base := func() *LabelOutput {
		return &LabelOutput{DocType: "receipt", Confidence: 0.9,
			Date: ptr("2024-01-02"), Issuer: ptr("Store")}
	}

	assert.False(t, client.ShouldEscalate(base()))

	sensitive := base()
	sensitive.DocType = "medical"
	assert.True(t, client.ShouldEscalate(sensitive), "sensitive doc type always escalates")

	low := base()
	low.Confidence = 0.5
	assert.True(t, client.ShouldEscalate(low), "low confidence escalates")

	missing := base()
	missing.DocType = "financial" // out of vocabulary is irrelevant here
	missing.Issuer = nil
	assert.True(t, client.ShouldEscalate(missing), "financial without issuer escalates")

	missingButCasual := base()
	missingButCasual.Date = nil
	assert.False(t, client.ShouldEscalate(missingButCasual),
		"missing date only matters for sensitive-field types")
}

func TestLabelWithEscalation_SecondCallWins(t *testing.T) {
	t.Parallel()
	srv := chatServer(t,
		validLabelJSON("receipt", 0.4), // low confidence triggers escalation
		validLabelJSON("receipt", 0.95))
	client := newTestClient(srv)

	label, escalated, err := client.LabelWithEscalation(context.Background(), testContext())
	require.NoError(t, err)
	assert.True(t, escalated)
	assert.InDelta(t, 0.95, label.Confidence, 1e-9)
}

func TestLabelWithEscalation_NoEscalation(t *testing.T) {
	t.Parallel()
	srv := chatServer(t, validLabelJSON("receipt", 0.95))
	client := newTestClient(srv)

	label, escalated, err := client.LabelWithEscalation(context.Background(), testContext())
	require.NoError(t, err)
	assert.False(t, escalated)
	assert.InDelta(t, 0.95, label.Confidence, 1e-9)
}

// =============================================================================
// Connection probe
// =============================================================================

func TestCheckConnection(t *testing.T) {
	t.Parallel()
	srv := chatServer(t)
	require.NoError(t, newTestClient(srv).CheckConnection(context.Background()))

	down := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1/v1"})
	assert.Error(t, down.CheckConnection(context.Background()))
}

func TestCheckConnection_ConfiguredModelsMustBeLoaded(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"small"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	// Escalation model missing from the loaded set.
	err := newTestClient(srv).CheckConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "large")
	assert.Contains(t, err.Error(), "small", "names the models that are available")

	// Only the loaded model configured: probe passes.
	ok := NewClient(ClientConfig{BaseURL: srv.URL + "/v1", DefaultModel: "small"})
	require.NoError(t, ok.CheckConnection(context.Background()))
}

func TestCheckConnection_NoModelsLoaded(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	err := newTestClient(srv).CheckConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none")
}
