package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ilkoid/poncho-research/pkg/chain"
	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/engine"
	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/llm"
	"github.com/ilkoid/poncho-research/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	mu        sync.Mutex
	decisions []engine.Decision
}

func (e *stubEngine) Decide(_ context.Context, _ []llm.Message, _ []tools.ToolDefinition) (engine.Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.decisions[0]
	if len(e.decisions) > 1 {
		e.decisions = e.decisions[1:]
	}
	return d, nil
}

func (e *stubEngine) Complete(_ context.Context, _ string) (string, error) {
	return "summary", nil
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()

	serp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "serp-key", r.Header.Get("X-API-KEY"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "battery", body["q"])
		_, _ = io.WriteString(w, `{"organic":[{"link":"https://example.com/b"}]}`)
	}))
	t.Cleanup(serp.Close)

	browser := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bl-key", r.URL.Query().Get("token"))
		_, _ = io.WriteString(w, "<html><body><p>Sodium-ion is cheap.</p></body></html>")
	}))
	t.Cleanup(browser.Close)

	cfg := config.Default()
	cfg.Search.Endpoint = serp.URL
	cfg.Search.APIKey = "serp-key"
	cfg.Scrape.Endpoint = browser.URL + "/content"
	cfg.Scrape.APIKey = "bl-key"
	cfg.App.LogsDir = t.TempDir()
	return cfg
}

func TestRunWiresSearchAndScrape(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.Debug = true

	eng := &stubEngine{decisions: []engine.Decision{
		{Call: &llm.ToolCall{ID: "1", Name: tools.NameSearch, Args: `{"query":"battery"}`}},
		{Call: &llm.ToolCall{ID: "2", Name: tools.NameScrape, Args: `{"objective":"battery","url":"https://example.com/b"}`}},
		{Text: "Sodium-ion is cheap. https://example.com/b"},
	}}

	client, err := New(context.Background(), Config{AppConfig: cfg, Engine: eng})
	require.NoError(t, err)
	assert.Nil(t, client.GetModelRegistry())
	assert.Len(t, client.GetToolsRegistry().GetDefinitions(), 2)

	emitter := events.NewChanEmitter(32)
	client.SetEmitter(emitter)

	out, err := client.Execute(context.Background(), "battery")
	require.NoError(t, err)
	assert.Equal(t, chain.TerminationAnswer, out.Termination)
	require.Len(t, out.Invocations, 2)
	assert.Contains(t, out.Invocations[0].Result.Text, "example.com/b")
	assert.Equal(t, "Sodium-ion is cheap.", out.Invocations[1].Result.Text)

	emitter.Close()
	var runID string
	for ev := range emitter.Subscribe().Events() {
		runID = ev.RunID
	}
	require.NotEmpty(t, runID)

	_, err = os.Stat(filepath.Join(cfg.App.LogsDir, "research_"+runID+".json"))
	assert.NoError(t, err)
}

func TestRunReturnsAnswer(t *testing.T) {
	client, err := New(context.Background(), Config{
		AppConfig:     testConfig(t),
		Engine:        &stubEngine{decisions: []engine.Decision{{Text: "result"}}},
		MaxIterations: 1,
	})
	require.NoError(t, err)

	answer, err := client.Run(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "result", answer)
}

func TestNewBuildsModelRegistryFromConfig(t *testing.T) {
	cfg := testConfig(t)
	client, err := New(context.Background(), Config{AppConfig: cfg})
	require.NoError(t, err)
	require.NotNil(t, client.GetModelRegistry())
	assert.Equal(t, []string{"default"}, client.GetModelRegistry().ListNames())
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scrape.Backend = "ftp"
	_, err := New(context.Background(), Config{AppConfig: cfg, Engine: &stubEngine{}})
	assert.Error(t, err)
}

type fakeArchive struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (a *fakeArchive) Upload(_ context.Context, name string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.uploads == nil {
		a.uploads = make(map[string][]byte)
	}
	a.uploads[name] = data
	return "traces/" + name, nil
}

func TestDebugTraceIsArchived(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.Debug = true
	archive := &fakeArchive{}

	client, err := New(context.Background(), Config{
		AppConfig: cfg,
		Engine:    &stubEngine{decisions: []engine.Decision{{Text: "done"}}},
		Archive:   archive,
	})
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), "battery")
	require.NoError(t, err)

	require.Len(t, archive.uploads, 1)
	for name, data := range archive.uploads {
		assert.Regexp(t, `^research_.+\.json$`, name)
		assert.Contains(t, string(data), `"battery"`)
	}
}

func TestArchiveSkippedWithoutDebug(t *testing.T) {
	archive := &fakeArchive{}
	client, err := New(context.Background(), Config{
		AppConfig: testConfig(t),
		Engine:    &stubEngine{decisions: []engine.Decision{{Text: "done"}}},
		Archive:   archive,
	})
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), "battery")
	require.NoError(t, err)
	assert.Empty(t, archive.uploads)
}

func TestRunHistoryRecordsExecution(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	client, err := New(context.Background(), Config{
		AppConfig: cfg,
		Engine:    &stubEngine{decisions: []engine.Decision{{Text: "sodium-ion"}}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NotNil(t, client.History())

	_, err = client.Execute(context.Background(), "battery")
	require.NoError(t, err)

	runs, err := client.History().List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "battery", runs[0].Query)
	assert.Equal(t, "sodium-ion", runs[0].Answer)
	assert.Equal(t, string(chain.TerminationAnswer), runs[0].Termination)
}

type promptCapturingEngine struct {
	stubEngine
	system string
}

func (e *promptCapturingEngine) Decide(ctx context.Context, msgs []llm.Message, defs []tools.ToolDefinition) (engine.Decision, error) {
	e.system = msgs[0].Content
	return e.stubEngine.Decide(ctx, msgs, defs)
}

func TestPromptFileOverridesSystemPrompt(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.PromptFile = filepath.Join(t.TempDir(), "system.yaml")
	require.NoError(t, os.WriteFile(cfg.Agent.PromptFile, []byte(`
messages:
  - role: system
    content: "Research with at most {{.MaxIterations}} tool calls."
`), 0o600))

	eng := &promptCapturingEngine{stubEngine: stubEngine{decisions: []engine.Decision{{Text: "ok"}}}}
	client, err := New(context.Background(), Config{AppConfig: cfg, Engine: eng, MaxIterations: 2})
	require.NoError(t, err)

	_, err = client.Run(context.Background(), "battery")
	require.NoError(t, err)
	assert.Equal(t, "Research with at most 2 tool calls.", eng.system)
}

func TestBrokenPromptFileFailsConstruction(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.PromptFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(context.Background(), Config{AppConfig: cfg, Engine: &stubEngine{}})
	assert.ErrorContains(t, err, "prompt file not found")
}
