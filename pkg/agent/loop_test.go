package agent

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atypis/runops/pkg/browser"
	"github.com/atypis/runops/pkg/livestate"
	"github.com/atypis/runops/pkg/persistence/file"
	"github.com/atypis/runops/pkg/reasoning"
	"github.com/atypis/runops/pkg/tools"
	"github.com/atypis/runops/pkg/variables"
)

// scriptedEngine replays canned results turn by turn.
type scriptedEngine struct {
	results     []*reasoning.Result
	calls       int
	transcripts [][]reasoning.Turn
}

func (e *scriptedEngine) Invoke(_ context.Context, _ string, transcript []reasoning.Turn, _ []reasoning.ToolDefinition) (*reasoning.Result, error) {
	e.transcripts = append(e.transcripts, transcript)

	if e.calls >= len(e.results) {
		// Keep requesting tools forever.
		e.calls++

		return &reasoning.Result{
			ToolRequests: []reasoning.ToolRequest{
				{Name: "navigate", Arguments: map[string]any{"url": "https://example.com"}, CallID: "loop"},
			},
		}, nil
	}

	result := e.results[e.calls]
	e.calls++

	return result, nil
}

type countingHandler struct {
	name     string
	executed int
	fail     bool
}

func (h *countingHandler) Name() string        { return h.name }
func (h *countingHandler) Description() string { return h.name }

func (h *countingHandler) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (h *countingHandler) Execute(_ context.Context, _ map[string]any) tools.Result {
	h.executed++

	if h.fail {
		return tools.Failure("%s broke", h.name)
	}

	return tools.OK(map[string]any{"tool": h.name})
}

// snapshotOnlyDriver satisfies browser.Driver for loop tests that never
// touch real pages.
type snapshotOnlyDriver struct{}

func (snapshotOnlyDriver) OpenTab(_ context.Context, _, _ string) error  { return nil }
func (snapshotOnlyDriver) CloseTab(_ context.Context, _ string) error    { return nil }
func (snapshotOnlyDriver) SwitchTab(_ context.Context, _ string) error   { return nil }
func (snapshotOnlyDriver) ActiveTab() string                             { return browser.DefaultTab }
func (snapshotOnlyDriver) Navigate(_ context.Context, _ string) error    { return nil }
func (snapshotOnlyDriver) Screenshot(_ context.Context) ([]byte, error)  { return nil, nil }
func (snapshotOnlyDriver) Close(_ context.Context) error                 { return nil }

func (snapshotOnlyDriver) ListTabs(_ context.Context) ([]browser.TabInfo, error) {
	return []browser.TabInfo{{Name: browser.DefaultTab}}, nil
}

func (snapshotOnlyDriver) Click(_ context.Context, _ string, _ time.Duration) error { return nil }

func (snapshotOnlyDriver) Type(_ context.Context, _, _ string, _ time.Duration) error { return nil }

func (snapshotOnlyDriver) WaitForSelector(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

func (snapshotOnlyDriver) Snapshot(_ context.Context) (map[string]any, error) {
	return map[string]any{"activeTab": browser.DefaultTab}, nil
}

func newTestLoop(t *testing.T, engine reasoning.Engine, handlers ...tools.Handler) *Loop {
	t.Helper()

	registry := tools.NewRegistry()
	registry.MustRegister(handlers...)

	hub := livestate.NewHub(slog.Default())
	store := variables.NewStore(file.NewPersistence(t.TempDir()), hub)

	return NewLoop(engine, registry, snapshotOnlyDriver{}, store, hub, nil)
}

func TestRunTerminatesWithFinalText(t *testing.T) {
	engine := &scriptedEngine{results: []*reasoning.Result{
		{FinalText: "done, nothing to do", Usage: reasoning.Usage{Input: 10, Output: 5, Total: 15}},
	}}

	loop := newTestLoop(t, engine)

	result, err := loop.Run(context.Background(), Mission{ID: "m-1", WorkflowID: "wf-1", Objective: "check"})
	require.NoError(t, err)

	assert.Equal(t, "done, nothing to do", result.FinalText)
	assert.Empty(t, result.ExecutedTools)
	assert.True(t, result.Successful)
	assert.Equal(t, int64(15), result.Usage.Total)
}

func TestRunDispatchesToolThenFinishes(t *testing.T) {
	handler := &countingHandler{name: "navigate"}
	engine := &scriptedEngine{results: []*reasoning.Result{
		{
			ToolRequests: []reasoning.ToolRequest{
				{Name: "navigate", Arguments: map[string]any{}, CallID: "call-1"},
			},
			Usage: reasoning.Usage{Input: 100, Output: 20, Total: 120},
		},
		{FinalText: "navigated successfully", Usage: reasoning.Usage{Input: 200, Output: 10, Total: 210}},
	}}

	loop := newTestLoop(t, engine, handler)

	result, err := loop.Run(context.Background(), Mission{ID: "m-1", WorkflowID: "wf-1", Objective: "go"})
	require.NoError(t, err)

	assert.Equal(t, "navigated successfully", result.FinalText)
	require.Len(t, result.ExecutedTools, 1)
	assert.Equal(t, "navigate", result.ExecutedTools[0].Name)
	assert.Equal(t, 1, handler.executed)
	assert.True(t, result.Successful)

	// Usage comes from the outermost turn only, never summed.
	assert.Equal(t, int64(120), result.Usage.Total)
	require.Len(t, result.TurnUsage, 2)
	assert.Equal(t, int64(210), result.TurnUsage[1].Total)
}

func TestRunFeedsToolResultBackIntoTranscript(t *testing.T) {
	handler := &countingHandler{name: "navigate", fail: true}
	engine := &scriptedEngine{results: []*reasoning.Result{
		{ToolRequests: []reasoning.ToolRequest{{Name: "navigate", CallID: "call-1"}}},
		{FinalText: "adapted"},
	}}

	loop := newTestLoop(t, engine, handler)

	result, err := loop.Run(context.Background(), Mission{ID: "m-1", WorkflowID: "wf-1", Objective: "go"})
	require.NoError(t, err)

	assert.Equal(t, "adapted", result.FinalText)

	// Second engine call sees objective, assistant tool call and tool result.
	require.Len(t, engine.transcripts, 2)
	second := engine.transcripts[1]
	require.Len(t, second, 3)
	assert.Equal(t, reasoning.RoleAssistant, second[1].Role)
	assert.Equal(t, reasoning.RoleTool, second[2].Role)
	assert.Equal(t, "call-1", second[2].ToolCallID)
	assert.Contains(t, second[2].Content, "navigate broke")
}

func TestRunPreservesDispatchOrderWithinTurn(t *testing.T) {
	first := &countingHandler{name: "first"}
	second := &countingHandler{name: "second"}
	engine := &scriptedEngine{results: []*reasoning.Result{
		{ToolRequests: []reasoning.ToolRequest{
			{Name: "first", CallID: "call-1"},
			{Name: "second", CallID: "call-2"},
		}},
		{FinalText: "both ran"},
	}}

	loop := newTestLoop(t, engine, first, second)

	result, err := loop.Run(context.Background(), Mission{ID: "m-1", WorkflowID: "wf-1", Objective: "go"})
	require.NoError(t, err)

	require.Len(t, result.ExecutedTools, 2)
	assert.Equal(t, "first", result.ExecutedTools[0].Name)
	assert.Equal(t, "second", result.ExecutedTools[1].Name)

	transcript := engine.transcripts[1]
	require.Len(t, transcript, 4)
	assert.Equal(t, "call-1", transcript[2].ToolCallID)
	assert.Equal(t, "call-2", transcript[3].ToolCallID)
}

func TestRunStopsAtDepthBound(t *testing.T) {
	handler := &countingHandler{name: "navigate"}
	engine := &scriptedEngine{} // always requests another tool call

	loop := newTestLoop(t, engine, handler)

	_, err := loop.Run(context.Background(), Mission{
		ID: "m-1", WorkflowID: "wf-1", Objective: "go", MaxDepth: 3,
	})

	require.ErrorIs(t, err, ErrDepthExceeded)
	assert.Equal(t, 3, engine.calls)
	assert.Equal(t, 3, handler.executed)
}

func TestRunAllToolsFailedMeansUnsuccessful(t *testing.T) {
	broken := &countingHandler{name: "navigate", fail: true}
	engine := &scriptedEngine{results: []*reasoning.Result{
		{ToolRequests: []reasoning.ToolRequest{{Name: "navigate", CallID: "call-1"}}},
		{FinalText: "could not proceed"},
	}}

	loop := newTestLoop(t, engine, broken)

	result, err := loop.Run(context.Background(), Mission{ID: "m-1", WorkflowID: "wf-1", Objective: "go"})
	require.NoError(t, err)

	assert.False(t, result.Successful)
	assert.Equal(t, "could not proceed", result.FinalText)
}

func TestRunEngineFailureIsFatal(t *testing.T) {
	loop := newTestLoop(t, failingEngine{})

	_, err := loop.Run(context.Background(), Mission{ID: "m-1", WorkflowID: "wf-1", Objective: "go"})

	require.ErrorIs(t, err, reasoning.ErrProtocol)
}

type failingEngine struct{}

func (failingEngine) Invoke(_ context.Context, _ string, _ []reasoning.Turn, _ []reasoning.ToolDefinition) (*reasoning.Result, error) {
	return nil, reasoning.ErrProtocol
}
