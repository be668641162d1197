package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/resolver"
)

const echoMermaid = `---
name: echo
description: smoke test workflow
---
stateDiagram-v2
  [*] --> start
  start --> echo : / set msg = "hi"
  echo --> done
  done --> [*]
`

func TestParseMermaid_EchoWorkflow(t *testing.T) {
	w, err := ParseMermaid("echo", echoMermaid)
	require.NoError(t, err)
	assert.Equal(t, "echo", w.Name)
	assert.Equal(t, "start", w.InitialState)
	assert.True(t, w.States["done"].IsTerminal)
	require.Len(t, w.Transitions, 2)
	assert.Equal(t, "start", w.Transitions[0].From)
	assert.Equal(t, "echo", w.Transitions[0].To)
	assert.Equal(t, `set msg = "hi"`, w.Transitions[0].Action)
	assert.Equal(t, "", w.Transitions[0].Condition)
}

func TestParseMermaid_MissingInitialState(t *testing.T) {
	_, err := ParseMermaid("bad", "stateDiagram-v2\n  a --> b\n")
	require.Error(t, err)
}

func TestSerializeMermaid_RoundTrips(t *testing.T) {
	w, err := ParseMermaid("echo", echoMermaid)
	require.NoError(t, err)

	serialized := SerializeMermaid(w)
	reparsed, err := ParseMermaid("echo", serialized)
	require.NoError(t, err)

	assert.Equal(t, w.InitialState, reparsed.InitialState)
	assert.ElementsMatch(t, w.Transitions, reparsed.Transitions)
}

func TestCompressedBackend_RoundTrips(t *testing.T) {
	backend := NewCompressedBackend(NewMemoryBackend())
	require.NoError(t, backend.Save("k", []byte("hello world")))

	data, ok, err := backend.Load("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello world", string(data))
}

func TestStore_LoadFileAndStoreWorkflow(t *testing.T) {
	cfg := config.DefaultConfig()
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg.Service.DataDir = t.TempDir()

	s := New(cfg)
	name, err := s.LoadFile(resolver.SourceLocal, "echo.mermaid", []byte(echoMermaid))
	require.NoError(t, err)
	assert.Equal(t, "echo", name)

	got, err := s.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "start", got.InitialState)

	require.NoError(t, s.StoreWorkflow(got))
	require.NoError(t, s.RemoveWorkflow("echo"))
	_, err = s.Get("echo")
	require.Error(t, err)
}

func TestRunStore_StoreGetListCleanup(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Service.DataDir = t.TempDir()
	cfg.Workflow.Compress = true

	rs := NewRunStore(cfg)

	run := &WorkflowRun{
		ID:        NewRunID(),
		Workflow:  Workflow{Name: "echo"},
		Status:    StatusRunning,
		StartedAt: time.Now().Add(-48 * time.Hour),
		Variables: map[string]interface{}{"msg": "hi"},
	}
	require.NoError(t, rs.StoreRun(run))

	got, err := rs.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Variables["msg"])

	ids, err := rs.ListRunsForWorkflow("echo")
	require.NoError(t, err)
	assert.Contains(t, ids, run.ID)

	removed, err := rs.CleanupOldRuns(1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = rs.GetRun(run.ID)
	require.Error(t, err)
}
