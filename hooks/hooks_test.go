package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/state"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRunPrestartReceivesStateOnStdin(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	script := writeScript(t, "cat > "+out)
	cfg := &configs.Hooks{Prestart: []configs.Hook{{Path: script}}}

	err := Run(context.Background(), cfg, Prestart, state.OCIState{ID: "abc", Status: "creating"})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), `"id":"abc"`)
}

func TestRunAbortsOnNonPoststopFailure(t *testing.T) {
	script := writeScript(t, "exit 1")
	cfg := &configs.Hooks{CreateRuntime: []configs.Hook{{Path: script}}}

	err := Run(context.Background(), cfg, CreateRuntime, state.OCIState{ID: "abc"})
	require.Error(t, err)
}

func TestRunPoststopFailureIsNonFatal(t *testing.T) {
	script := writeScript(t, "exit 1")
	cfg := &configs.Hooks{Poststop: []configs.Hook{{Path: script}}}

	err := Run(context.Background(), cfg, Poststop, state.OCIState{ID: "abc"})
	require.NoError(t, err)
}

func TestRunNilHooksIsNoop(t *testing.T) {
	require.NoError(t, Run(context.Background(), nil, Prestart, state.OCIState{}))
}
