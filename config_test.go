package cotask

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ParsesNamedSection(t *testing.T) {
	buf := []byte(`
cotask_config:
  arena_capacity: 256
  default_sync_mode: 2
  auto_yield_rounds: 50
  deadlock_threshold: 7
`)
	cfg, err := LoadConfig("test.yaml", buf)
	require.NoError(t, err)
	require.Equal(t, 256, cfg.ArenaCapacity)
	require.Equal(t, SyncYield, cfg.DefaultSyncMode)
	require.Equal(t, 50, cfg.AutoYieldRounds)
	require.Equal(t, int64(7), cfg.DeadlockThreshold)
}

func TestLoadConfig_AbsentSectionUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("test.yaml", []byte("unrelated_key: 1\n"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_RoundTripMatchesExplicitConfig(t *testing.T) {
	buf := []byte(`
cotask_config:
  arena_capacity: 64
  auto_yield_rounds: 10
  deadlock_threshold: 5
`)
	got, err := LoadConfig("test.yaml", buf)
	require.NoError(t, err)

	want := DefaultConfig()
	want.ArenaCapacity = 64
	want.AutoYieldRounds = 10
	want.DeadlockThreshold = 5

	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Fatalf("LoadConfig result mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_InvalidRootIsError(t *testing.T) {
	_, err := LoadConfig("test.yaml", []byte("- just\n- a\n- list\n"))
	require.Error(t, err)
}

func TestLoadConfig_MalformedYAMLIsError(t *testing.T) {
	_, err := LoadConfig("test.yaml", []byte("cotask_config: [unterminated\n"))
	require.Error(t, err)
}

func TestConfig_CloneIsIndependent(t *testing.T) {
	base := DefaultConfig()
	clone := base.clone()
	clone.ArenaCapacity = 1

	require.Equal(t, DefaultArenaCapacity, base.ArenaCapacity)
	require.Equal(t, 1, clone.ArenaCapacity)
}

func TestConfig_CloneCarriesUnexportedLogger(t *testing.T) {
	base := DefaultConfig()
	l := NewLogrusLogger(logrus.New(), 0)
	base.logger = l
	clone := base.clone()
	require.Same(t, l, clone.logger)
}

func TestConfig_Describe_IsNonEmpty(t *testing.T) {
	cfg := DefaultConfig()
	require.NotEmpty(t, cfg.describe())
}

func TestResolveRuntimeOptions_AppliesOverBaseClone(t *testing.T) {
	base := DefaultConfig()
	cfg, err := resolveRuntimeOptions(base, []RuntimeOption{
		WithArenaCapacity(8),
		WithDefaultSyncMode(SyncBusyWait),
	})
	require.NoError(t, err)
	require.Equal(t, 8, cfg.ArenaCapacity)
	require.Equal(t, SyncBusyWait, cfg.DefaultSyncMode)
	require.Equal(t, DefaultArenaCapacity, base.ArenaCapacity, "base must not be mutated")
}

func TestResolveRuntimeOptions_RejectsInvalidOption(t *testing.T) {
	_, err := resolveRuntimeOptions(DefaultConfig(), []RuntimeOption{WithArenaCapacity(0)})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInval)
}
