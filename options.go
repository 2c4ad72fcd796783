package cotask

// RuntimeOption configures a Runtime at construction time, overriding
// whatever was loaded into its Config by LoadConfig.
type RuntimeOption interface {
	applyRuntime(*Config) error
}

type runtimeOptionImpl struct {
	applyRuntimeFunc func(*Config) error
}

func (o *runtimeOptionImpl) applyRuntime(cfg *Config) error {
	return o.applyRuntimeFunc(cfg)
}

// WithArenaCapacity bounds the number of tasks the runtime's id arena can
// hold concurrently (spawning beyond it fails with ErrOverflow).
func WithArenaCapacity(n int) RuntimeOption {
	return &runtimeOptionImpl{func(cfg *Config) error {
		if n <= 0 {
			return newErr("WithArenaCapacity", KindINVAL)
		}
		cfg.ArenaCapacity = n
		return nil
	}}
}

// WithDefaultSyncMode sets the SyncMode newly spawned tasks latch until
// they call SetSyncMode themselves.
func WithDefaultSyncMode(mode SyncMode) RuntimeOption {
	return &runtimeOptionImpl{func(cfg *Config) error {
		if !mode.valid() {
			return newErr("WithDefaultSyncMode", KindINVAL)
		}
		cfg.DefaultSyncMode = mode
		return nil
	}}
}

// WithAutoYieldRounds overrides how many YIELD-pattern rounds SyncAuto
// attempts before falling through to SyncBlocking (spec.md §4.2; default
// 100).
func WithAutoYieldRounds(n int) RuntimeOption {
	return &runtimeOptionImpl{func(cfg *Config) error {
		if n <= 0 {
			return newErr("WithAutoYieldRounds", KindINVAL)
		}
		cfg.AutoYieldRounds = n
		return nil
	}}
}

// WithLogger installs a Logger. Without it, the Runtime uses the
// package-level logger (SetStructuredLogger), a no-op until one is set.
func WithLogger(l *Logger) RuntimeOption {
	return &runtimeOptionImpl{func(cfg *Config) error {
		cfg.logger = l
		return nil
	}}
}

// WithDeadlockThreshold sets how many parked scheduler rounds, summed over
// all schedulers since any of them last dispatched a task, are tolerated
// before Runtime.Stats reports a suspected deadlock (diagnostics.go).
func WithDeadlockThreshold(rounds int64) RuntimeOption {
	return &runtimeOptionImpl{func(cfg *Config) error {
		if rounds <= 0 {
			return newErr("WithDeadlockThreshold", KindINVAL)
		}
		cfg.DeadlockThreshold = rounds
		return nil
	}}
}

// resolveRuntimeOptions applies opts over a clone of base, leaving base
// untouched.
func resolveRuntimeOptions(base *Config, opts []RuntimeOption) (*Config, error) {
	cfg := base.clone()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
