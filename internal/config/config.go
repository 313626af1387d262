// Package config holds all ganaudit engine configuration: per-process
// defaults, the YAML config file under the state directory, environment
// overrides, and the inline gan-config merge used by the orchestrator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"ganaudit/internal/types"
)

// DefaultStateDir is where sessions, logs, audit trail and archive live.
const DefaultStateDir = ".mcp-gan-state"

// Config holds all ganaudit configuration.
type Config struct {
	// State directory for sessions, logs, audit trail, archive.
	StateDir string `yaml:"state_dir"`

	// Session defaults applied to newly created sessions.
	Session types.SessionConfig `yaml:"session"`

	Cache      CacheConfig      `yaml:"cache"`
	Queue      QueueConfig      `yaml:"queue"`
	Completion CompletionConfig `yaml:"completion"`
	Stagnation StagnationConfig `yaml:"stagnation"`
	Sanitizer  SanitizerConfig  `yaml:"sanitizer"`
	Progress   ProgressConfig   `yaml:"progress"`
	Output     OutputConfig     `yaml:"output"`
	Store      StoreConfig      `yaml:"store"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CacheConfig bounds the result cache.
type CacheConfig struct {
	Capacity int           `yaml:"capacity" validate:"min=1"`
	TTL      time.Duration `yaml:"ttl" validate:"min=1s"`
}

// QueueConfig bounds the audit queue.
type QueueConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent" validate:"min=1"`
	MaxQueueSize  int           `yaml:"max_queue_size" validate:"min=1"`
	JobTimeout    time.Duration `yaml:"job_timeout" validate:"min=1s"`
	MaxRetries    int           `yaml:"max_retries" validate:"min=0"`
	StatsWindow   int           `yaml:"stats_window" validate:"min=1"`
}

// CompletionTier is one (score, minimum-loop) termination rule.
type CompletionTier struct {
	Score  int `yaml:"score" validate:"min=0,max=100"`
	AtLoop int `yaml:"at_loop" validate:"min=0"`
}

// CompletionConfig holds the tiered termination policy.
type CompletionConfig struct {
	Tiers    []CompletionTier `yaml:"tiers" validate:"min=1,dive"`
	HardStop int              `yaml:"hard_stop" validate:"min=1"`
}

// StagnationConfig tunes the similarity analyzer.
type StagnationConfig struct {
	MinIterations    int     `yaml:"min_iterations" validate:"min=1"`
	StartLoop        int     `yaml:"start_loop" validate:"min=0"`
	Window           int     `yaml:"window" validate:"min=2"`
	SimilarityBar    float64 `yaml:"similarity_bar" validate:"gt=0,lte=1"`
	CosmeticBar      float64 `yaml:"cosmetic_bar" validate:"gt=0,lte=1"`
	ScoreEpsilon     float64 `yaml:"score_epsilon" validate:"min=0"`
	SampleThreshold  int     `yaml:"sample_threshold" validate:"min=100"`
	RevertSimilarity float64 `yaml:"revert_similarity" validate:"gt=0,lte=1"`
}

// SanitizerLevel selects how aggressive the output scrubbing is.
type SanitizerLevel string

const (
	SanitizerMinimal  SanitizerLevel = "minimal"
	SanitizerStandard SanitizerLevel = "standard"
	SanitizerStrict   SanitizerLevel = "strict"
)

// SanitizerConfig tunes the output sanitizer.
type SanitizerConfig struct {
	Level        SanitizerLevel `yaml:"level" validate:"oneof=minimal standard strict"`
	MaxPathDepth int            `yaml:"max_path_depth" validate:"min=1"`
	// MinConfidence is the average redaction confidence below which the
	// sanitizer emits a warning.
	MinConfidence int `yaml:"min_confidence" validate:"min=0,max=100"`
}

// ProgressConfig tunes the progress tracker.
type ProgressConfig struct {
	EnableAfter time.Duration `yaml:"enable_after" validate:"min=0"`
	MaxTracked  int           `yaml:"max_tracked" validate:"min=1"`
}

// OutputConfig bounds the structured output builder.
type OutputConfig struct {
	ComponentTimeout time.Duration `yaml:"component_timeout" validate:"min=1s"`
	TotalTimeout     time.Duration `yaml:"total_timeout" validate:"min=1s"`
	MaxEvidence      int           `yaml:"max_evidence" validate:"min=1"`
	MaxLinesPerDiff  int           `yaml:"max_lines_per_diff" validate:"min=1"`
	MaxFilesPerDiff  int           `yaml:"max_files_per_diff" validate:"min=1"`
	MaxHunkSize      int           `yaml:"max_hunk_size" validate:"min=1"`
	// Traceability heuristics (tunable knobs, not proven policies).
	TraceDirectWeight  int  `yaml:"trace_direct_weight" validate:"min=0,max=100"`
	TraceKeywordWeight int  `yaml:"trace_keyword_weight" validate:"min=0,max=100"`
	TraceMinConfidence int  `yaml:"trace_min_confidence" validate:"min=0,max=100"`
	Parallel           bool `yaml:"parallel"`
}

// StoreConfig tunes session persistence and GC.
type StoreConfig struct {
	MaxSessionAge   time.Duration `yaml:"max_session_age" validate:"min=1m"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"min=1m"`
	WriteRetries    int           `yaml:"write_retries" validate:"min=0"`
}

// ArchiveConfig controls the completed-session sqlite archive.
type ArchiveConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus listener in serve mode.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig mirrors internal/logging's expectations.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		StateDir: DefaultStateDir,
		Session:  types.DefaultSessionConfig(),
		Cache: CacheConfig{
			Capacity: 256,
			TTL:      30 * time.Minute,
		},
		Queue: QueueConfig{
			MaxConcurrent: 3,
			MaxQueueSize:  50,
			JobTimeout:    30 * time.Second,
			MaxRetries:    1,
			StatsWindow:   100,
		},
		Completion: CompletionConfig{
			Tiers: []CompletionTier{
				{Score: 95, AtLoop: 10},
				{Score: 90, AtLoop: 15},
				{Score: 85, AtLoop: 20},
			},
			HardStop: 25,
		},
		Stagnation: StagnationConfig{
			MinIterations:    3,
			StartLoop:        10,
			Window:           3,
			SimilarityBar:    0.95,
			CosmeticBar:      0.98,
			ScoreEpsilon:     0.01,
			SampleThreshold:  1000,
			RevertSimilarity: 0.9,
		},
		Sanitizer: SanitizerConfig{
			Level:         SanitizerStandard,
			MaxPathDepth:  5,
			MinConfidence: 60,
		},
		Progress: ProgressConfig{
			EnableAfter: 5 * time.Second,
			MaxTracked:  10,
		},
		Output: OutputConfig{
			ComponentTimeout:   10 * time.Second,
			TotalTimeout:       30 * time.Second,
			MaxEvidence:        25,
			MaxLinesPerDiff:    400,
			MaxFilesPerDiff:    8,
			MaxHunkSize:        120,
			TraceDirectWeight:  80,
			TraceKeywordWeight: 20,
			TraceMinConfidence: 60,
			Parallel:           true,
		},
		Store: StoreConfig{
			MaxSessionAge:   24 * time.Hour,
			CleanupInterval: time.Hour,
			WriteRetries:    2,
		},
		Archive: ArchiveConfig{Enabled: true},
		Metrics: MetricsConfig{Enabled: false, Addr: ":9090"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Path returns the config file path under the state directory.
func (c *Config) Path() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// Load reads config.yaml from the state directory, applies environment
// overrides and validates the result. A missing file yields defaults.
func Load(stateDir string) (*Config, error) {
	cfg := DefaultConfig()
	if stateDir != "" {
		cfg.StateDir = stateDir
	}

	data, err := os.ReadFile(cfg.Path())
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", cfg.Path(), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to <stateDir>/config.yaml.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(c.Path(), data, 0o644)
}

// applyEnvOverrides maps GANAUDIT_* environment variables onto the config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GANAUDIT_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("GANAUDIT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.Threshold = n
		}
	}
	if v := os.Getenv("GANAUDIT_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.MaxConcurrent = n
		}
	}
	if v := os.Getenv("GANAUDIT_MAX_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.MaxQueueSize = n
		}
	}
	if v := os.Getenv("GANAUDIT_JOB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Queue.JobTimeout = d
		}
	}
	if v := os.Getenv("GANAUDIT_SANITIZER_LEVEL"); v != "" {
		switch SanitizerLevel(strings.ToLower(v)) {
		case SanitizerMinimal, SanitizerStandard, SanitizerStrict:
			c.Sanitizer.Level = SanitizerLevel(strings.ToLower(v))
		}
	}
	if v := os.Getenv("GANAUDIT_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		c.Logging.DebugMode = true
	}
}

var validate = validator.New()

// Validate checks struct tags plus the semantic couplings the tags cannot
// express (tier ordering, scope/paths).
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Session.Scope == types.ScopePaths && len(c.Session.Paths) == 0 {
		return fmt.Errorf("config validation: scope=paths requires non-empty paths")
	}
	for i := 1; i < len(c.Completion.Tiers); i++ {
		prev, cur := c.Completion.Tiers[i-1], c.Completion.Tiers[i]
		if cur.AtLoop <= prev.AtLoop || cur.Score >= prev.Score {
			return fmt.Errorf("config validation: completion tiers must descend in score and ascend in loop")
		}
	}
	last := c.Completion.Tiers[len(c.Completion.Tiers)-1]
	if c.Completion.HardStop <= last.AtLoop {
		return fmt.Errorf("config validation: hard stop %d must exceed final tier loop %d", c.Completion.HardStop, last.AtLoop)
	}
	if c.Output.TraceDirectWeight+c.Output.TraceKeywordWeight != 100 {
		return fmt.Errorf("config validation: traceability weights must sum to 100")
	}
	return nil
}
