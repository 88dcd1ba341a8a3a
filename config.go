package shardgrep

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/prxssh/shardgrep/api"
	"go.opentelemetry.io/otel/metric"
	"gopkg.in/yaml.v3"
	"storj.io/common/memory"
)

const (
	defaultMasterAddr = ":6969"
	defaultOutputDir  = "output"
	defaultChunkSize  = 64 * memory.KiB
)

// Role represents the operational mode of the shardgrep instance.
//
// A single binary can run a whole search in-process, or act as the
// coordinator or one rank of a search spread across processes.
type Role string

const (
	// RoleLocal runs every rank as a goroutine and coordinates them
	// in-process.
	RoleLocal Role = "local"

	// RoleMaster indicates this instance acts as the coordinator.
	// It waits for every rank to report, then merges and writes the output.
	RoleMaster Role = "master"

	// RoleWorker indicates this instance scans one rank's shard and reports
	// to the master.
	RoleWorker Role = "worker"
)

// Config holds the infrastructure settings of a search run.
type Config struct {
	// Pattern is the literal byte string to search for (required).
	Pattern string

	// InputDir holds the corpus. Every regular file directly inside it is
	// searched.
	InputDir string

	// OutputDir receives the per-rank partial outputs and the merged output.
	OutputDir string

	// Workers is the total number of ranks (W). Every process of a run must
	// agree on it.
	Workers int

	// Rank is this process's rank. Only used if the Role is RoleWorker.
	Rank int

	// Role determines the runtime behaviour of this process.
	Role Role

	// MasterAddr is the connection string (e.g., "localhost:6969") of the
	// master. The master listens on it and workers dial it.
	MasterAddr string

	// ChunkSize is the size of each read fed to the matcher. It only
	// affects memory use, never results.
	ChunkSize memory.Size

	// Storer provides access to the corpus and the output. If nil, the local
	// file system is used.
	Storer api.Storer

	// Logger receives operator diagnostics. If nil, a text logger on stderr
	// is used.
	Logger *slog.Logger

	// MeterProvider receives worker metrics. If nil, the global provider is
	// used.
	MeterProvider metric.MeterProvider
}

type Option func(*Config)

// WithPattern sets the search pattern.
func WithPattern(pattern string) Option {
	return func(c *Config) {
		c.Pattern = pattern
	}
}

// WithInputDir sets the corpus directory.
func WithInputDir(dir string) Option {
	return func(c *Config) {
		c.InputDir = dir
	}
}

// WithOutputDir sets the directory for output files.
func WithOutputDir(dir string) Option {
	return func(c *Config) {
		c.OutputDir = dir
	}
}

// WithWorkers sets the number of ranks (W).
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithRank sets the rank of a worker process.
func WithRank(rank int) Option {
	return func(c *Config) {
		c.Rank = rank
	}
}

// WithRole sets the role to local, master or worker.
func WithRole(role Role) Option {
	return func(c *Config) {
		c.Role = role
	}
}

// WithMasterAddr sets the address of the master (e.g., "localhost:6969").
func WithMasterAddr(addr string) Option {
	return func(c *Config) {
		c.MasterAddr = addr
	}
}

// WithChunkSize sets the read size used while scanning.
func WithChunkSize(size memory.Size) Option {
	return func(c *Config) {
		c.ChunkSize = size
	}
}

// WithStorer sets the storage backend.
func WithStorer(s api.Storer) Option {
	return func(c *Config) {
		c.Storer = s
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMeterProvider sets the metrics provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) {
		c.MeterProvider = mp
	}
}

func defaultConfig() *Config {
	return &Config{
		Workers:    runtime.NumCPU(),
		Role:       RoleLocal,
		MasterAddr: defaultMasterAddr,
		OutputDir:  defaultOutputDir,
		ChunkSize:  defaultChunkSize,
	}
}

func NewConfig(opts ...Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// fileConfig is the YAML shape of a Config.
type fileConfig struct {
	Pattern    string `yaml:"pattern"`
	InputDir   string `yaml:"input_dir"`
	OutputDir  string `yaml:"output_dir"`
	Workers    int    `yaml:"workers"`
	Rank       int    `yaml:"rank"`
	Role       Role   `yaml:"role"`
	MasterAddr string `yaml:"master_addr"`
	ChunkSize  string `yaml:"chunk_size"`
}

// LoadConfig reads a YAML config file, then applies opts on top of it. A
// missing file yields the defaults.
func LoadConfig(path string, opts ...Option) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("shardgrep: failed to read config: %w", err)
	default:
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("shardgrep: failed to parse config: %w", err)
		}
		if err := fc.apply(cfg); err != nil {
			return nil, err
		}
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	if fc.Pattern != "" {
		cfg.Pattern = fc.Pattern
	}
	if fc.InputDir != "" {
		cfg.InputDir = fc.InputDir
	}
	if fc.OutputDir != "" {
		cfg.OutputDir = fc.OutputDir
	}
	if fc.Workers != 0 {
		cfg.Workers = fc.Workers
	}
	if fc.Rank != 0 {
		cfg.Rank = fc.Rank
	}
	if fc.Role != "" {
		cfg.Role = fc.Role
	}
	if fc.MasterAddr != "" {
		cfg.MasterAddr = fc.MasterAddr
	}
	if fc.ChunkSize != "" {
		size, err := memory.ParseString(fc.ChunkSize)
		if err != nil {
			return fmt.Errorf("shardgrep: invalid chunk_size %q: %w", fc.ChunkSize, err)
		}
		cfg.ChunkSize = memory.Size(size)
	}

	return nil
}

// validate checks the settings. The pattern is checked separately, when it is
// compiled, so that an empty pattern surfaces as ErrInvalidPattern.
func (cfg *Config) validate() error {
	if cfg.InputDir == "" {
		return errors.New("shardgrep: InputDir is required")
	}

	if cfg.OutputDir == "" {
		return errors.New("shardgrep: OutputDir cannot be empty")
	}

	if cfg.Workers <= 0 {
		return errors.New("shardgrep: Workers must be greater than 0")
	}

	if cfg.ChunkSize <= 0 {
		return errors.New("shardgrep: ChunkSize must be greater than 0")
	}

	switch cfg.Role {
	case RoleLocal:
	case RoleMaster, RoleWorker:
		if cfg.MasterAddr == "" {
			return errors.New("shardgrep: MasterAddr cannot be empty")
		}
	default:
		return fmt.Errorf(
			"shardgrep: invalid Role '%s' (must be 'local', 'master' or 'worker')",
			cfg.Role,
		)
	}

	if cfg.Role == RoleWorker && (cfg.Rank < 0 || cfg.Rank >= cfg.Workers) {
		return fmt.Errorf("shardgrep: Rank %d out of range [0, %d)", cfg.Rank, cfg.Workers)
	}

	return nil
}
