package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Tuning holds server knobs. The combat tag window and the kept fraction are
// fixed rules and intentionally not listed here.
type Tuning struct {
	Addr    string `yaml:"addr" env:"CK_ADDR"`
	DataDir string `yaml:"data_dir" env:"CK_DATA_DIR"`

	// SweepInterval drops stale combat tags in the background; 0 disables.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"CK_SWEEP_INTERVAL"`

	AuditLog bool `yaml:"audit_log" env:"CK_AUDIT_LOG"`
	IndexDB  bool `yaml:"index_db" env:"CK_INDEX_DB"`

	Arena Arena `yaml:"arena" envPrefix:"CK_ARENA_"`

	WSMaxQueue int `yaml:"ws_max_queue" env:"CK_WS_MAX_QUEUE"`

	PprofHTTP bool `yaml:"pprof_http" env:"CK_ENABLE_PPROF_HTTP"`
}

type Arena struct {
	Name     string `yaml:"name" env:"NAME"`
	Slots    int    `yaml:"slots" env:"SLOTS"`
	MaxStack int    `yaml:"max_stack" env:"MAX_STACK"`
}

func Defaults() Tuning {
	return Tuning{
		Addr:          ":8080",
		DataDir:       "./data",
		SweepInterval: 30 * time.Second,
		AuditLog:      true,
		IndexDB:       true,
		Arena: Arena{
			Name:     "arena",
			Slots:    36,
			MaxStack: 64,
		},
		WSMaxQueue: 16,
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// ApplyEnv overrides t with any CK_* variables that are set.
func ApplyEnv(t *Tuning) error {
	if err := env.Parse(t); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (t Tuning) Validate() error {
	if t.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if (t.AuditLog || t.IndexDB) && t.DataDir == "" {
		return fmt.Errorf("data_dir is required when audit_log or index_db is on")
	}
	if t.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval must be >= 0")
	}
	if t.Arena.Slots <= 0 || t.Arena.MaxStack <= 0 {
		return fmt.Errorf("arena slots and max_stack must be > 0")
	}
	if t.WSMaxQueue <= 0 {
		return fmt.Errorf("ws_max_queue must be > 0")
	}
	return nil
}
