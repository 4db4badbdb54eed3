// Package config loads worker configuration from INVOKER_-prefixed
// environment variables and the file-backed YAML sandbox-pool defaults,
// auto-creating the latter on first run the way the reference
// implementation's Config::load does.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"invoker/internal/sandbox"
)

// Worker holds the environment-derived settings a running worker needs.
type Worker struct {
	ManagerHost    string
	ConfigDir      string
	WorkDir        string
	IsolateExePath string
}

// LoadWorker reads INVOKER_-prefixed environment variables, first attempting
// to load a .env file via godotenv (missing .env is not an error).
func LoadWorker() (Worker, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Worker{}, fmt.Errorf("config: load .env: %w", err)
	}

	w := Worker{
		ManagerHost:    os.Getenv("INVOKER_MANAGER_HOST"),
		ConfigDir:      os.Getenv("INVOKER_CONFIG_DIR"),
		WorkDir:        os.Getenv("INVOKER_WORK_DIR"),
		IsolateExePath: os.Getenv("INVOKER_ISOLATE_EXE_PATH"),
	}

	if w.ManagerHost == "" {
		return Worker{}, fmt.Errorf("config: INVOKER_MANAGER_HOST is required")
	}
	if w.ConfigDir == "" {
		w.ConfigDir = "/etc/invoker"
	}
	if w.WorkDir == "" {
		w.WorkDir = "/var/lib/invoker"
	}
	if w.IsolateExePath == "" {
		w.IsolateExePath = "/usr/local/bin/isolate"
	}

	return w, nil
}

// LoadPoolConfig reads <dir>/pool.yaml, writing out sandbox.DefaultPoolConfig
// there first if the file does not already exist.
func LoadPoolConfig(dir string) (sandbox.PoolConfig, error) {
	path := filepath.Join(dir, "pool.yaml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		def := sandbox.DefaultPoolConfig()
		data, err := yaml.Marshal(def)
		if err != nil {
			return sandbox.PoolConfig{}, fmt.Errorf("config: marshal default pool config: %w", err)
		}
		if err := os.MkdirAll(dir, 0o777); err != nil {
			return sandbox.PoolConfig{}, fmt.Errorf("config: create config dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return sandbox.PoolConfig{}, fmt.Errorf("config: write default pool config: %w", err)
		}
		return def, nil
	} else if err != nil {
		return sandbox.PoolConfig{}, fmt.Errorf("config: stat %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sandbox.PoolConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg sandbox.PoolConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return sandbox.PoolConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
