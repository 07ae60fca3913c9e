package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config mirrors the fields the scheduler core reads, per spec.md §6.
// Everything outside this set (harbor wire protocol, module resolution
// rules, daemon fork mechanics) belongs to the collaborators the core
// treats as opaque, and is not modeled here beyond the string/bool the
// core passes through at startup.
type Config struct {
	Thread     int    `toml:"thread"`      // worker count
	RecordFile string `toml:"recordfile"`  // replay source path; empty disables replay
	Daemon     string `toml:"daemon"`      // pidfile path; empty disables daemonizing
	Harbor     int    `toml:"harbor"`      // harbor node id; 0 disables cluster mode
	ModulePath string `toml:"module_path"` // service module search path
	Profile    bool   `toml:"profile"`     // enable profiling hooks (§12 thread_time)
	LogService string `toml:"logservice"`  // constructor name for the logger service
	Logger     string `toml:"logger"`      // args passed to the logger service
	Bootstrap  string `toml:"bootstrap"`   // "name args..." cmdline for the first service

	// StatusAddr, if non-empty, serves the teacher-style /status /health
	// introspection surface (SPEC_FULL.md §11).
	StatusAddr string `toml:"status_addr"`

	// TelemetryEnabled gates the OpenTelemetry meter the way notifyhub
	// gates its TelemetryProvider on cfg.Enabled (SPEC_FULL.md §11).
	TelemetryEnabled bool `toml:"telemetry_enabled"`
}

// defaultConfig matches the teacher's flag defaults in spirit: a small
// worker count, no replay, no daemon, bootstrap into a trivial echo
// service so `go run .` does something observable out of the box.
func defaultConfig() Config {
	return Config{
		Thread:     4,
		ModulePath: "./services",
		LogService: "logger",
		Bootstrap:  "echo",
		StatusAddr: ":8080",
	}
}

// loadConfig reads a TOML file at path, merging over defaultConfig(). A
// missing file is not an error — the defaults are a complete, runnable
// configuration, matching the teacher's all-flags-have-defaults design.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
