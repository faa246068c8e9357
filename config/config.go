// Package config loads pairtalk settings from a TOML or YAML file and
// PAIRTALK_ environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to the upper-cased key path, with dots replaced
// by underscores, to form the environment variable overriding a key.
const EnvPrefix = "PAIRTALK_"

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	Session SessionConfig `mapstructure:"session"`
	Listen  string        `mapstructure:"listen"`
	Connect ConnectConfig `mapstructure:"connect"`
	Journal JournalConfig `mapstructure:"journal"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`

	// Outputs are "stdout", "stderr" or file paths. Empty means stderr.
	Outputs  []string       `mapstructure:"outputs"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig applies to file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type StoreConfig struct {
	Dir           string `mapstructure:"dir"`
	Conflict      string `mapstructure:"conflict"`
	RemovePartial bool   `mapstructure:"remove_partial"`
}

type SessionConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	ProgressStep uint64 `mapstructure:"progress_step"`
}

type ConnectConfig struct {
	Attempts uint          `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

type JournalConfig struct {
	Path     string `mapstructure:"path"`
	Format   string `mapstructure:"format"`
	Progress bool   `mapstructure:"progress"`
}

func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Rotation: RotationConfig{
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
		Store: StoreConfig{
			Dir:      "pairtalk",
			Conflict: "overwrite",
		},
		Session: SessionConfig{
			ChunkSize:    4096,
			ProgressStep: 64 * 1024,
		},
		Listen: "tcp://0.0.0.0:7700",
		Connect: ConnectConfig{
			Attempts: 1,
			Delay:    time.Second,
		},
		Journal: JournalConfig{
			Format: "json",
		},
	}
}

// envKeys lists the keys that can be set from the environment.
var envKeys = []string{
	"log.level",
	"log.format",
	"log.outputs",
	"log.rotation.enable",
	"log.rotation.filename",
	"log.rotation.max_size_mb",
	"log.rotation.max_backups",
	"log.rotation.max_age_days",
	"log.rotation.compress",
	"store.dir",
	"store.conflict",
	"store.remove_partial",
	"session.chunk_size",
	"session.progress_step",
	"listen",
	"connect.attempts",
	"connect.delay",
	"journal.path",
	"journal.format",
	"journal.progress",
}

// Load returns the defaults overlaid with the file at path, if path is not
// empty, and then with the environment.
func Load(path string) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		if err := readFile(path, raw); err != nil {
			return Config{}, err
		}
	}
	overlayEnv(raw, os.LookupEnv)

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func readFile(path string, raw map[string]any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.Decode(string(b), &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &raw)
	default:
		return fmt.Errorf("config %s: unsupported file type", path)
	}
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func overlayEnv(raw map[string]any, lookup func(string) (string, bool)) {
	for _, key := range envKeys {
		name := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		v, ok := lookup(name)
		if !ok {
			continue
		}
		var val any = v
		if key == "log.outputs" {
			val = splitList(v)
		}
		set(raw, strings.Split(key, "."), val)
	}
}

func splitList(s string) []any {
	var out []any
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func set(m map[string]any, path []string, v any) {
	for _, k := range path[:len(path)-1] {
		child, ok := m[k].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[k] = child
		}
		m = child
	}
	m[path[len(path)-1]] = v
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
