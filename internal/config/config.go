package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/loykin/botkeeper/internal/cron"
	"github.com/loykin/botkeeper/internal/detector"
	"github.com/loykin/botkeeper/internal/env"
	"github.com/loykin/botkeeper/internal/logger"
	"github.com/loykin/botkeeper/internal/process"
	"github.com/loykin/botkeeper/internal/watchdog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. BOTKEEPER_PROBE_USER.
const EnvPrefix = "BOTKEEPER"

// Config represents the top-level TOML structure.
type Config struct {
	Probe    ProbeConfig    `mapstructure:"probe"`
	Download DownloadConfig `mapstructure:"download"`
	Log      logger.Config  `mapstructure:"log"`
	History  HistoryConfig  `mapstructure:"history"`
	Server   ServerConfig   `mapstructure:"server"`
}

// ProbeConfig selects what to look for and what to start when it is missing.
type ProbeConfig struct {
	Name         string   `mapstructure:"name"`
	User         string   `mapstructure:"user"`
	Match        string   `mapstructure:"match"`
	Command      string   `mapstructure:"command"`
	Args         []string `mapstructure:"args"`
	WorkDir      string   `mapstructure:"workdir"`
	Env          []string `mapstructure:"env"`
	EnvFiles     []string `mapstructure:"env_files"`
	StdoutPath   string   `mapstructure:"stdout_path"`
	StderrPath   string   `mapstructure:"stderr_path"`
	Policy       string   `mapstructure:"policy"`
	Schedule     string   `mapstructure:"schedule"`
	Detector     string   `mapstructure:"detector"`
	CheckCommand string   `mapstructure:"check_command"`
}

type DownloadConfig struct {
	OutputTemplate string `mapstructure:"output_template"`
	Binary         string `mapstructure:"binary"`
	Install        bool   `mapstructure:"install"`
}

type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("probe.name", "ytdlbot")
	v.SetDefault("probe.user", "root")
	v.SetDefault("probe.match", "node")
	v.SetDefault("probe.command", "/usr/bin/node")
	v.SetDefault("probe.args", []string{"/home/pi/srv/YTDLBOT/main.js"})
	v.SetDefault("probe.workdir", "")
	v.SetDefault("probe.env", []string{})
	v.SetDefault("probe.env_files", []string{})
	v.SetDefault("probe.stdout_path", "")
	v.SetDefault("probe.stderr_path", "")
	v.SetDefault("probe.policy", "fail-open")
	v.SetDefault("probe.schedule", "@every 2m30s")
	v.SetDefault("probe.detector", "process")
	v.SetDefault("probe.check_command", "")

	v.SetDefault("download.output_template", "./downloads/%(id)s.%(ext)s")
	v.SetDefault("download.binary", "")
	v.SetDefault("download.install", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.no_color", false)

	v.SetDefault("history.dsn", "")

	v.SetDefault("server.listen", ":9090")
	v.SetDefault("server.base_path", "")
}

// Load reads path as TOML on top of the built-in defaults and applies
// BOTKEEPER_* environment overrides. With an empty path, botkeeper.toml is
// looked up in the working directory and /etc/botkeeper; finding none is
// not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("botkeeper")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/botkeeper")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Probe.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	// defaults always decode
	_ = v.Unmarshal(&c)
	return &c
}

// Validate checks the probe section without touching the system.
func (p ProbeConfig) Validate() error {
	if _, err := watchdog.ParsePolicy(p.Policy); err != nil {
		return err
	}
	if p.Schedule != "" {
		if _, err := cron.Parse(p.Schedule); err != nil {
			return fmt.Errorf("probe.schedule: %w", err)
		}
	}
	switch p.Detector {
	case "", "process":
		if p.Match == "" {
			return errors.New("probe.match is required for the process detector")
		}
	case "command":
		if p.CheckCommand == "" {
			return errors.New("probe.check_command is required for the command detector")
		}
	default:
		return fmt.Errorf("unknown probe.detector %q (want process or command)", p.Detector)
	}
	if strings.TrimSpace(p.Command) == "" {
		return errors.New("probe.command is required")
	}
	return nil
}

// PolicyValue returns the parsed policy.
func (p ProbeConfig) PolicyValue() (watchdog.Policy, error) {
	return watchdog.ParsePolicy(p.Policy)
}

// ProcessDetector returns the native process-table detector for the
// configured user and match, whatever probe.detector says. It backs `ps`
// and the HTTP process listing.
func (p ProbeConfig) ProcessDetector() detector.ProcessDetector {
	return detector.ProcessDetector{User: p.User, Match: p.Match}
}

// BuildDetector returns the detector selected by probe.detector.
func (p ProbeConfig) BuildDetector() (detector.Detector, error) {
	switch p.Detector {
	case "", "process":
		if p.Match == "" {
			return nil, errors.New("probe.match is required for the process detector")
		}
		return p.ProcessDetector(), nil
	case "command":
		if p.CheckCommand == "" {
			return nil, errors.New("probe.check_command is required for the command detector")
		}
		return detector.CommandDetector{Command: p.CheckCommand}, nil
	}
	return nil, fmt.Errorf("unknown probe.detector %q", p.Detector)
}

// Target builds the spawn spec. Env is env_files merged in order, then the
// env list on top.
func (p ProbeConfig) Target() (process.Spec, error) {
	e := env.New()
	for _, f := range p.EnvFiles {
		if err := e.LoadFile(f); err != nil {
			return process.Spec{}, fmt.Errorf("env file %s: %w", f, err)
		}
	}
	e.SetList(p.Env)
	s := process.Spec{
		Name:       p.Name,
		Command:    p.Command,
		Args:       append([]string(nil), p.Args...),
		WorkDir:    p.WorkDir,
		Env:        e.Overrides(),
		StdoutPath: p.StdoutPath,
		StderrPath: p.StderrPath,
	}
	if err := s.Validate(); err != nil {
		return process.Spec{}, fmt.Errorf("probe target: %w", err)
	}
	return s, nil
}
