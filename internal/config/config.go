// Package config handles daemon configuration
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/umbradim/umbra/internal/errors"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`

	// Brightness-to-opacity mapping. Dimming starts at ThresholdStart and
	// reaches MaxOpacity at ThresholdMax, both on the 0-255 luminance scale.
	ThresholdStart float64 `yaml:"threshold_start"`
	ThresholdMax   float64 `yaml:"threshold_max"`
	MaxOpacity     float64 `yaml:"max_opacity"`
	CheckInterval  float64 `yaml:"check_interval"` // seconds
	EasingFactor   float64 `yaml:"easing_factor"`
	Strength       float64 `yaml:"strength"`

	Monitors []int `yaml:"monitors"`

	OverlayCommand string `yaml:"overlay_command"`
	ChangeDetect   bool   `yaml:"change_detect"`

	StatusInterval float64 `yaml:"status_interval"` // seconds
	SampleInterval float64 `yaml:"sample_interval"` // seconds
	HistoryPoints  int     `yaml:"history_points"`
	CSVPath        string  `yaml:"csv_path"`
	DBPath         string  `yaml:"db_path"`
}

func defaults() *Config {
	return &Config{
		HTTPAddr:       ":8686",
		LogLevel:       "info",
		ThresholdStart: 25,
		ThresholdMax:   100,
		MaxOpacity:     240,
		CheckInterval:  0.05,
		EasingFactor:   0.15,
		Strength:       1.0,
		Monitors:       []int{1},
		OverlayCommand: "umbra-overlay",
		ChangeDetect:   true,
		StatusInterval: 2.0,
		SampleInterval: 1.0,
		HistoryPoints:  120,
		CSVPath:        "",
		DBPath:         "",
	}
}

// Load builds configuration from defaults overridden by environment variables.
func Load() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile layers a YAML file between defaults and environment variables.
// Environment always wins.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfigMissing, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfigInvalid, "parse config file %s", path)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("UMBRA_HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getEnv("UMBRA_LOG_LEVEL", c.LogLevel)
	c.ThresholdStart = getEnvFloat("UMBRA_THRESHOLD_START", c.ThresholdStart)
	c.ThresholdMax = getEnvFloat("UMBRA_THRESHOLD_MAX", c.ThresholdMax)
	c.MaxOpacity = getEnvFloat("UMBRA_MAX_OPACITY", c.MaxOpacity)
	c.CheckInterval = getEnvFloat("UMBRA_CHECK_INTERVAL", c.CheckInterval)
	c.EasingFactor = getEnvFloat("UMBRA_EASING_FACTOR", c.EasingFactor)
	c.Strength = getEnvFloat("UMBRA_STRENGTH", c.Strength)
	c.Monitors = getEnvIntList("UMBRA_MONITORS", c.Monitors)
	c.OverlayCommand = getEnv("UMBRA_OVERLAY_COMMAND", c.OverlayCommand)
	c.ChangeDetect = getEnvBool("UMBRA_CHANGE_DETECT", c.ChangeDetect)
	c.StatusInterval = getEnvFloat("UMBRA_STATUS_INTERVAL", c.StatusInterval)
	c.SampleInterval = getEnvFloat("UMBRA_SAMPLE_INTERVAL", c.SampleInterval)
	c.HistoryPoints = getEnvInt("UMBRA_HISTORY_POINTS", c.HistoryPoints)
	c.CSVPath = getEnv("UMBRA_CSV_PATH", c.CSVPath)
	c.DBPath = getEnv("UMBRA_DB_PATH", c.DBPath)
}

// Validate checks loop invariants once at startup. Violations are fatal.
func (c *Config) Validate() error {
	if c.ThresholdStart < 0 {
		return errors.Newf(errors.CodeConfigInvalid, "threshold_start %.1f must be >= 0", c.ThresholdStart)
	}
	if c.ThresholdMax <= c.ThresholdStart {
		return errors.Newf(errors.CodeConfigInvalid, "threshold_max %.1f must be > threshold_start %.1f", c.ThresholdMax, c.ThresholdStart)
	}
	if c.MaxOpacity < 0 || c.MaxOpacity > 255 {
		return errors.Newf(errors.CodeConfigInvalid, "max_opacity %.1f must be in [0,255]", c.MaxOpacity)
	}
	if c.CheckInterval <= 0 {
		return errors.Newf(errors.CodeConfigInvalid, "check_interval %.3f must be > 0", c.CheckInterval)
	}
	if c.EasingFactor <= 0 || c.EasingFactor > 1 {
		return errors.Newf(errors.CodeConfigInvalid, "easing_factor %.3f must be in (0,1]", c.EasingFactor)
	}
	if c.Strength < 0 || c.Strength > 1 {
		return errors.Newf(errors.CodeConfigInvalid, "strength %.2f must be in [0,1]", c.Strength)
	}
	if c.StatusInterval <= 0 || c.SampleInterval <= 0 {
		return errors.New(errors.CodeConfigInvalid, "status_interval and sample_interval must be > 0")
	}
	if c.HistoryPoints <= 0 {
		return errors.Newf(errors.CodeConfigInvalid, "history_points %d must be > 0", c.HistoryPoints)
	}
	return nil
}

// TickInterval returns CheckInterval as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.CheckInterval * float64(time.Second))
}

// StatusEvery returns StatusInterval as a duration.
func (c *Config) StatusEvery() time.Duration {
	return time.Duration(c.StatusInterval * float64(time.Second))
}

// SampleEvery returns SampleInterval as a duration.
func (c *Config) SampleEvery() time.Duration {
	return time.Duration(c.SampleInterval * float64(time.Second))
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvIntList(key string, def []int) []int {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]int, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				if i, err := strconv.Atoi(t); err == nil {
					result = append(result, i)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return def
}
