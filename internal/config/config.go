// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Watch   WatchConfig   `yaml:"watch"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path                string   `yaml:"path"`
	StaleTimeoutSeconds uint64   `yaml:"stale_timeout_seconds"`
	KillTimeoutSeconds  uint64   `yaml:"kill_timeout_seconds"`
	LogLines            int      `yaml:"log_lines"`
	AllowInput          []string `yaml:"allow_input"`
	BlockInput          []string `yaml:"block_input"`
}

// StaleTimeout returns the configured stale timeout; zero disables the watchdog.
func (c FFmpegConfig) StaleTimeout() time.Duration {
	return time.Duration(c.StaleTimeoutSeconds) * time.Second
}

// KillTimeout returns how long a stop waits before killing ffmpeg.
func (c FFmpegConfig) KillTimeout() time.Duration {
	return time.Duration(c.KillTimeoutSeconds) * time.Second
}

// WatchConfig 监视目录配置
type WatchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// HistoryConfig 转换记录配置
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: ":8080"},
		FFmpeg: FFmpegConfig{
			Path:               "ffmpeg",
			KillTimeoutSeconds: 5,
			LogLines:           100,
			AllowInput:         []string{`(?i)\.mkv$`},
		},
		History: HistoryConfig{Path: "mkv-convertor.db"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// 填充空值
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = ":8080"
	}
	if cfg.FFmpeg.Path == "" {
		cfg.FFmpeg.Path = "ffmpeg"
	}
	if cfg.FFmpeg.KillTimeoutSeconds == 0 {
		cfg.FFmpeg.KillTimeoutSeconds = 5
	}
	if cfg.FFmpeg.LogLines <= 0 {
		cfg.FFmpeg.LogLines = 100
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "mkv-convertor.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	return cfg, nil
}
