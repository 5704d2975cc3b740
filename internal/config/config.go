// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the collector service.
type Config struct {
	// Google Sheets record store
	SpreadsheetID   string
	CredentialsFile string

	// HTTP server
	Port int

	// Ingestion queue
	QueueSize int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Sheets struct {
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"sheets"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Queue struct {
		Size int `yaml:"size"`
	} `yaml:"queue"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables. The YAML file is optional — a deployment may
// configure everything through the environment alone.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")

	var raw rawConfig
	data, err := os.ReadFile(configPath)
	if err == nil {
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	cfg := &Config{
		SpreadsheetID:   firstNonEmpty(raw.Sheets.SpreadsheetID, os.Getenv("SPREADSHEET_ID")),
		CredentialsFile: firstNonEmpty(raw.Sheets.CredentialsFile, envOrDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json")),
		Port:            firstNonZero(raw.Server.Port, envOrDefaultInt("PORT", 3000)),
		QueueSize:       firstNonZero(raw.Queue.Size, envOrDefaultInt("QUEUE_SIZE", 64)),
	}

	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is required — set sheets.spreadsheet_id in %s or SPREADSHEET_ID", configPath)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
