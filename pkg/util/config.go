// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type PipelineOptions struct {
	Partitions  int    `toml:"partitions"`
	PageSize    int    `toml:"pageSize"`
	Compression string `toml:"compression"`
	QueueDepth  int    `toml:"queueDepth"`
}

type SourceOptions struct {
	Path   string `toml:"path"`
	Format string `toml:"format"`
	// Parallel is the parquet reader parallelism.
	Parallel int `toml:"parallel"`
}

type DebugOptions struct {
	CheckOwner  bool `toml:"checkOwner"`
	PrintResult bool `toml:"printResult"`
	ShowRaw     bool `toml:"showRaw"`
}

type LogOptions struct {
	Level string `toml:"level"`
}

type Config struct {
	Pipeline PipelineOptions `toml:"pipeline"`
	Source   SourceOptions   `toml:"source"`
	Debug    DebugOptions    `toml:"debug"`
	Log      LogOptions      `toml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineOptions{
			Partitions:  4,
			PageSize:    DefaultVectorSize,
			Compression: "zstd",
			QueueDepth:  4,
		},
		Source: SourceOptions{
			Format:   "parquet",
			Parallel: 1,
		},
		Log: LogOptions{
			Level: "info",
		},
	}
}

// LoadConfig decodes a toml file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.Pipeline.Partitions <= 0 {
		return fmt.Errorf("pipeline.partitions must be positive, got %d", cfg.Pipeline.Partitions)
	}
	if cfg.Pipeline.PageSize <= 0 {
		return fmt.Errorf("pipeline.pageSize must be positive, got %d", cfg.Pipeline.PageSize)
	}
	if cfg.Pipeline.QueueDepth < 0 {
		return fmt.Errorf("pipeline.queueDepth must not be negative, got %d", cfg.Pipeline.QueueDepth)
	}
	switch cfg.Pipeline.Compression {
	case "zstd", "none":
	default:
		return fmt.Errorf("unknown pipeline.compression %q", cfg.Pipeline.Compression)
	}
	if cfg.Source.Format != "parquet" {
		return fmt.Errorf("unsupported source.format %q", cfg.Source.Format)
	}
	return nil
}
