// Copyright 2018-2023 CERN
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
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package config loads the gateway configuration file with viper and decodes
// the per-component sections with mapstructure, the same two-step load the
// rest of the driver/auth/pubsub implementations expect their raw
// map[string]interface{} options in.
package config

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level gateway configuration.
type Config struct {
	Network string `mapstructure:"network"`
	Address string `mapstructure:"address"`

	MaxUploadSize int64 `mapstructure:"max_upload_size"`
	WorkerPoolSize int  `mapstructure:"worker_pool_size"`
	DefaultQuota   int64 `mapstructure:"default_quota"`

	Store   Driver `mapstructure:"store"`
	Cache   Driver `mapstructure:"cache"`
	Pubsub  Driver `mapstructure:"pubsub"`
	Auth    Driver `mapstructure:"auth"`

	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// Driver is a name plus an opaque options bag, decoded again by whichever
// concrete implementation is selected from a registry.
type Driver struct {
	Driver  string                 `mapstructure:"driver"`
	Options map[string]interface{} `mapstructure:"options"`
}

// DatabaseConfig configures the Postgres usage ledger connection.
type DatabaseConfig struct {
	DSN            string `mapstructure:"dsn"`
	MaxOpenConns   int    `mapstructure:"max_open_conns"`
	MaxIdleConns   int    `mapstructure:"max_idle_conns"`
}

// LogConfig configures the zerolog output.
type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("network", "tcp")
	v.SetDefault("address", "0.0.0.0:9000")
	v.SetDefault("max_upload_size", int64(2*1024*1024*1024))
	v.SetDefault("worker_pool_size", 10)
	v.SetDefault("default_quota", int64(2*1024*1024*8))
	v.SetDefault("store.driver", "local")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("pubsub.driver", "memory")
	v.SetDefault("auth.driver", "dev")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.address", "0.0.0.0:9001")
}

// Load reads the configuration file at path (if non-empty), overlays
// environment variables prefixed BLOCKSERVER_, and decodes the result into a
// Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("blockserver")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = false
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, errors.Wrap(err, "error decoding config")
	}
	return cfg, nil
}
