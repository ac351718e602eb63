// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// FileName is the canonical qop config file name living alongside the
// migrations directory.
const FileName = "qop.toml"

// Load reads qop.toml from the given directory (the `-p <path>` root) and
// decodes it into a validated Config. A fresh viper instance is used per
// load so repeated Dispatcher invocations (tests, `apply up` followed by
// `apply down` in the same process) never see stale state from a prior
// load.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no %s found in %s: %w", FileName, root, err)
		}
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Sample returns the default qop.toml contents written by `qop init`.
func Sample() string {
	return `version = ">=1.0.0,<2.0.0"

[subsystem.postgres]
connection = { from_env = "QOP_DATABASE_URL" }
schema       = "public"
table_prefix = "__qop"
timeout      = 30
`
}

// WriteSample writes a sample qop.toml to <path>/qop.toml, refusing to
// overwrite an existing file unless force is set.
func WriteSample(path string, force bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	target := filepath.Join(path, FileName)
	if !force {
		if _, err := os.Stat(target); err == nil {
			return fmt.Errorf("%s already exists; pass --force to overwrite", target)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat %s: %w", target, err)
		}
	}

	if err := os.WriteFile(target, []byte(Sample()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}
