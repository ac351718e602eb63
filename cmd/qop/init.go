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
package main

import (
	"github.com/spf13/cobra"

	"github.com/cchexcode/qop/internal/clierr"
	"github.com/cchexcode/qop/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample qop.toml",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString("path")
		if err != nil {
			return clierr.Usagef("%s", err)
		}
		if err := config.WriteSample(path, initForce); err != nil {
			return err
		}
		cmd.PrintErrf("wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().StringP("path", "p", ".", "directory to write qop.toml into")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing qop.toml")
}
