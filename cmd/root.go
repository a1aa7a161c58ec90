// Copyright 2026 Google LLC
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

package cmd

import (
	"fmt"

	"github.com/dmvfs/dmvfs/cfg"
	"github.com/dmvfs/dmvfs/internal/util"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Set with -ldflags "-X github.com/dmvfs/dmvfs/cmd.version=..." at build time.
var version = "unknown"

type mountFn func(c *cfg.Config, mountPoint string) error

// NewRootCmd accepts the mountFn that it executes with the parsed
// configuration and the resolved mount point.
func NewRootCmd(m mountFn) (*cobra.Command, error) {
	var (
		configObj cfg.Config
		cfgFile   string
	)
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "dmvfs [flags] mount_point",
		Short: "Mount the dynamic management views of SQL Server instances as files",
		Long: `dmvfs exposes the system views of every configured SQL Server as a
directory of files. Files are fetched from the server each time they are
opened; everything else in the mount behaves like a regular directory.`,
		Version:      version,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(v, cfgFile, &configObj); err != nil {
				return err
			}
			mountPoint, err := util.GetResolvedPath(args[0])
			if err != nil {
				return fmt.Errorf("canonicalizing mount point: %w", err)
			}
			return m(&configObj, mountPoint)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "The path to the yaml config file. Flags given on the command line take precedence.")
	if err := cfg.BindFlags(v, rootCmd.PersistentFlags()); err != nil {
		return nil, fmt.Errorf("error while binding flags: %w", err)
	}
	return rootCmd, nil
}

// resolveConfig merges the config file into v, decodes it into c and brings c
// into a valid, rationalized state.
func resolveConfig(v *viper.Viper, cfgFile string, c *cfg.Config) error {
	if cfgFile != "" {
		path, err := util.GetResolvedPath(cfgFile)
		if err != nil {
			return fmt.Errorf("error while resolving config-file path: %w", err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err = v.ReadInConfig(); err != nil {
			return fmt.Errorf("error while reading the config file: %w", err)
		}
	}

	err := v.Unmarshal(c, viper.DecodeHook(cfg.DecodeHook()), func(decoderConfig *mapstructure.DecoderConfig) {
		decoderConfig.TagName = "yaml"
	})
	if err != nil {
		return fmt.Errorf("error while unmarshaling the config: %w", err)
	}

	if err = cfg.Rationalize(v, c); err != nil {
		return fmt.Errorf("error while rationalizing the config: %w", err)
	}

	if err = cfg.ValidateConfig(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Execute runs the root command with the real mount function.
func Execute() error {
	rootCmd, err := NewRootCmd(Mount)
	if err != nil {
		return err
	}
	return rootCmd.Execute()
}
