// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the run settings unmarshalled from viper. Settings
// come from command line flags, GEMBASE_ environment variables, a .env
// file and an optional YAML configuration file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/biogo/gembase/genome"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ErrInvalid is returned for settings that cannot be used.
var ErrInvalid = errors.New("config: invalid setting")

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "GEMBASE"

// QCConfig holds the genome quality settings.
type QCConfig struct {
	// minimum stretch of N at which contigs are cut, 0 to keep them whole
	CutN int `mapstructure:"cutn"`

	MaxContigs int `mapstructure:"max-contigs"`
	MaxL90     int `mapstructure:"max-l90"`

	// bounds of the mash distance to the reference genomes
	MinDist float64 `mapstructure:"min-dist"`
	MaxDist float64 `mapstructure:"max-dist"`

	// skip the mash distance filter
	NoMash bool `mapstructure:"no-mash"`
}

// ClusterConfig holds the protein clustering settings.
type ClusterConfig struct {
	Identity float64 `mapstructure:"identity"`
	Coverage float64 `mapstructure:"coverage"`
	Linclust bool    `mapstructure:"linclust"`
}

// Config is the root-level settings struct.
type Config struct {
	// list file of the genomes to process
	List string `mapstructure:"list"`
	// directory holding the genome files named in the list
	DBPath string `mapstructure:"db"`
	// output directory
	Out string `mapstructure:"out"`
	// directory for split genomes, defaults to <out>/tmp_files
	TmpDir string `mapstructure:"tmp"`
	// SQLite database receiving the pangenome, none if empty
	SQLite string `mapstructure:"sqlite"`
	// gembase directory clustered by the pangenome command, defaults to out
	Gembase string `mapstructure:"gembase"`
	// dataset name used in pangenome file names
	Name string `mapstructure:"name"`
	// names reports describing the gembase genomes, default
	// <out>/LSTINFO-*.lst
	Names []string `mapstructure:"names"`

	Species string `mapstructure:"species"`
	Date    string `mapstructure:"date"`
	Threads int    `mapstructure:"threads"`

	LogLevel string `mapstructure:"log-level"`
	Quiet    bool   `mapstructure:"quiet"`

	QC      QCConfig      `mapstructure:"qc"`
	Cluster ClusterConfig `mapstructure:"cluster"`
}

// SetDefaults sets the default values of v. The default date is the month
// and year of now.
func SetDefaults(v *viper.Viper, now time.Time) {
	v.SetDefault("species", "ESCO")
	v.SetDefault("date", now.Format("0106"))
	v.SetDefault("threads", 1)
	v.SetDefault("log-level", "info")
	v.SetDefault("qc.cutn", 5)
	v.SetDefault("qc.max-contigs", genome.DefaultThresholds.MaxContigs)
	v.SetDefault("qc.max-l90", genome.DefaultThresholds.MaxL90)
	v.SetDefault("qc.min-dist", 1e-4)
	v.SetDefault("qc.max-dist", 0.06)
	v.SetDefault("cluster.identity", 0.8)
	v.SetDefault("cluster.coverage", 0.8)
}

// Load prepares v to read the environment, the .env file of the working
// directory and the YAML file at path if path is not empty.
func Load(v *viper.Viper, path string, log *zap.Logger) error {
	err := godotenv.Load()
	if err != nil {
		log.Warn("no .env found, using local environment")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	err = v.ReadInConfig()
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	return nil
}

// New returns the Config held by v.
func New(v *viper.Viper) (Config, error) {
	var c Config
	err := v.Unmarshal(&c)
	if err != nil {
		return c, fmt.Errorf("config: unable to decode settings: %w", err)
	}
	return c, c.Validate()
}

// Validate checks the settings that do not depend on the file system.
func (c Config) Validate() error {
	switch {
	case !genome.ValidCode(c.Species):
		return fmt.Errorf("%w: species %q is not 4 alphanumeric characters", ErrInvalid, c.Species)
	case !genome.ValidCode(c.Date):
		return fmt.Errorf("%w: date %q is not 4 alphanumeric characters", ErrInvalid, c.Date)
	case c.Threads < 1:
		return fmt.Errorf("%w: %d threads", ErrInvalid, c.Threads)
	case c.QC.CutN < 0:
		return fmt.Errorf("%w: negative cutn %d", ErrInvalid, c.QC.CutN)
	case c.QC.MinDist > c.QC.MaxDist:
		return fmt.Errorf("%w: min-dist %v above max-dist %v", ErrInvalid, c.QC.MinDist, c.QC.MaxDist)
	case c.Cluster.Identity <= 0 || c.Cluster.Identity > 1:
		return fmt.Errorf("%w: identity %v not in (0, 1]", ErrInvalid, c.Cluster.Identity)
	case c.Cluster.Coverage <= 0 || c.Cluster.Coverage > 1:
		return fmt.Errorf("%w: coverage %v not in (0, 1]", ErrInvalid, c.Cluster.Coverage)
	}
	return nil
}

// Thresholds returns the quality thresholds of c.
func (c Config) Thresholds() genome.Thresholds {
	return genome.Thresholds{MaxContigs: c.QC.MaxContigs, MaxL90: c.QC.MaxL90}
}
