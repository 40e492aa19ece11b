// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/biogo/gembase/config"
	"github.com/biogo/gembase/logger"
	"github.com/biogo/gembase/pipeline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the state shared by the commands of a run.
type app struct {
	v    *viper.Viper
	keys map[*cobra.Command]map[string]string
	cfg  config.Config
	run  string

	log   *zap.Logger
	queue *logger.Queue
	file  *os.File
}

// newRoot returns the root command and a function closing the log of the
// command run.
func newRoot() (*cobra.Command, func() error) {
	a := &app{v: viper.New(), keys: make(map[*cobra.Command]map[string]string)}
	config.SetDefaults(a.v, time.Now())

	var cfgFile string
	root := &cobra.Command{
		Use:           "gembase",
		Short:         "Build a pangenome from bacterial draft genome assemblies",
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, cfgFile)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML configuration file")
	flags.StringP("out", "o", "", "output directory")
	flags.IntP("threads", "p", 1, "number of threads")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.BoolP("quiet", "q", false, "do not show progress bars")
	for _, name := range []string{"out", "threads", "log-level", "quiet"} {
		a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(a.qcCmd(), a.annotateCmd(), a.pangenomeCmd())
	return root, a.close
}

func (a *app) setup(cmd *cobra.Command, cfgFile string) error {
	a.bind(cmd)
	boot := logger.New(zapcore.WarnLevel, os.Stderr)
	err := config.Load(a.v, cfgFile, boot)
	if err != nil {
		return err
	}
	a.cfg, err = config.New(a.v)
	if err != nil {
		return err
	}
	if a.cfg.Out == "" {
		return fmt.Errorf("no output directory given (--out)")
	}
	err = os.MkdirAll(a.cfg.Out, 0o755)
	if err != nil {
		return err
	}
	var level zapcore.Level
	err = level.UnmarshalText([]byte(a.cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.cfg.LogLevel, err)
	}

	a.run = uuid.NewString()
	a.file, err = os.Create(filepath.Join(a.cfg.Out, fmt.Sprintf("gembase-%s-%s.log", cmd.Name(), time.Now().Format("2006-01-02_15-04-05"))))
	if err != nil {
		return err
	}
	a.queue = logger.NewQueue(io.MultiWriter(os.Stderr, a.file), 1024)
	a.log = logger.New(level, a.queue).Named(cmd.Name()).With(zap.String("run", a.run))
	a.log.Info("starting", zap.Strings("args", os.Args[1:]))
	return nil
}

func (a *app) close() error {
	if a.queue == nil {
		return nil
	}
	a.log.Sync()
	a.queue.Close()
	return a.file.Close()
}

// pool returns a worker pool with the given number of workers.
func (a *app) pool(workers int) *pipeline.Pool {
	p := &pipeline.Pool{Threads: workers, Log: a.log}
	if !a.cfg.Quiet {
		p.Progress = os.Stderr
	}
	return p
}

// listName returns the base name of a list file without extension.
func listName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// interruptible returns a context cancelled by an interrupt.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// flagKeys registers the viper keys of the named flags of cmd. Keys
// default to the flag names. Only the flags of the command being run are
// bound so that commands may share keys.
func (a *app) flagKeys(cmd *cobra.Command, keys map[string]string) {
	a.keys[cmd] = keys
}

func (a *app) bind(cmd *cobra.Command) {
	for name, key := range a.keys[cmd] {
		if key == "" {
			key = name
		}
		a.v.BindPFlag(key, cmd.Flags().Lookup(name))
	}
}

func writeTo(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = fn(f)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	return err
}
