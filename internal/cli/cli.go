/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli implements the storyboard command line: the HTTP editor service plus a few
// offline commands operating on the stored state.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"gostoryboard/internal/app"
	"gostoryboard/internal/config"
	"gostoryboard/internal/export"
	"gostoryboard/internal/generation"
	applog "gostoryboard/internal/log"
	"gostoryboard/internal/storage"
	"gostoryboard/internal/telemetry"
	"gostoryboard/internal/version"
)

// CLI holds state shared by all commands.
type CLI struct {
	out io.Writer
	cfg config.AppConfig
	log *slog.Logger

	verbose bool
	backend string
	dataDir string

	// newGateway is swapped in tests.
	newGateway func(ctx context.Context, cfg config.GenerationConfig) (generation.Gateway, error)
}

func New(out io.Writer) *CLI {
	return &CLI{out: out, newGateway: geminiGateway, log: applog.L()}
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "storyboard",
		Short:         "Storyboard editor with AI panel generation",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
	}
	root.SetOut(c.out)
	pf := root.PersistentFlags()
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&c.backend, "backend", "", "storage backend: file, sqlite, postgres, redis or memory")
	pf.StringVar(&c.dataDir, "data-dir", "", "directory for the file and sqlite backends")

	root.AddCommand(
		c.serveCommand(),
		c.showCommand(),
		c.resetCommand(),
		c.exportCommand(),
		c.generateCommand(),
		c.configCommand(),
		c.versionCommand(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and initializes logging.
func (c *CLI) setup() error {
	cfg, err := config.Load()
	if err != nil {
		// a broken file still yields usable defaults
		applog.WithComponent("cli").Warn("config load problem", slog.Any("err", err))
	}
	if c.backend != "" {
		cfg.Storage.Backend = strings.ToLower(c.backend)
	}
	if c.dataDir != "" {
		cfg.Storage.Dir = c.dataDir
	}
	if c.verbose {
		cfg.Logging.Level = "debug"
	}
	c.cfg = cfg
	c.log = applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	}).With(slog.String("component", "cli"))
	return nil
}

func geminiGateway(ctx context.Context, cfg config.GenerationConfig) (generation.Gateway, error) {
	key, err := config.APIKey()
	if err != nil {
		return nil, fmt.Errorf("read API key: %w", err)
	}
	return generation.NewGeminiGateway(ctx, generation.GeminiOptions{
		APIKey:            key,
		Model:             cfg.Model,
		ImageSize:         cfg.ImageSize,
		StylePrompt:       cfg.StylePrompt,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})
}

// openSession opens the configured store and wraps it in a session. A gateway that cannot
// be built leaves the session offline rather than failing the command.
func (c *CLI) openSession(ctx context.Context, withGateway bool) (*app.Session, storage.LoadReport, func(), error) {
	slot, err := storage.OpenSlot(ctx, c.cfg.Storage)
	if err != nil {
		return nil, storage.LoadReport{}, nil, fmt.Errorf("open %s storage: %w", c.cfg.Storage.Backend, err)
	}
	store := storage.NewStore(slot, storage.WithKey(c.cfg.Storage.Key), storage.WithTimeout(c.cfg.Storage.Timeout()))

	var gw generation.Gateway
	if withGateway {
		if gw, err = c.newGateway(ctx, c.cfg.Generation); err != nil {
			c.log.Warn("generation offline", slog.Any("err", err))
			gw = nil
		}
	}
	format, err := export.ParseFormat(c.cfg.Export.Format)
	if err != nil {
		format = export.FormatPNG
	}
	tele := telemetry.New(telemetry.FromEnv().WithOptIn(c.cfg.General.TelemetryOptIn))
	telemetry.SetDefault(tele)

	connect := func(ctx context.Context) (generation.Gateway, error) {
		return c.newGateway(ctx, c.cfg.Generation)
	}
	sess, rep := app.Open(ctx, app.Options{
		Store:        store,
		Gateway:      gw,
		Connect:      connect,
		Exporter:     export.New(export.WithScale(c.cfg.Export.Scale), export.WithMargin(c.cfg.Export.Margin)),
		ExportDir:    c.cfg.Export.Dir,
		ExportFormat: format,
		Telemetry:    tele,
	})
	closeFn := func() {
		tele.Flush(context.Background())
		tele.Close()
		if err := store.Close(); err != nil {
			c.log.Warn("closing store failed", slog.Any("err", err))
		}
	}
	return sess, rep, closeFn, nil
}
