/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gostoryboard/internal/config"
	"gostoryboard/internal/crash"
	"gostoryboard/internal/document"
	"gostoryboard/internal/domain"
	"gostoryboard/internal/export"
	"gostoryboard/internal/generation"
	"gostoryboard/internal/server"
	"gostoryboard/internal/storage"
	"gostoryboard/internal/version"
)

func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the editor HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, rep, closeFn, err := c.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeFn()
			defer crash.Recover(c.cfg.General.CrashDir, sess)
			if rep.Source == storage.SourceDefault && rep.Reason != "empty store" {
				fmt.Fprintf(c.out, "Stored data could not be restored (%s); starting fresh.\n", rep.Reason)
			}
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			fmt.Fprintf(c.out, "Serving on http://%s (offline: %v)\n", addr, sess.Offline())
			return server.New(sess, server.Options{Addr: addr, AllowedOrigins: c.cfg.Server.AllowedOrigins}).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func (c *CLI) showCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, rep, closeFn, err := c.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()
			st := sess.Snapshot()
			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			fmt.Fprintf(c.out, "Source: %s", rep.Source)
			if rep.Reason != "" {
				fmt.Fprintf(c.out, " (%s)", rep.Reason)
			}
			fmt.Fprintln(c.out)
			for _, p := range st.Projects {
				marker := " "
				if p.ID == st.ActiveProjectID {
					marker = "*"
				}
				fmt.Fprintf(c.out, "%s %s  [%d characters]\n", marker, p.Name, len(p.Characters))
				for _, iss := range p.Issues {
					fmt.Fprintf(c.out, "    %s\n", iss.Title)
					for _, pg := range iss.Pages {
						active := ""
						if pg.ID == p.ActivePageID {
							active = "  <- active"
						}
						fmt.Fprintf(c.out, "      Page %d: %d panels%s\n", pg.Number, len(pg.Panels), active)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw state as JSON")
	return cmd
}

func (c *CLI) resetCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Purge all stored data and start from a fresh project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset deletes every project; rerun with --yes to confirm")
			}
			sess, _, closeFn, err := c.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := sess.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "All data purged.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the purge")
	return cmd
}

// selectPageByNumber makes page n of the active issue active.
func selectPageByNumber(st domain.State, n int) (domain.State, error) {
	iss, ok := document.ActiveIssue(st)
	if !ok {
		return st, document.ErrNotFound
	}
	for _, pg := range iss.Pages {
		if pg.Number == n {
			return document.SelectPage(st, iss.ID, pg.ID)
		}
	}
	return st, fmt.Errorf("page %d: %w", n, document.ErrNotFound)
}

func (c *CLI) exportCommand() *cobra.Command {
	var (
		format string
		outDir string
		page   int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the active page as PNG or PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outDir != "" {
				c.cfg.Export.Dir = outDir
			}
			var f export.Format
			if format != "" {
				var err error
				if f, err = export.ParseFormat(format); err != nil {
					return err
				}
			}
			sess, _, closeFn, err := c.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()
			if page > 0 {
				if err := sess.Commit(cmd.Context(), func(st domain.State) (domain.State, error) {
					return selectPageByNumber(st, page)
				}); err != nil {
					return err
				}
			}
			res, err := sess.Export(cmd.Context(), f)
			if err != nil {
				var ee *export.ExportError
				if errors.As(err, &ee) && ee.Hint != "" {
					return fmt.Errorf("%w\n%s", err, ee.Hint)
				}
				return err
			}
			fmt.Fprintf(c.out, "Wrote %s (%dx%d)\n", res.Path, res.Width, res.Height)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "png or pdf (default from config)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().IntVar(&page, "page", 0, "page number in the active issue (default: active page)")
	return cmd
}

func (c *CLI) generateCommand() *cobra.Command {
	var (
		layout     string
		characters []string
	)
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a panel on the active page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, closeFn, err := c.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeFn()
			if _, err := sess.SetLayout(strings.ToUpper(layout)); err != nil {
				return fmt.Errorf("%w %q (choose WIDE, STD or CLOSE)", err, layout)
			}
			p, _ := document.ActiveProject(sess.Snapshot())
			for _, name := range characters {
				found := false
				for _, ch := range p.Characters {
					if strings.EqualFold(ch.Name, name) {
						sess.ToggleCharacter(ch.ID)
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("no character named %q in %s", name, p.Name)
				}
			}
			pn, err := sess.Generate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				if k := generation.Classify(err); k != generation.KindNone && k != generation.KindOther {
					return errors.New(generation.Message(err))
				}
				return err
			}
			fmt.Fprintf(c.out, "Added panel %s (%s, %d characters)\n", pn.ID, pn.AspectRatio, len(pn.CharactersInvolved))
			return nil
		},
	}
	cmd.Flags().StringVarP(&layout, "layout", "l", "WIDE", "framing preset: WIDE, STD or CLOSE")
	cmd.Flags().StringSliceVarP(&characters, "character", "c", nil, "character names to include")
	return cmd
}

func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect the configuration and API key"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(*cobra.Command, []string) error {
			b, err := yaml.Marshal(c.cfg)
			if err != nil {
				return err
			}
			_, err = c.out.Write(b)
			for _, k := range config.Keys() {
				if env, ok := config.EnvOverrideFor(k); ok {
					fmt.Fprintf(c.out, "# %s overridden by %s\n", k, env)
				}
			}
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(*cobra.Command, []string) error {
			p, err := config.ConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, p)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		RunE: func(*cobra.Command, []string) error {
			if err := config.Save(c.cfg); err != nil {
				return err
			}
			p, _ := config.ConfigPath()
			fmt.Fprintln(c.out, "Wrote", p)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-key [key]",
		Short: "Store the Gemini API key in the OS keychain (reads stdin without an argument; empty removes it)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				key = line
			}
			if err := config.SaveAPIKey(key); err != nil {
				return fmt.Errorf("store API key: %w", err)
			}
			if strings.TrimSpace(key) == "" {
				fmt.Fprintln(c.out, "API key removed.")
			} else {
				fmt.Fprintln(c.out, "API key stored.")
			}
			return nil
		},
	})
	return cmd
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(c.out, "storyboard", version.String())
		},
	}
}
