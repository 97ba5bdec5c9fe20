package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/proof_viewer/pkg/config"
	"github.com/Dicklesworthstone/proof_viewer/pkg/export"
	"github.com/Dicklesworthstone/proof_viewer/pkg/logging"
	"github.com/Dicklesworthstone/proof_viewer/pkg/proof"
	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
	"github.com/Dicklesworthstone/proof_viewer/pkg/ui"
	"github.com/Dicklesworthstone/proof_viewer/pkg/workset"
)

// skipsConfig reports whether cmd or one of its parents runs without config
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfig] == "true" {
			return true
		}
	}
	return false
}

func newVersionCmd(a *app) *cobra.Command {
	var backend bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the pv version and, with --backend, the backend's",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pv %s (API %d)\n", version, workset.APIVersion)
			if !backend {
				return nil
			}
			v, err := a.backend().Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "backend %s: %s API %d-%d\n", a.cfg.Server, v.Application, v.MinVersion, v.MaxVersion)
			if !v.Supports(workset.Application, workset.APIVersion) {
				return fmt.Errorf("%w: pv needs %s API %d", workset.ErrVersionMismatch, workset.Application, workset.APIVersion)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&backend, "backend", false, "also query the backend")
	return cmd
}

func newContextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Describe the workset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.source(cmd.Context())
			if err != nil {
				return err
			}
			c, err := src.Context(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.Describe())
			return nil
		},
	}
}

func newStatementCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "statement LABEL",
		Short: "Show an assertion's hypotheses, thesis and distinct variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.source(cmd.Context())
			if err != nil {
				return err
			}
			c, view, err := workset.LoadByLabel(cmd.Context(), src, args[0])
			if err != nil {
				return err
			}
			return writeStatement(cmd.OutOrStdout(), args[0], view, render.New(a.style(), c))
		},
	}
}

func writeStatement(w io.Writer, label string, view *workset.AssertionView, r *render.Renderer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", label, validity(view.Assertion.Valid))
	for i, s := range view.FloatHyps {
		fmt.Fprintf(tw, "f%d\t%s\n", i+1, r.FromCodes(s))
	}
	for i, s := range view.EssHyps {
		fmt.Fprintf(tw, "e%d\t%s\n", i+1, r.FromCodes(s))
	}
	fmt.Fprintf(tw, "thesis\t%s\n", r.FromCodes(view.Thesis))
	for _, d := range view.Assertion.Dists {
		fmt.Fprintf(tw, "dist\t%s\n", r.Dist(d))
	}
	return tw.Flush()
}

func validity(valid bool) string {
	if valid {
		return "valid"
	}
	return "INVALID"
}

func newRenderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render TOKENS...",
		Short: "Render a free-form sentence, flagging symbols the workset lacks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.source(cmd.Context())
			if err != nil {
				return err
			}
			c, err := src.Context(cmd.Context())
			if err != nil {
				return err
			}
			tokens := strings.Fields(strings.Join(args, " "))
			r := render.New(a.style(), c)
			fmt.Fprintln(cmd.OutOrStdout(), r.FromStrings(tokens))
			if undefined := r.Undefined(tokens); len(undefined) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "undefined symbols: %s\n", strings.Join(undefined, " "))
			}
			return nil
		},
	}
}

// Proof output formats
const (
	formatText     = "text"
	formatHTML     = "html"
	formatMarkdown = "markdown"
)

func newAssertionCmd(a *app) *cobra.Command {
	var (
		format  string
		copyOut bool
		out     string
	)
	cmd := &cobra.Command{
		Use:   "assertion LABEL",
		Short: "Render an assertion's proof",
		Long: `Render an assertion's proof as a numbered step table (text), a
standalone page (html) or a report (markdown). Markdown is typeset for the
terminal when stdout is one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.source(cmd.Context())
			if err != nil {
				return err
			}
			c, view, err := workset.LoadByLabel(cmd.Context(), src, args[0])
			if err != nil {
				return err
			}
			r := render.New(a.style(), c)

			var buf bytes.Buffer
			switch format {
			case formatText, formatHTML:
				root, _, err := proof.Render(view.ProofTree, r, a.proofOptions())
				if err != nil {
					return err
				}
				if format == formatText {
					err = proof.FormatText(&buf, root)
				} else {
					err = proof.FormatHTML(&buf, args[0], root, r)
				}
				if err != nil {
					return err
				}
			case formatMarkdown:
				rep, err := export.NewReport(args[0], view, r, a.proofOptions())
				if err != nil {
					return err
				}
				buf.WriteString(export.GenerateMarkdown(rep, r, time.Now()))
			default:
				return fmt.Errorf("unknown format %q (want text, html or markdown)", format)
			}

			if copyOut {
				if err := clipboard.WriteAll(buf.String()); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "copied to clipboard")
			}
			if out != "" {
				return os.WriteFile(out, buf.Bytes(), 0o644)
			}
			if format == formatMarkdown {
				if width, ok := terminalWidth(cmd.OutOrStdout()); ok {
					return writeMarkdown(cmd.OutOrStdout(), buf.String(), width)
				}
			}
			_, err = buf.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, html or markdown")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "also copy the output to the clipboard")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

// terminalWidth returns the width of w when it is a terminal
func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80, true
	}
	return width, true
}

func writeMarkdown(w io.Writer, md string, width int) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return err
	}
	rendered, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func newStepsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "steps LABEL",
		Short: "Print the editable step list of a proof as HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Doc.Render(cmd.OutOrStdout())
		},
	}
}

func (a *app) session(ctx context.Context, label string) (*ui.Session, error) {
	src, err := a.source(ctx)
	if err != nil {
		return nil, err
	}
	return ui.OpenSession(ctx, src, label, a.sessionOptions())
}

func (a *app) sessionOptions() ui.SessionOptions {
	return ui.SessionOptions{
		Style: render.Text,
		Proof: a.proofOptions(),
		Log:   a.log("editor"),
	}
}

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit LABEL",
		Short: "Edit a proof's step list in the terminal",
		Long: `Open the proof's step list in an interactive editor. Steps can be
folded, detailed, added and removed. With --file, the editor reloads whenever
the dump changes on disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The editor owns the terminal, so logs go to a file.
			if a.cfg.Log.File == "" {
				logger, closer, err := logging.OpenFile(a.cfg.Log.Level, a.cfg.StatePath("pv.log"))
				if err != nil {
					return err
				}
				a.logger = logger
				a.closers = append(a.closers, closer)
			}
			s, err := a.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			opts := ui.ModelOptions{
				Theme:     ui.DefaultTheme(nil),
				StatePath: ui.EditorStatePath(a.cfg.StateDir),
				Log:       a.log("ui"),
				Session:   a.sessionOptions(),
			}
			return ui.Run(s, opts, a.cfg.File)
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var (
		output string
		serve  string
	)
	cmd := &cobra.Command{
		Use:   "export LABEL",
		Short: "Write a markdown report, or serve a live HTML preview",
		Long: `Write a markdown report of the assertion to --output. With --serve,
serve the proof as HTML on the given address instead; the page reloads in the
browser whenever the dump named by --file changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := args[0]
			if serve != "" {
				if a.cfg.File == "" {
					return errors.New("--serve needs an offline dump (--file)")
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				fmt.Fprintf(cmd.OutOrStdout(), "serving %s on http://%s\n", label, serve)
				return export.ServePreview(ctx, serve, a.cfg.File, label, export.PreviewOptions{
					Style: a.style(),
					Proof: a.proofOptions(),
				}, a.log("preview"))
			}

			src, err := a.source(cmd.Context())
			if err != nil {
				return err
			}
			c, view, err := workset.LoadByLabel(cmd.Context(), src, label)
			if err != nil {
				return err
			}
			r := render.New(a.style(), c)
			rep, err := export.NewReport(label, view, r, a.proofOptions())
			if err != nil {
				return err
			}
			if output == "" {
				output = label + ".md"
			}
			if err := export.SaveMarkdownToFile(rep, r, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d steps)\n", output, rep.Steps)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "report file (default LABEL.md)")
	cmd.Flags().StringVar(&serve, "serve", "", "serve a live preview on this address, e.g. localhost:8080")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "snapshot LABEL...",
		Short: "Save assertions to an offline dump",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.source(cmd.Context())
			if err != nil {
				return err
			}
			c, err := src.Context(cmd.Context())
			if err != nil {
				return err
			}
			index := c.LabelIndex()
			toks := make([]int, 0, len(args))
			for _, label := range args {
				tok, ok := index[label]
				if !ok {
					return fmt.Errorf("label %q: %w", label, workset.ErrNotFound)
				}
				toks = append(toks, tok)
			}
			d, err := workset.Snapshot(cmd.Context(), src, toks)
			if err != nil {
				return err
			}
			if output == "" {
				output = c.Name + config.DumpSuffix
			}
			if err := workset.WriteDump(output, d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d assertions)\n", output, len(d.Assertions))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "dump file (default NAME"+config.DumpSuffix+")")
	return cmd
}

func newDumpsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dumps",
		Short: "List offline dumps found on the configured scan paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dumps := config.DiscoverDumps(*a.cfg)
			if len(dumps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no dumps found")
				return nil
			}
			for _, d := range dumps {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}

func newWorksetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worksets",
		Short: "Manage backend worksets",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the backend's worksets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c := a.backend()
				if err := c.CheckVersion(cmd.Context()); err != nil {
					return err
				}
				list, err := c.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME")
				for _, w := range list {
					fmt.Fprintf(tw, "%d\t%s\n", w.ID, w.Name)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "create",
			Short: "Create a workset",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c := a.backend()
				if err := c.CheckVersion(cmd.Context()); err != nil {
					return err
				}
				w, err := c.Create(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created workset %d\n", w.ID())
				return nil
			},
		},
		&cobra.Command{
			Use:   "load ID",
			Short: "Load the library into a workset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid workset id %q", args[0])
				}
				c := a.backend()
				if err := c.CheckVersion(cmd.Context()); err != nil {
					return err
				}
				w, err := c.Open(cmd.Context(), id)
				if err != nil {
					return err
				}
				loaded, err := w.Load(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), loaded.Describe())
				return nil
			},
		},
	)
	return cmd
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the lookup cache of the selected workset",
	}
	open := func(cmd *cobra.Command) (*workset.Cache, error) {
		a.noCache = false
		a.cfg.Cache.Enabled = true
		src, err := a.source(cmd.Context())
		if err != nil {
			return nil, err
		}
		c, ok := src.(*workset.Cache)
		if !ok {
			return nil, errors.New("the cache only fronts backend worksets")
		}
		return c, nil
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Count cached entries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := open(cmd)
				if err != nil {
					return err
				}
				n, err := c.Len(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries (%s)\n", c.Scope(), n, a.cfg.Cache.Path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "purge",
			Short: "Drop the cached entries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := open(cmd)
				if err != nil {
					return err
				}
				if err := c.Purge(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", c.Scope())
				return nil
			},
		},
	)
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage pv configuration",
		Annotations: map[string]string{skipConfig: "true"},
	}
	var (
		user  bool
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file to .pv/config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(config.ProjectDir, config.FileName)
			if root, ok := config.DetectProjectRoot(); ok {
				path = filepath.Join(root, config.ProjectDir, config.FileName)
			}
			if user {
				path = config.UserConfigPath()
			}
			if a.cfgFile != "" {
				path = a.cfgFile
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&user, "user", false, "write ~/.config/pv/config.yaml instead")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
