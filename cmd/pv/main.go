// Command pv browses the proofs of a loaded workset: it renders statements
// and proofs, edits proof step lists in the terminal and exports reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Dicklesworthstone/proof_viewer/pkg/config"
	"github.com/Dicklesworthstone/proof_viewer/pkg/logging"
	"github.com/Dicklesworthstone/proof_viewer/pkg/proof"
	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
	"github.com/Dicklesworthstone/proof_viewer/pkg/workset"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	a := newApp()
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries what every command needs once the config is loaded
type app struct {
	v       *viper.Viper
	cfgFile string
	noCache bool

	cfg    *config.Config
	logger *logrus.Logger

	client  *workset.Client
	closers []io.Closer
}

func newApp() *app {
	return &app{v: config.New()}
}

// skipConfig marks commands that must run without a valid config
const skipConfig = "skip-config"

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pv",
		Short: "Browse and edit the proofs of a workset",
		Long: `pv reads a workset from the proof backend (or from an offline dump)
and renders statements and proofs as text, HTML, LaTeX or markdown. The edit
command opens the proof's step list in an interactive editor.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsConfig(cmd) {
				return nil
			}
			return a.setup(cmd)
		},
	}
	root.SetVersionTemplate(`{{printf "pv version %s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (replaces ~/.config/pv and .pv/config.yaml)")
	flags.String("server", "", "proof backend address")
	flags.Int("workset", 0, "backend workset id")
	flags.StringP("file", "f", "", "offline workset dump instead of the backend")
	flags.String("style", "", "rendering style: text, html, althtml or latex")
	flags.Bool("include-non-essentials", false, "show non-essential proof steps")
	flags.Int("max-depth", 0, "deepest proof tree to render")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-file", "", "append logs to this file")
	flags.BoolVar(&a.noCache, "no-cache", false, "bypass the local lookup cache")

	for key, flag := range map[string]string{
		"server":                 "server",
		"workset":                "workset",
		"file":                   "file",
		"style":                  "style",
		"include_non_essentials": "include-non-essentials",
		"max_depth":              "max-depth",
		"log.level":              "log-level",
		"log.file":               "log-file",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newVersionCmd(a),
		newContextCmd(a),
		newStatementCmd(a),
		newRenderCmd(a),
		newAssertionCmd(a),
		newStepsCmd(a),
		newEditCmd(a),
		newExportCmd(a),
		newSnapshotCmd(a),
		newDumpsCmd(a),
		newWorksetsCmd(a),
		newCacheCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the config and builds the logger
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, config.LoadOptions{ConfigFile: a.cfgFile})
	if err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.Log.File != "" {
		logger, closer, err := logging.OpenFile(cfg.Log.Level, cfg.Log.File)
		if err != nil {
			return err
		}
		a.logger = logger
		a.closers = append(a.closers, closer)
		return nil
	}
	logger, err := logging.New(cfg.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

func (a *app) log(subsystem string) *logrus.Entry {
	if a.logger == nil {
		return logging.For(logging.Discard(), subsystem)
	}
	return logging.For(a.logger, subsystem)
}

func (a *app) backend() *workset.Client {
	if a.client == nil {
		a.client = workset.NewClient(a.cfg.Server, workset.WithLogger(a.log("client")))
	}
	return a.client
}

// source opens the configured workset: the offline dump when one is set,
// otherwise the backend workset behind the lookup cache.
func (a *app) source(ctx context.Context) (workset.Source, error) {
	if a.cfg.File != "" {
		return workset.OpenFile(a.cfg.File)
	}
	if a.cfg.Workset == 0 {
		return nil, errors.New("no workset selected: pass --workset or --file (see pv worksets list)")
	}
	c := a.backend()
	if err := c.CheckVersion(ctx); err != nil {
		return nil, err
	}
	ws, err := c.Open(ctx, a.cfg.Workset)
	if err != nil {
		return nil, err
	}
	if a.noCache || !a.cfg.Cache.Enabled {
		return ws, nil
	}
	scope := fmt.Sprintf("%s#%d/%s", c.BaseURL(), ws.ID(), ws.Name())
	cache, err := workset.OpenCache(a.cfg.Cache.Path, ws, scope, a.log("cache"))
	if err != nil {
		a.log("cache").WithError(err).Warn("cache unavailable, reading from the backend")
		return ws, nil
	}
	a.closers = append(a.closers, cache)
	return cache, nil
}

func (a *app) proofOptions() proof.Options {
	return proof.Options{
		IncludeNonEssentials: a.cfg.IncludeNonEssentials,
		MaxDepth:             a.cfg.MaxDepth,
	}
}

func (a *app) style() render.Style {
	return a.cfg.RenderStyle()
}
