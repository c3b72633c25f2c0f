// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/xcross/xcross/internal/config"
	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/lifecycle"
	"github.com/xcross/xcross/internal/target"
	"github.com/xcross/xcross/internal/toolchain"
)

type (
	// App wires the CLI to its collaborators. Every command handler receives
	// an App and reaches the engine, the toolchain and the configuration
	// through it, so tests can substitute each one.
	App struct {
		Config         config.Provider
		ProbeEngine    EngineProber
		ProbeToolchain ToolchainProber
		Guard          *lifecycle.ChildContainer
		LookupEnv      func(string) (string, bool)
		Getwd          func() (string, error)

		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer

		flags globalFlags
	}

	// Dependencies are the injection points of NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config         config.Provider
		ProbeEngine    EngineProber
		ProbeToolchain ToolchainProber
		Guard          *lifecycle.ChildContainer
		LookupEnv      func(string) (string, bool)
		Getwd          func() (string, error)
		Stdin          io.Reader
		Stdout         io.Writer
		Stderr         io.Writer
	}

	// EngineProber locates the container engine.
	EngineProber func(ctx context.Context, opts container.ProbeOptions) (*container.Engine, error)

	// ToolchainProber locates the host toolchain.
	ToolchainProber func(ctx context.Context, opts toolchain.ProbeOptions) (*toolchain.Toolchain, error)

	globalFlags struct {
		verbose    bool
		quiet      bool
		configPath string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.ProbeEngine == nil {
		deps.ProbeEngine = func(ctx context.Context, opts container.ProbeOptions) (*container.Engine, error) {
			return container.ProbeEngine(ctx, opts)
		}
	}
	if deps.ProbeToolchain == nil {
		deps.ProbeToolchain = toolchain.Probe
	}
	if deps.Guard == nil {
		deps.Guard = lifecycle.Default
	}
	if deps.LookupEnv == nil {
		deps.LookupEnv = os.LookupEnv
	}
	if deps.Getwd == nil {
		deps.Getwd = os.Getwd
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}

	return &App{
		Config:         deps.Config,
		ProbeEngine:    deps.ProbeEngine,
		ProbeToolchain: deps.ProbeToolchain,
		Guard:          deps.Guard,
		LookupEnv:      deps.LookupEnv,
		Getwd:          deps.Getwd,
		stdin:          deps.Stdin,
		stdout:         deps.Stdout,
		stderr:         deps.Stderr,
	}
}

// engine loads the configuration of the current directory and probes the
// engine it selects. Commands that do not build use it.
func (a *App) engine(ctx context.Context) (*container.Engine, *config.Config, error) {
	cwd, err := a.Getwd()
	if err != nil {
		return nil, nil, err
	}
	root := cwd
	if ws, err := findWorkspace(cwd); err == nil {
		root = ws
	}
	cfg, err := a.loadConfig(ctx, root, "")
	if err != nil {
		return nil, nil, err
	}
	engine, err := a.ProbeEngine(ctx, probeOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

func (a *App) loadConfig(ctx context.Context, root string, t target.Triple) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		WorkspaceRoot:  root,
		Target:         t,
		LookupEnv:      a.LookupEnv,
	})
}

func probeOptions(cfg *config.Config) container.ProbeOptions {
	return container.ProbeOptions{
		Explicit:    cfg.Container.Engine,
		Remote:      cfg.Container.Remote,
		InContainer: cfg.Container.InContainer,
	}
}
