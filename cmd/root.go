package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/S1riyS/vifs/internal/app"
	"github.com/S1riyS/vifs/internal/config"
	"github.com/S1riyS/vifs/pkg/logging"
)

var (
	configPath   string
	imagePath    string
	verbose      bool
	outputFormat string

	// hostFs is where images and copy sources live.
	hostFs afero.Fs = afero.NewOsFs()
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vifs",
	Short: "Virtual filesystem with an AFS block volume",
	Long: `vifs mounts an AFS image at / and an in-memory tree at /proc, and
lets you inspect and fill the image from the command line or over HTTP.

Examples:
  # Create and format a 1 MiB image
  vifs new 1M && vifs bootstrap

  # Copy a host directory in and list it
  vifs cpdir ./site /
  vifs ls /`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&imagePath, "image", "", "AFS image file, overrides volume.image")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
}

// setup loads config and puts the logger into the command context.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = loaded

	if imagePath != "" {
		cfg.Volume.Image = imagePath
	}
	if verbose {
		cfg.App.LogLevel = "debug"
	}

	logger := logging.New(cfg.App.LogLevel, cfg.App.LogFormat, os.Stderr)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.MakeContextWithLogger(ctx, logger))

	return nil
}

// loadConfig reads the config file when there is one and falls back to
// env and defaults when the default file is absent.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		return config.Load(path)
	}

	loaded, err := config.Load(config.DefaultPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return loaded, err
}

// withApp mounts the volume (and the database tree when enabled), runs fn
// and unmounts, syncing the volume. The in-memory tree is left out so that
// one-shot commands do not create volume.proc_path on the image.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	c := *cfg
	c.Volume.ProcPath = ""

	return runApp(cmd, &c, fn)
}

// withProcApp is withApp with the in-memory tree mounted at volume.proc_path.
func withProcApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	return runApp(cmd, cfg, fn)
}

func runApp(cmd *cobra.Command, c *config.Config, fn func(ctx context.Context, a *app.App) error) (err error) {
	ctx := cmd.Context()

	a, err := app.New(ctx, c, hostFs)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(ctx); err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, a)
}
