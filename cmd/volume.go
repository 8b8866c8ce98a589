package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/S1riyS/vifs/internal/app"
	"github.com/S1riyS/vifs/internal/disk"
)

var (
	newFormat      bool
	bootstrapLevel int
)

var newCmd = &cobra.Command{
	Use:   "new <size>",
	Short: "Create an empty image file",
	Long: `Create a zero-filled image of the given size. Sizes take an optional
K, M or G suffix.

Examples:
  vifs new 200M
  vifs new 1048576 --image test.img --format`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := parseSize(args[0])
		if err != nil {
			return err
		}
		cfg.Volume.Size = size

		if newFormat {
			layout, err := app.Format(cmd.Context(), cfg, hostFs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created and formatted %s: %d blocks of %d bytes\n",
				cfg.Volume.Image, layout.BlockCount, layout.BlockSize)
			return nil
		}

		img, err := disk.Create(hostFs, cfg.Volume.Image, size)
		if err != nil {
			return err
		}
		if err := img.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%d bytes)\n", cfg.Volume.Image, size)
		return nil
	},
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Format an existing image",
	Long: `Write an empty AFS layout over the whole image. Level 1 also creates
a small sample tree.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		layout, err := app.Bootstrap(cmd.Context(), cfg, hostFs)
		if err != nil {
			return err
		}

		if bootstrapLevel > 0 {
			err := withApp(cmd, func(ctx context.Context, a *app.App) error {
				return app.Seed(ctx, a.VFS)
			})
			if err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "AFS bootstrapping done: %d blocks, root directory at block %d\n",
			layout.BlockCount, layout.RootDirectory)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(bootstrapCmd)

	newCmd.Flags().BoolVar(&newFormat, "format", false, "also format the new image")
	bootstrapCmd.Flags().IntVarP(&bootstrapLevel, "level", "l", 0, "0 = empty volume, 1 = sample data")
}

func parseSize(s string) (int64, error) {
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
	case strings.HasSuffix(s, "G"):
		mult = 1 << 30
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	return n * mult, nil
}
