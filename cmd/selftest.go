package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/S1riyS/vifs/internal/app"
	"github.com/S1riyS/vifs/internal/vfs"
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Mount the in-memory tree over the volume, fill it and list both",
	Long: `Mount the image at / and the in-memory backend at volume.proc_path,
create a few files in the in-memory tree, then list and print them together
with the volume root. The mount point directory is created on the image if
it is missing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		proc := cfg.Volume.ProcPath
		if proc == "" {
			return errors.New("volume.proc_path is empty")
		}

		return withProcApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := app.SeedProc(ctx, a.VFS, proc); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, dir := range []string{"/", proc, vfs.Join(proc, "build")} {
				if err := printTree(ctx, out, a.VFS, dir); err != nil {
					return err
				}
			}
			for _, file := range []string{vfs.Join(proc, "magic"), vfs.Join(proc, "build/number")} {
				data, err := app.ReadFile(ctx, a.VFS, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s\n", file, data)
			}

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(selftestCmd)
}

func printTree(ctx context.Context, out io.Writer, v *vfs.VFS, dir string) error {
	node, err := v.Lookup(ctx, dir)
	if err != nil {
		return err
	}

	entries, err := v.List(ctx, node.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s:\n", dir)
	for _, e := range entries {
		inode, err := v.LookupInode(e.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-12s %-9s %s\n", e.Name, inode.Kind, inode.FS)
	}

	return nil
}
