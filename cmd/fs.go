package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/S1riyS/vifs/internal/app"
	"github.com/S1riyS/vifs/internal/vfs"
)

type listing struct {
	Name string      `json:"name" yaml:"name"`
	ID   vfs.InodeID `json:"id" yaml:"id"`
	Kind string      `json:"kind" yaml:"kind"`
	FS   string      `json:"fs" yaml:"fs"`
	Size uint64      `json:"size" yaml:"size"`
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			dir, err := a.VFS.Lookup(ctx, path)
			if err != nil {
				return err
			}

			entries, err := a.VFS.List(ctx, dir.ID)
			if err != nil {
				return err
			}

			rows := make([]listing, 0, len(entries))
			for _, e := range entries {
				inode, err := a.VFS.LookupInode(e.ID)
				if err != nil {
					return err
				}
				st, err := a.VFS.Stat(ctx, e.ID)
				if err != nil {
					return err
				}
				rows = append(rows, listing{
					Name: e.Name,
					ID:   e.ID,
					Kind: inode.Kind.String(),
					FS:   inode.FS.String(),
					Size: st.Size,
				})
			}

			out := cmd.OutOrStdout()
			if done, err := printStructured(out, rows); done {
				return err
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "NAME\tINODE\tKIND\tFS\tSIZE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\n", r.Name, r.ID, r.Kind, r.FS, r.Size)
			}
			return tw.Flush()
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory (non-recursive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			dir, name := vfs.Split(args[0])
			_, err := a.VFS.Mkdir(ctx, dir, name)
			return err
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Write a file to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			data, err := app.ReadFile(ctx, a.VFS, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		})
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <host-file> <path>",
	Short: "Copy a host file into the volume",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return app.CopyFile(ctx, a.VFS, hostFs, args[0], args[1])
		})
	},
}

var cpdirCmd = &cobra.Command{
	Use:   "cpdir <host-dir> <path>",
	Short: "Recursively copy a host directory into a directory of the volume",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return app.CopyDir(ctx, a.VFS, hostFs, args[0], args[1])
		})
	},
}

type statInfo struct {
	Path       string      `json:"path" yaml:"path"`
	ID         vfs.InodeID `json:"id" yaml:"id"`
	Kind       string      `json:"kind" yaml:"kind"`
	FS         string      `json:"fs" yaml:"fs"`
	MountPoint bool        `json:"mount_point" yaml:"mount_point"`
	Size       uint64      `json:"size" yaml:"size"`
	Block      *uint32     `json:"block,omitempty" yaml:"block,omitempty"`
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show inode details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			inode, err := a.VFS.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			st, err := a.VFS.Stat(ctx, inode.ID)
			if err != nil {
				return err
			}

			info := statInfo{
				Path:       vfs.Clean(args[0]),
				ID:         inode.ID,
				Kind:       inode.Kind.String(),
				FS:         inode.FS.String(),
				MountPoint: inode.MountPoint,
				Size:       st.Size,
			}
			if inode.FS == vfs.FSAFS {
				if block, err := a.AFS.Block(inode.ID); err == nil {
					info.Block = &block
				}
			}

			out := cmd.OutOrStdout()
			if done, err := printStructured(out, info); done {
				return err
			}

			tw := newTable(out)
			fmt.Fprintf(tw, "Path:\t%s\n", info.Path)
			fmt.Fprintf(tw, "Inode:\t%d\n", info.ID)
			fmt.Fprintf(tw, "Kind:\t%s\n", info.Kind)
			fmt.Fprintf(tw, "FS:\t%s\n", info.FS)
			fmt.Fprintf(tw, "Mount point:\t%t\n", info.MountPoint)
			fmt.Fprintf(tw, "Size:\t%d\n", info.Size)
			if info.Block != nil {
				fmt.Fprintf(tw, "Block:\t%d\n", *info.Block)
			}
			return tw.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(lsCmd, mkdirCmd, catCmd, cpCmd, cpdirCmd, statCmd)
}
