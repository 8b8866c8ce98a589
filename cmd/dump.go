package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/S1riyS/vifs/internal/afs"
	"github.com/S1riyS/vifs/internal/app"
	"github.com/S1riyS/vifs/internal/cache"
)

type descriptorView struct {
	Magic         string `json:"magic" yaml:"magic"`
	Version       uint8  `json:"version" yaml:"version"`
	Size          uint64 `json:"size" yaml:"size"`
	BlockSize     uint32 `json:"block_size" yaml:"block_size"`
	BlockCount    uint32 `json:"block_count" yaml:"block_count"`
	RootDirectory uint32 `json:"root_directory" yaml:"root_directory"`
	NextFree      uint32 `json:"next_free" yaml:"next_free"`
}

type recordView struct {
	ID            uint32 `json:"id" yaml:"id"`
	Type          string `json:"type" yaml:"type"`
	Name          string `json:"name" yaml:"name"`
	FileSize      uint32 `json:"file_size" yaml:"file_size"`
	StartingBlock uint32 `json:"starting_block" yaml:"starting_block"`
	NumBlocks     uint32 `json:"num_blocks" yaml:"num_blocks"`
}

type dumpView struct {
	Descriptor    descriptorView `json:"descriptor" yaml:"descriptor"`
	Records       []recordView   `json:"records" yaml:"records"`
	RootDirectory []uint32       `json:"root_directory" yaml:"root_directory"`
	Cache         cache.Stats    `json:"cache" yaml:"cache"`
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the descriptor, used metadata records, root directory and cache counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			view, err := collectDump(a.AFS)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := printStructured(out, view); done {
				return err
			}

			return printDump(out, view)
		})
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func collectDump(e *afs.Engine) (dumpView, error) {
	d, err := e.Descriptor()
	if err != nil {
		return dumpView{}, err
	}

	records, err := e.Records(afs.InUse)
	if err != nil {
		return dumpView{}, err
	}

	root, err := e.RootDirectory()
	if err != nil {
		return dumpView{}, err
	}

	stats, err := e.CacheStats()
	if err != nil {
		return dumpView{}, err
	}

	view := dumpView{
		Descriptor: descriptorView{
			Magic:         string(d.Magic[:]),
			Version:       d.Version,
			Size:          d.Size,
			BlockSize:     d.BlockSize,
			BlockCount:    d.BlockCount,
			RootDirectory: d.RootDirectory,
			NextFree:      d.NextFree,
		},
		RootDirectory: append([]uint32{}, root.Children()...),
		Cache:         stats,
	}
	for _, r := range records {
		view.Records = append(view.Records, recordView{
			ID:            r.ID,
			Type:          r.Type.String(),
			Name:          r.NameString(),
			FileSize:      r.FileSize,
			StartingBlock: r.StartingBlock,
			NumBlocks:     r.NumBlocks,
		})
	}

	return view, nil
}

func printDump(w io.Writer, v dumpView) error {
	tw := newTable(w)

	d := v.Descriptor
	fmt.Fprintln(tw, "DESCRIPTOR")
	fmt.Fprintf(tw, "magic\t%q\n", d.Magic)
	fmt.Fprintf(tw, "version\t%d\n", d.Version)
	fmt.Fprintf(tw, "size\t%d\n", d.Size)
	fmt.Fprintf(tw, "block_size\t%d\n", d.BlockSize)
	fmt.Fprintf(tw, "block_count\t%d\n", d.BlockCount)
	fmt.Fprintf(tw, "root_directory\t%d\n", d.RootDirectory)
	fmt.Fprintf(tw, "next_free\t%d\n", d.NextFree)

	fmt.Fprintln(tw, "\nRECORDS")
	fmt.Fprintln(tw, "ID\tTYPE\tNAME\tSIZE\tSTART\tBLOCKS")
	for _, r := range v.Records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\n", r.ID, r.Type, r.Name, r.FileSize, r.StartingBlock, r.NumBlocks)
	}

	fmt.Fprintf(tw, "\nROOT DIRECTORY\t%v\n", v.RootDirectory)

	s := v.Cache
	fmt.Fprintln(tw, "\nCACHE")
	fmt.Fprintf(tw, "hits/misses\t%d/%d\n", s.Hits, s.Misses)
	fmt.Fprintf(tw, "reads ok/fail\t%d/%d\n", s.ReadSuccess, s.ReadFail)
	fmt.Fprintf(tw, "writes ok/fail\t%d/%d\n", s.WriteSuccess, s.WriteFail)
	fmt.Fprintf(tw, "writes old/new\t%d/%d\n", s.WriteOld, s.WriteNew)
	fmt.Fprintf(tw, "bytes in/out\t%d/%d\n", s.BytesIn, s.BytesOut)
	fmt.Fprintf(tw, "entries\t%d (%d dirty, %d bytes)\n", s.Entries, s.DirtyEntries, s.CachedBytes)

	return tw.Flush()
}
