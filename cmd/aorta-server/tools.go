package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/config"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/analysis"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/dicomdir"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/storage"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <appointment-id> <path>",
		Short: "Upload a local archive and attach it to an appointment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid appointment id %q", args[0])
			}
			src, err := sourceLocation(args[1])
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			a, err := openApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if create, _ := cmd.Flags().GetBool("create"); create {
				if err := a.appointments.Ensure(ctx, id); err != nil {
					return err
				}
			}

			res, err := a.ingest.AddFile(ctx, id, src)
			if res != nil {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "file %s stored at %s\n", res.FileHash, res.Index)
				for _, s := range res.Statuses {
					fmt.Fprintf(w, "  %s  %s\n", s.SeriesHash, s.Status)
				}
			}
			if errors.Is(err, analysis.ErrTriggerFailed) {
				logger.Warn().Err(err).Msg("archive stored but analysis was not started")
				return nil
			}
			return err
		},
	}
	cmd.Flags().Bool("create", false, "Create the appointment if it does not exist")
	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path>",
		Short: "Print the series of every archive below path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cubes, err := openCubes(context.Background(), args[0])
			if err != nil {
				return err
			}
			for _, c := range cubes {
				writeInspect(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func spacingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spacing <path>",
		Short: "Compute voxel spacing of every series below path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cubes, err := openCubes(ctx, args[0])
			if err != nil {
				return err
			}
			for _, c := range cubes {
				writeSpacing(cmd.OutOrStdout(), c, dicomdir.ComputeAllSpacing(ctx, c))
			}
			return nil
		},
	}
}

// sourceLocation maps a host path onto a storage location. Directories get
// a trailing "/".
func sourceLocation(path string) (storage.Location, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return storage.Location{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return storage.Location{}, err
	}
	loc := storage.Root(storage.NewOSBackend(filepath.Dir(abs))).Child(filepath.Base(abs))
	if info.IsDir() {
		loc = loc.AsDir()
	}
	return loc, nil
}

// openCubes opens the archive at path. A directory without an index of its
// own is searched for archives.
func openCubes(ctx context.Context, path string) ([]*dicomdir.Cube, error) {
	loc, err := sourceLocation(path)
	if err != nil {
		return nil, err
	}
	cube, err := dicomdir.Open(ctx, loc)
	if err == nil {
		return []*dicomdir.Cube{cube}, nil
	}
	if !loc.IsDir() {
		return nil, err
	}
	cubes, ferr := dicomdir.Find(ctx, loc, zerolog.New(os.Stderr))
	if ferr != nil {
		return nil, ferr
	}
	if len(cubes) == 0 {
		return nil, err
	}
	return cubes, nil
}

func writeInspect(w io.Writer, c *dicomdir.Cube) {
	fmt.Fprintf(w, "archive %s (%s)\n", c.Hash(), c.Index)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIES\tSLICES\tNAME")
	for _, s := range c.Series() {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Hash(), len(s.Slices), s.FullName())
	}
	tw.Flush()

	mapping := c.NameMapping()
	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	slices.Sort(names)
	fmt.Fprintln(w, "legacy names:")
	for _, name := range names {
		fmt.Fprintf(w, "  %q -> %s\n", name, mapping[name])
	}

	hashes := c.HashMapping()
	olds := make([]hashid.ID, 0, len(hashes))
	for old := range hashes {
		olds = append(olds, old)
	}
	slices.Sort(olds)
	fmt.Fprintln(w, "legacy hashes:")
	for _, old := range olds {
		fmt.Fprintf(w, "  %s -> %s\n", old, hashes[old])
	}
}

func writeSpacing(w io.Writer, c *dicomdir.Cube, results map[hashid.ID]dicomdir.SpacingResult) {
	fmt.Fprintf(w, "archive %s\n", c.Hash())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range c.Series() {
		r, ok := results[s.Hash()]
		switch {
		case !ok:
			continue
		case r.Err != nil:
			fmt.Fprintf(tw, "%s\terror: %v\n", s.Hash(), r.Err)
		default:
			fmt.Fprintf(tw, "%s\t%g\t%g\t%g\n", s.Hash(), r.Spacing.X, r.Spacing.Y, r.Spacing.Z)
		}
	}
	tw.Flush()
}
