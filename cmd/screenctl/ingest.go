package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mind-engage/emoscreen/internal/ingest"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

type sourceFlags struct {
	file    string
	csvDir  string
	blobKey string
}

func (f *sourceFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "workbook .xlsx file")
	cmd.Flags().StringVar(&f.csvDir, "csv-dir", "", "directory of <sheet>.csv files")
	cmd.Flags().StringVar(&f.blobKey, "blob-key", "", "workbook key in the blob store")
	cmd.MarkFlagsMutuallyExclusive("file", "csv-dir", "blob-key")
	cmd.MarkFlagsOneRequired("file", "csv-dir", "blob-key")
}

func (f *sourceFlags) open(ctx context.Context, a *app) (workbook.Source, error) {
	switch {
	case f.file != "":
		return workbook.XLSXFile(f.file), nil
	case f.csvDir != "":
		return workbook.CSVDirSource{Dir: f.csvDir}, nil
	case f.blobKey != "":
		rc, err := a.blobs.Get(ctx, f.blobKey)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", f.blobKey, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, rc); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", f.blobKey, err)
		}
		return workbook.XLSXBytes(buf.Bytes()), nil
	}
	return nil, errors.New("one of --file, --csv-dir or --blob-key is required")
}

func newIngestCmd(a *app) *cobra.Command {
	var (
		src    sourceFlags
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load, validate and persist a screening workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.openDB(ctx); err != nil {
				return err
			}
			source, err := src.open(ctx, a)
			if err != nil {
				return err
			}
			opts := []ingest.Option{
				ingest.WithLogger(a.log),
				ingest.WithCache(a.schemas),
				ingest.WithEvents(a.events),
				ingest.WithMetrics(a.metrics),
			}
			if a.cfg.ArchiveWorkbooks {
				opts = append(opts, ingest.WithArchive(a.blobs))
			}
			p := ingest.NewPipeline(a.db, opts...)

			var res *ingest.Result
			if dryRun {
				res, err = p.Check(ctx, source)
			} else {
				res, err = p.Run(ctx, source)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summarizeRun(res))
		},
	}
	src.bind(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only, write nothing")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var src sourceFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a workbook without a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			source, err := src.open(ctx, a)
			if err != nil {
				return err
			}
			res, err := ingest.NewPipeline(nil, ingest.WithLogger(a.log), ingest.WithMetrics(a.metrics)).Check(ctx, source)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summarizeRun(res))
		},
	}
	src.bind(cmd)
	return cmd
}

type runSummary struct {
	RunID      string           `json:"run_id"`
	DryRun     bool             `json:"dry_run"`
	Forms      []string         `json:"forms"`
	Tables     map[string][]int `json:"tables,omitempty"` // table -> [rows, repaired]
	Issues     []string         `json:"issues,omitempty"`
	Mismatches []string         `json:"mismatches,omitempty"`
	Archived   string           `json:"archived,omitempty"`
}

func summarizeRun(res *ingest.Result) runSummary {
	s := runSummary{RunID: res.RunID, DryRun: res.DryRun, Mismatches: res.Mismatches, Archived: res.Archived}
	if res.Registry != nil {
		s.Forms = res.Registry.FormCodes()
	}
	if len(res.Tables) > 0 {
		s.Tables = map[string][]int{}
		for _, t := range res.Tables {
			s.Tables[t.Table] = []int{t.Rows, t.Repaired}
		}
	}
	for _, is := range res.Issues {
		s.Issues = append(s.Issues, is.Error())
	}
	return s
}
