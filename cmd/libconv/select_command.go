package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"libconv/internal/config"
	"libconv/internal/convert"
	"libconv/internal/filter"
	"libconv/internal/ledger"
	"libconv/internal/services"
)

type selectRow struct {
	ID                int64  `json:"id"`
	Path              string `json:"filePath"`
	Size              int64  `json:"fileSize"`
	VideoCodec        string `json:"videoCodecName"`
	AudioCodec        string `json:"audioCodecName"`
	Resolution        string `json:"resolution"`
	Duration          string `json:"formattedDuration"`
	Kbps              int64  `json:"kbps"`
	Converted         bool   `json:"converted"`
	OriginalBackup    string `json:"originalFileBackup,omitempty"`
	PreConversionSize int64  `json:"originalFileSize,omitempty"`
}

func newSelectCommand(ctx *commandContext) *cobra.Command {
	var trailers string
	var jsonOut bool
	var noFloor bool

	cmd := &cobra.Command{
		Use:   "select [filter]",
		Short: "Show the files a filter selects without touching them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			expr, err := parseFilter(args)
			if err != nil {
				return err
			}
			expr, err = withTrailerMode(expr, trailers, cfg)
			if err != nil {
				return err
			}
			store, err := openLedger(cfg)
			if err != nil {
				return err
			}
			opts := ledger.SelectOptions{MinFileSize: cfg.Selection.MinFileSize}
			if noFloor {
				opts.MinFileSize = 0
			}
			records := store.Filter(expr, opts)

			rows := make([]selectRow, 0, len(records))
			var total int64
			for _, rec := range records {
				total += rec.Size
				rows = append(rows, selectRow{
					ID:                rec.ID,
					Path:              rec.Path,
					Size:              rec.Size,
					VideoCodec:        rec.VideoCodec,
					AudioCodec:        rec.AudioCodec,
					Resolution:        fmt.Sprintf("%dx%d", rec.Width, rec.Height),
					Duration:          rec.FormattedDuration,
					Kbps:              rec.Kbps,
					Converted:         rec.Converted(),
					OriginalBackup:    rec.BackupPath,
					PreConversionSize: rec.PreConversionSize,
				})
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), rows)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Query: %s\n", ledger.Predicate(expr, opts))
			if len(rows) == 0 {
				fmt.Fprintln(out, "No files match")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				table = append(table, []string{
					strconv.FormatInt(row.ID, 10),
					row.Path,
					convert.FormatBytes(row.Size),
					row.VideoCodec,
					row.AudioCodec,
					row.Resolution,
					row.Duration,
					strconv.FormatInt(row.Kbps, 10),
					yesNo(row.Converted),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]column{
					numCol("ID"), col("Path"), numCol("Size"), col("Video"), col("Audio"),
					col("Resolution"), col("Duration"), numCol("Kbps"), col("Converted"),
				},
				table,
			))
			fmt.Fprintf(out, "%d files, %s bytes\n", len(rows), convert.FormatBytes(total))
			return nil
		},
	}

	cmd.Flags().StringVar(&trailers, "trailers", "include", "Trailer handling: include, exclude, or only")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noFloor, "all-sizes", false, "Do not add the selection.min_file_size floor")
	return cmd
}

// withTrailerMode narrows expr by whether the path carries the trailer marker.
func withTrailerMode(expr filter.Expr, mode string, cfg *config.Config) (filter.Expr, error) {
	isTrailer := filter.Instr{
		Field:  ledger.ColumnPath,
		Needle: cfg.Policy.TrailerMarker,
		Op:     filter.OpGt,
		Num:    0,
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "include":
		return expr, nil
	case "exclude":
		return filter.AndAll(expr, filter.Not{X: isTrailer}), nil
	case "only":
		return filter.AndAll(expr, isTrailer), nil
	default:
		return nil, services.Wrap(services.ErrValidation, "select", "trailers", fmt.Sprintf("unknown mode %q (want include, exclude, or only)", mode), nil)
	}
}
