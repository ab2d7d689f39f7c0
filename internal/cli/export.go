package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ServerEye/internal/config"
	"github.com/SmitUplenchwar2687/ServerEye/internal/export"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		filter   filterOptions
		dir      string
		gzip     bool
		name     string
		timeout  time.Duration
		bucket   string
		prefix   string
		region   string
		endpoint string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the filtered events to a file or S3",
		Long: `Fetch the current events, apply the filter and write them as an
export document. The file is named after the export date unless --name is
given. With an S3 bucket configured the document is uploaded instead of
written to disk.`,
		Example: `  servereye export --out ./exports
  servereye export --type block_break --gzip
  servereye export --s3-bucket my-bucket --s3-prefix servereye/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			ec := &a.cfg.Export
			if flags.Changed("out") {
				ec.Dir = dir
			}
			if flags.Changed("gzip") {
				ec.Gzip = gzip
			}
			if flags.Changed("s3-bucket") {
				ec.S3.Bucket = bucket
			}
			if flags.Changed("s3-prefix") {
				ec.S3.Prefix = prefix
			}
			if flags.Changed("s3-region") {
				ec.S3.Region = region
			}
			if flags.Changed("s3-endpoint") {
				ec.S3.Endpoint = endpoint
			}

			api, err := a.newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			sink, err := exportSink(ctx, *ec)
			if err != nil {
				return err
			}

			records, err := api.Events(ctx)
			if err != nil {
				return err
			}
			f := filter.filter()
			view := f.Apply(pipeline.Ingest(records))

			now := time.Now()
			data, contentType, err := export.Bytes(export.New(view, f, now), ec.Gzip)
			if err != nil {
				return err
			}
			if name == "" {
				name = export.FileName(now, ec.Gzip)
			}
			where, err := sink.Put(ctx, name, data, contentType)
			if err != nil {
				return err
			}

			zlog.Debug().Str("dest", where).Int("events", len(view)).Msg("export written")
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s events (%s) to %s\n",
				humanize.Comma(int64(len(view))), humanize.Bytes(uint64(len(data))), where)
			return nil
		},
	}

	filter.addFlags(cmd)
	cmd.Flags().StringVar(&dir, "out", ".", "directory to write the export into")
	cmd.Flags().BoolVar(&gzip, "gzip", false, "gzip the export document")
	cmd.Flags().StringVar(&name, "name", "", "file or object name (default servereye-events-YYYY-MM-DD.json)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall timeout")
	cmd.Flags().StringVar(&bucket, "s3-bucket", "", "upload to this S3 bucket instead of a local file")
	cmd.Flags().StringVar(&prefix, "s3-prefix", "", "S3 key prefix")
	cmd.Flags().StringVar(&region, "s3-region", "", "S3 region (default from the AWS environment)")
	cmd.Flags().StringVar(&endpoint, "s3-endpoint", "", "S3-compatible endpoint URL, e.g. a local MinIO")

	return cmd
}

func exportSink(ctx context.Context, ec config.ExportConfig) (export.Sink, error) {
	if ec.S3.Bucket == "" {
		return export.DirSink{Dir: ec.Dir}, nil
	}
	s3, err := export.NewS3Sink(ctx, export.S3Config{
		Bucket:   ec.S3.Bucket,
		Prefix:   ec.S3.Prefix,
		Region:   ec.S3.Region,
		Endpoint: ec.S3.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("creating S3 sink: %w", err)
	}
	return s3, nil
}
