package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-dbsnp/internal/ingest"
)

func newBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <file.bed>...",
		Short: "Load dbSNP BED files into an initialized database",
		Long: `Load tab-separated dbSNP BED rows (chrom, start, end, name, score, strand)
into the database. Plain, gzip and zstd files are accepted; use '-' for stdin.

Each batch is committed on its own. A malformed line stops the build and
leaves earlier batches in place.`,
		Example: `  dbsnp build --dir ~/.dbsnp snp150.bed.gz
  zcat snp150.bed.gz | dbsnp build --dir ~/.dbsnp -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer h.Close()

			opts := []ingest.Option{
				ingest.WithBatchSize(viper.GetInt("ingest.batch_size")),
				ingest.WithLogger(a.logger),
			}
			for _, path := range args {
				res, err := ingest.File(ctx, h, path, opts...)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s: %d rows in %d batches (%d lines skipped)\n",
					path, res.Rows, res.Batches, res.Skipped)
			}
			fmt.Fprintln(a.stdout, h.Describe(ctx))
			return nil
		},
	}
	cmd.Flags().Int("batch-size", ingest.DefaultBatchSize, "Rows per transaction")
	bindFlag("ingest.batch_size", cmd.Flags().Lookup("batch-size"))
	return cmd
}
