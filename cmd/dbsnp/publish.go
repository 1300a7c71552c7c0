package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-dbsnp/internal/remote"
	"github.com/inodb/vibe-dbsnp/internal/store"
)

func newPublishCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <location>",
		Short: "Upload a populated database to S3, MinIO or a shared directory",
		Example: `  dbsnp publish --dir ~/.dbsnp s3://my-bucket/dbsnp
  dbsnp publish --dir ~/.dbsnp minio://minio.local:9000/genomics/dbsnp
  dbsnp --dir s3://my-bucket/dbsnp lookup ids rs564732507`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := remote.Parse(args[0])
			if err != nil {
				return fmt.Errorf("%w: %v", store.ErrConfiguration, err)
			}
			m, err := remote.New(ctx, u, remoteConfig())
			if err != nil {
				return err
			}

			h, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer h.Close()

			key, err := h.Publish(ctx, m, u)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Published %s to %s (%s)\n", h.Path(), u, key)
			return nil
		},
	}
}
