package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-dbsnp/internal/output"
	"github.com/inodb/vibe-dbsnp/internal/store"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the database location, state and metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer h.Close()

			state, err := h.State(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Database: %s\n", h.Describe(ctx))
			fmt.Fprintf(a.stdout, "Path:     %s\n", h.Path())
			if h.Remote() {
				fmt.Fprintf(a.stdout, "Cache:    %s\n", h.LocalPath())
			}
			fmt.Fprintf(a.stdout, "Engine:   %s\n", h.Engine())
			fmt.Fprintf(a.stdout, "State:    %s\n", state)

			if state == store.Unbound {
				return nil
			}
			md, err := h.Metadata(ctx)
			if err != nil {
				return err
			}
			if len(md) > 0 {
				fmt.Fprintln(a.stdout, "Metadata:")
				return output.WriteMetadata(a.stdout, md)
			}
			return nil
		},
	}
}
