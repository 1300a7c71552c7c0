package main

import (
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-dbsnp/internal/query"
)

func newSampleCmd(a *app) *cobra.Command {
	var (
		count int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw random variants",
		Long: `Draw variant ids uniformly at random, with replacement, and print the
variants they name. Repeated draws are printed once.`,
		Example: `  dbsnp sample -n 100
  dbsnp sample -n 10 --seed 42 -f json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			var opts []query.Option
			if cmd.Flags().Changed("seed") {
				opts = append(opts, query.WithRand(rand.New(rand.NewPCG(seed, seed))))
			}
			vs, err := a.newEngine(h, opts...).SampleRandom(cmd.Context(), count)
			if err != nil {
				return err
			}
			return a.writeVariants(vs)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of draws")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed for reproducible samples")
	return cmd
}
