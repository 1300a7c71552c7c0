package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty database, deleting any existing one",
		Long: `Create the dbSNP tables and indexes for the configured version.
An existing database file for that version is deleted first.`,
		Example: `  dbsnp init --dir ~/.dbsnp --db-version 150
  dbsnp init --dir sqlite:///data/dbsnp --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer h.Close()

			confirmed := yes
			if !confirmed {
				confirmed, err = a.confirm(fmt.Sprintf("Initialize %s? Any existing data will be deleted. [y/N] ", h.Path()))
				if err != nil {
					return err
				}
			}
			if err := h.Initialize(ctx, confirmed); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Initialized %s (%s)\n", h.Path(), h.Engine())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// confirm prints prompt to stderr and reads a yes/no answer from stdin.
func (a *app) confirm(prompt string) (bool, error) {
	fmt.Fprint(a.stderr, prompt)
	answer, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && answer == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
