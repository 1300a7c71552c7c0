package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-dbsnp/internal/query"
	"github.com/inodb/vibe-dbsnp/internal/store"
	"github.com/inodb/vibe-dbsnp/internal/variant"
)

func newLookupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up variants by rsID, position or range",
		Example: `  dbsnp lookup ids rs564732507 rs1050043376
  dbsnp lookup point chr7:1052302
  dbsnp lookup points chr7:1052302,1052400 8:4330858
  dbsnp lookup range chr7:1052000-1053000 chrX:95976000-95977000`,
	}
	cmd.AddCommand(newLookupIDsCmd(a))
	cmd.AddCommand(newLookupPointCmd(a))
	cmd.AddCommand(newLookupPointsCmd(a))
	cmd.AddCommand(newLookupRangeCmd(a))
	return cmd
}

func newLookupIDsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ids <rsid>...",
		Short: "Look up variants by rsID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(e *query.Engine) ([]variant.Variant, error) {
				return e.LookupByIDs(cmd.Context(), args...)
			})
		},
	}
}

func newLookupPointCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "point <chrom:start[-end]>",
		Short: "Look up the variant starting at a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chrom, start, end, err := parsePoint(args[0])
			if err != nil {
				return err
			}
			return a.withEngine(cmd, func(e *query.Engine) ([]variant.Variant, error) {
				v, err := e.LookupByPoint(cmd.Context(), chrom, start, end)
				if err != nil || v == nil {
					return nil, err
				}
				return []variant.Variant{*v}, nil
			})
		},
	}
}

func newLookupPointsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "points <chrom:start[,start...]>...",
		Short: "Look up variants at many positions, in argument order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points := make([]query.Points, 0, len(args))
			for _, arg := range args {
				p, err := parsePoints(arg)
				if err != nil {
					return err
				}
				points = append(points, p)
			}
			return a.withEngine(cmd, func(e *query.Engine) ([]variant.Variant, error) {
				return e.LookupByPoints(cmd.Context(), points)
			})
		},
	}
}

func newLookupRangeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "range <chrom:start-end>...",
		Short: "Look up variants starting inside windows, in chromosome order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			windows := make(map[string]query.Window, len(args))
			for _, arg := range args {
				chrom, w, err := parseWindow(arg)
				if err != nil {
					return err
				}
				if _, ok := windows[chrom]; ok {
					return fmt.Errorf("%w: chromosome %s given twice", store.ErrInvalidArgument, chrom)
				}
				windows[chrom] = w
			}
			return a.withEngine(cmd, func(e *query.Engine) ([]variant.Variant, error) {
				return e.LookupByRange(cmd.Context(), windows)
			})
		},
	}
}

// withEngine opens the store, runs fn and writes the variants it returns.
func (a *app) withEngine(cmd *cobra.Command, fn func(*query.Engine) ([]variant.Variant, error)) error {
	h, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer h.Close()

	vs, err := fn(a.newEngine(h))
	if err != nil {
		return err
	}
	return a.writeVariants(vs)
}

func splitLocus(arg string) (string, string, error) {
	chrom, rest, ok := strings.Cut(arg, ":")
	if !ok || chrom == "" || rest == "" {
		return "", "", fmt.Errorf("%w: %q is not chrom:position", store.ErrInvalidArgument, arg)
	}
	return chrom, rest, nil
}

func parseCoord(arg, s string) (int64, error) {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid coordinate %q in %q", store.ErrInvalidArgument, s, arg)
	}
	return n, nil
}

// parsePoint parses "chr7:1052302" or "chr7:1052302-1052303".
func parsePoint(arg string) (string, int64, *int64, error) {
	chrom, rest, err := splitLocus(arg)
	if err != nil {
		return "", 0, nil, err
	}
	startStr, endStr, hasEnd := strings.Cut(rest, "-")
	start, err := parseCoord(arg, startStr)
	if err != nil {
		return "", 0, nil, err
	}
	if !hasEnd {
		return chrom, start, nil, nil
	}
	end, err := parseCoord(arg, endStr)
	if err != nil {
		return "", 0, nil, err
	}
	return chrom, start, &end, nil
}

// parsePoints parses "chr7:1052302,1052400".
func parsePoints(arg string) (query.Points, error) {
	chrom, rest, err := splitLocus(arg)
	if err != nil {
		return query.Points{}, err
	}
	p := query.Points{Chrom: chrom}
	for _, s := range strings.Split(rest, ",") {
		n, err := parseCoord(arg, s)
		if err != nil {
			return query.Points{}, err
		}
		p.Starts = append(p.Starts, n)
	}
	return p, nil
}

// parseWindow parses "chr7:1052000-1053000".
func parseWindow(arg string) (string, query.Window, error) {
	chrom, rest, err := splitLocus(arg)
	if err != nil {
		return "", query.Window{}, err
	}
	lo, hi, ok := strings.Cut(rest, "-")
	if !ok {
		return "", query.Window{}, fmt.Errorf("%w: %q is not chrom:start-end", store.ErrInvalidArgument, arg)
	}
	start, err := parseCoord(arg, lo)
	if err != nil {
		return "", query.Window{}, err
	}
	end, err := parseCoord(arg, hi)
	if err != nil {
		return "", query.Window{}, err
	}
	return chrom, query.Window{Start: start, End: end}, nil
}
