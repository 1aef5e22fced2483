package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-psdeals/pipeline"
	"github.com/aluiziolira/go-scrape-psdeals/session"
)

func newRegionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "Lists the store regions and their locale codes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			regions, err := a.scraper.FetchRegions(cmd.Context())
			if err != nil {
				return err
			}
			renderRegions(cmd.OutOrStdout(), regions)
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		region    string
		export    string
		format    string
		clearRows bool
	)

	cmd := &cobra.Command{
		Use:   "search [--region <name|code>] [--export <file> --format csv|json|dual] QUERY...",
		Short: "Searches a region for games and prints their prices.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			h := a.handler()

			s, err := h.LoadRegions(ctx, session.New(clearRows))
			if err != nil {
				return err
			}
			s, err = h.Search(ctx, s, region, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if len(s.Displayed) > 0 {
				renderRows(out, s.Displayed, session.NoSelection)
			}
			fmt.Fprintln(out, s.Status)

			if export == "" || len(s.Displayed) == 0 {
				return nil
			}
			if !cmd.Flags().Changed("format") {
				format = a.cfg.OutputFormat
			}
			writer, err := pipeline.NewWriter(strings.ToLower(format), export)
			if err != nil {
				return err
			}
			if s, err = h.AddToExport(s); err != nil {
				writer.Close()
				return err
			}
			if s, err = h.Export(s, writer); err != nil {
				return err
			}
			fmt.Fprintln(out, s.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&region, "region", "r", "us", "Region display name or locale code")
	cmd.Flags().StringVarP(&export, "export", "o", "", "Write the results to this file")
	cmd.Flags().StringVar(&format, "format", "csv", "Export format: csv, json, or dual")
	cmd.Flags().BoolVar(&clearRows, "clear", false, "Clear displayed rows on every search")
	return cmd
}

func newLowestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lowest <detail-link|url>",
		Short: "Prints the lowest recorded price of a game.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detailURL, err := a.cfg.DetailURL(args[0])
			if err != nil {
				return err
			}
			price, err := a.scraper.FetchLowestPrice(cmd.Context(), detailURL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), price)
			return nil
		},
	}
}
