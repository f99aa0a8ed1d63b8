package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/sectriage/internal/engine/catalog"
	"github.com/crimson-sun/sectriage/internal/engine/classifier"
)

type catalogRow struct {
	ID    int    `json:"event_id" yaml:"event_id"`
	Name  string `json:"name" yaml:"name"`
	Tier  string `json:"tier" yaml:"tier"`
	Score int    `json:"base_score" yaml:"base_score"`
}

func newCatalogCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the known Windows event ids, names and risk tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalog.Default()
			rows := make([]catalogRow, 0, cat.Len())
			for _, d := range cat.Descriptors() {
				rows = append(rows, catalogRow{
					ID:    d.ID,
					Name:  d.Name,
					Tier:  d.Tier.String(),
					Score: classifier.BaseScore(d.Tier),
				})
			}
			return writeCatalog(cmd.OutOrStdout(), format, rows)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table, json, yaml")
	return cmd
}

func writeCatalog(w io.Writer, format string, rows []catalogRow) error {
	switch format {
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTIER\tSCORE")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", r.ID, r.Name, r.Tier, r.Score)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}
