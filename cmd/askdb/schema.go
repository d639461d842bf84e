package main

import (
	"github.com/koustreak/askdb/internal/database/dialects"
	"github.com/koustreak/askdb/internal/schema"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newSchemaCmd(g *globalFlags) *cobra.Command {
	var db dbFlags
	var tables []string
	var samples int
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema the model would see",
		Long: `Print the compact schema description given to the model.

With --table, print full column definitions and sample rows for the named
tables instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(false)
			if err != nil {
				return err
			}
			dbCfg, err := cfg.Database(db.dialect, db.resolve())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			conn, err := dialects.Connect(ctx, dbCfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			if len(tables) > 0 {
				text, err := schema.DescribeTables(ctx, conn, tables, samples)
				if err != nil {
					return err
				}
				pterm.Println(text)
				return nil
			}

			desc, err := schema.Describe(ctx, conn, cfg.Agent.Schema)
			if err != nil {
				return err
			}
			pterm.Println(desc.Render())
			return nil
		},
	}
	db.register(cmd)
	cmd.Flags().StringSliceVar(&tables, "table", nil, "describe these tables in detail")
	cmd.Flags().IntVar(&samples, "samples", schema.DefaultSampleRows, "sample rows per table with --table")
	return cmd
}
