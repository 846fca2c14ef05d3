package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/recycling-monitor/internal/db"
)

var (
	extractQuery string
	extractOut   string
	extractURL   string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Export a form database query to CSV",
	Long: `Runs the SQL in --query against source.database_url and writes the result
as a UTF-8 CSV with a byte-order mark, ready to be passed to reconcile
--submissions.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		query, err := os.ReadFile(extractQuery)
		if err != nil {
			return eris.Wrap(err, "extract: read query")
		}

		url := extractURL
		if url == "" {
			url = cfg.Source.DatabaseURL
		}
		pool, err := db.Connect(ctx, url)
		if err != nil {
			return err
		}
		defer pool.Close()

		f, err := os.Create(extractOut)
		if err != nil {
			return eris.Wrap(err, "extract: create output")
		}

		n, err := db.ExportCSV(ctx, pool, string(query), f)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = eris.Wrap(cerr, "extract: close output")
		}
		if err != nil {
			_ = os.Remove(extractOut)
			return err
		}

		zap.L().Info("extract: complete",
			zap.String("query", extractQuery),
			zap.String("out", extractOut),
			zap.Int("rows", n),
		)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractQuery, "query", "", "file containing the SQL query")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "CSV file to write")
	extractCmd.Flags().StringVar(&extractURL, "database-url", "", "Postgres URL (default source.database_url)")
	_ = extractCmd.MarkFlagRequired("query")
	_ = extractCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(extractCmd)
}
