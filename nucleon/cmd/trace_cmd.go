package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kernlab/nucleon/datarecording"
	"github.com/kernlab/nucleon/ktrace"
)

var traceFlags = struct {
	table   string
	where   string
	orderBy string
	limit   int
	offset  int
}{}

var traceCmd = &cobra.Command{
	Use:   "trace [database]",
	Short: "Inspect a trace database recorded by a previous run",
	Long: `Inspect a trace database recorded with "nucleon run --trace". ` +
		`Without --table the recorded tables are listed; with it, matching ` +
		`rows are printed in cycle order.`,
	Args: cobra.ExactArgs(1),
	RunE: inspectTrace,
}

func init() {
	f := traceCmd.Flags()

	f.StringVar(&traceFlags.table, "table", "", "table to query")
	f.StringVar(&traceFlags.where, "where", "",
		"filter rows with a WHERE clause")
	f.StringVar(&traceFlags.orderBy, "order-by", "Cycle", "sort column")
	f.IntVar(&traceFlags.limit, "limit", 0,
		"maximum rows to print, 0 for all")
	f.IntVar(&traceFlags.offset, "offset", 0, "rows to skip")

	rootCmd.AddCommand(traceCmd)
}

func inspectTrace(cmd *cobra.Command, args []string) error {
	dbFile := args[0]
	if _, err := os.Stat(dbFile); err != nil {
		return fmt.Errorf("open trace database: %w", err)
	}

	reader := datarecording.NewReader(dbFile)
	defer reader.Close()

	ktrace.MapTables(reader)

	if traceFlags.table == "" {
		tables := reader.ListTables()
		sort.Strings(tables)

		for _, name := range tables {
			fmt.Println(name)
		}

		return nil
	}

	rows, total, err := reader.Query(cmd.Context(), traceFlags.table,
		datarecording.QueryParams{
			Where:   traceFlags.where,
			OrderBy: traceFlags.orderBy,
			Limit:   traceFlags.limit,
			Offset:  traceFlags.offset,
		})
	if err != nil {
		return err
	}

	for _, row := range rows {
		fmt.Printf("%+v\n", row)
	}

	fmt.Fprintf(os.Stderr, "%d of %d rows\n", len(rows), total)

	return nil
}
