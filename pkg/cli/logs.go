package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	logsProject string
	logsOutcome string
	logsLimit   int
	logsClear   bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent proxied requests and their outcomes",
	RunE: func(_ *cobra.Command, _ []string) error {
		c := client()
		if logsClear {
			if err := c.ClearLogs(); err != nil {
				return err
			}
			fmt.Println("request log cleared")
			return nil
		}

		entries, err := c.GetLogs(&LogFilter{
			Project: logsProject,
			Outcome: logsOutcome,
			Limit:   logsLimit,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(entries)
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.Timestamp.Format("15:04:05.000"),
				e.Project,
				e.Method,
				e.Path,
				e.Outcome,
				strconv.Itoa(e.ResponseStatus),
				e.MatchedMockID,
			})
		}
		table([]string{"TIME", "PROJECT", "METHOD", "PATH", "OUTCOME", "STATUS", "MOCK"}, rows)
		return nil
	},
}

func init() {
	logsCmd.Flags().StringVar(&logsProject, "project", "", "Filter by project name")
	logsCmd.Flags().StringVar(&logsOutcome, "outcome", "", "Filter by outcome (mock, forwarded, recorded, ...)")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "Maximum entries to show")
	logsCmd.Flags().BoolVar(&logsClear, "clear", false, "Clear the request log instead of listing")
	rootCmd.AddCommand(logsCmd)
}
