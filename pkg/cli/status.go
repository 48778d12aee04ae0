package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := client().Status()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(status)
		}
		fmt.Printf("devproxy %v on admin port %v\n", status["version"], status["adminPort"])
		fmt.Printf("  mocks: %v (%v active)\n", status["mockCount"], status["activeMocks"])
		if scn, ok := status["activeScenario"].(string); ok && scn != "" {
			fmt.Printf("  active scenario: %s\n", scn)
		} else {
			fmt.Println("  active scenario: none")
		}
		if rec, ok := status["recordMode"].(bool); ok && rec {
			fmt.Println("  record mode: on")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
