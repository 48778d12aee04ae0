package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Inspect and switch mock scenarios",
}

var scenarioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scenarios",
	RunE: func(_ *cobra.Command, _ []string) error {
		c := client()
		scenarios, err := c.ListScenarios()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(scenarios)
		}

		active, err := c.GetActiveScenario()
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(scenarios))
		for _, s := range scenarios {
			marker := ""
			if s.ID == active.ScenarioID {
				marker = "*"
			}
			rows = append(rows, []string{marker, s.ID, s.Name, s.Parent, strconv.Itoa(len(s.Mocks))})
		}
		table([]string{"", "ID", "NAME", "PARENT", "MOCKS"}, rows)
		return nil
	},
}

var scenarioActivateCmd = &cobra.Command{
	Use:   "activate <scenario-id>",
	Short: "Make a scenario's resolved rule set active",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		active, err := client().ActivateScenario(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(active)
		}
		fmt.Printf("Activated %s (%d rules, version %d)\n",
			active.ScenarioID, active.RuleCount, active.Version)
		return nil
	},
}

var scenarioDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Clear the active scenario",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := client().DeactivateScenario(); err != nil {
			return err
		}
		fmt.Println("Deactivated; no scenario is active")
		return nil
	},
}

var scenarioCloneCmd = &cobra.Command{
	Use:   "clone <scenario-id>",
	Short: "Duplicate a scenario, including overrides and variables",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		clone, err := client().CloneScenario(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(clone)
		}
		fmt.Printf("Cloned %s -> %s (%q)\n", args[0], clone.ID, clone.Name)
		return nil
	},
}

func init() {
	scenarioCmd.AddCommand(scenarioListCmd)
	scenarioCmd.AddCommand(scenarioActivateCmd)
	scenarioCmd.AddCommand(scenarioDeactivateCmd)
	scenarioCmd.AddCommand(scenarioCloneCmd)
	rootCmd.AddCommand(scenarioCmd)
}
