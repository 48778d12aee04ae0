package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [on|off]",
	Short: "Show or toggle record mode",
	Long: `With no argument, prints the current record mode. With "on" or "off",
toggles it. While record mode is on, forwarded responses are stored as
inactive mock rules.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		c := client()
		if len(args) == 0 {
			enabled, err := c.RecordMode()
			if err != nil {
				return err
			}
			if enabled {
				fmt.Println("record mode: on")
			} else {
				fmt.Println("record mode: off")
			}
			return nil
		}

		var enabled bool
		switch args[0] {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			return fmt.Errorf("expected \"on\" or \"off\", got %q", args[0])
		}
		if err := c.SetRecordMode(enabled); err != nil {
			return err
		}
		fmt.Printf("record mode: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)
}
