package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/shubapp/devproxy/pkg/rule"
)

var mocksCmd = &cobra.Command{
	Use:   "mocks",
	Short: "Inspect and add mock rules",
}

var mocksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all mock rules",
	RunE: func(_ *cobra.Command, _ []string) error {
		mocks, err := client().ListMocks()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(mocks)
		}

		rows := make([][]string, 0, len(mocks))
		for _, m := range mocks {
			active := ""
			if m.Active {
				active = "*"
			}
			url := m.URL.Path
			if url == "" {
				url = "~" + m.URL.Pattern
			}
			rows = append(rows, []string{
				active, m.ID, m.Method, url,
				strconv.Itoa(m.Response.StatusCode),
				strconv.Itoa(m.Priority),
			})
		}
		table([]string{"", "ID", "METHOD", "URL", "STATUS", "PRI"}, rows)
		return nil
	},
}

var mocksAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a mock rule interactively",
	RunE: func(_ *cobra.Command, _ []string) error {
		var path, method, body string
		statusStr := "200"

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("What URL path should the rule match?").
					Placeholder("/api/users").
					Value(&path).
					Validate(func(s string) error {
						if s == "" {
							return errors.New("path is required")
						}
						return nil
					}),
				huh.NewSelect[string]().
					Title("Which HTTP method?").
					Options(
						huh.NewOption("GET", "GET"),
						huh.NewOption("POST", "POST"),
						huh.NewOption("PUT", "PUT"),
						huh.NewOption("PATCH", "PATCH"),
						huh.NewOption("DELETE", "DELETE"),
					).
					Value(&method),
				huh.NewInput().
					Title("What status code should it return?").
					Value(&statusStr),
				huh.NewText().
					Title("Response body (JSON)").
					Placeholder(`{"status":"ok"}`).
					Value(&body),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}

		status, err := strconv.Atoi(statusStr)
		if err != nil {
			return fmt.Errorf("invalid status code %q", statusStr)
		}

		created, err := client().CreateMock(&rule.MockRule{
			Method:   method,
			URL:      rule.URLMatch{Path: path},
			Response: rule.Response{StatusCode: status, Body: body},
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s (%s %s -> %d)\n", created.ID, method, path, status)
		fmt.Println("The rule is stored but inactive until a scenario activates it.")
		return nil
	},
}

func init() {
	mocksCmd.AddCommand(mocksListCmd)
	mocksCmd.AddCommand(mocksAddCmd)
	rootCmd.AddCommand(mocksCmd)
}
