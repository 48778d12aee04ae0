package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/shubapp/devproxy/pkg/config"
	"github.com/shubapp/devproxy/pkg/routing"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a devproxy.yaml interactively",
	RunE: func(_ *cobra.Command, _ []string) error {
		const outPath = "devproxy.yaml"
		if _, err := os.Stat(outPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
		}

		var (
			projectName = "webapp"
			domain      string
			portStr     = "3001"
			upstream    string
			adminStr    = strconv.Itoa(config.DefaultAdminPort)
		)

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Project name").
					Value(&projectName).
					Validate(func(s string) error {
						if s == "" {
							return errors.New("project name is required")
						}
						return nil
					}),
				huh.NewInput().
					Title("Domain pattern the proxy should answer for").
					Description("A * segment matches exactly one label, e.g. *.myapp.local.example.com").
					Placeholder("*.myapp.local.example.com").
					Value(&domain),
				huh.NewInput().
					Title("Proxy port").
					Value(&portStr),
				huh.NewInput().
					Title("Upstream API host (optional)").
					Description("Requests no mock matches are forwarded here. {tenant} is replaced from the domain wildcard.").
					Placeholder("api-{tenant}.myapp.example.com").
					Value(&upstream),
				huh.NewInput().
					Title("Admin API port").
					Value(&adminStr),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}

		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid proxy port %q", portStr)
		}
		adminPort, err := strconv.Atoi(adminStr)
		if err != nil {
			return fmt.Errorf("invalid admin port %q", adminStr)
		}

		cfg := config.Default()
		cfg.Server.AdminPort = adminPort
		route := routing.ProjectRoute{
			Name:            projectName,
			FixedProxyPort:  port,
			APIHost:         upstream,
			APIPathPrefixes: []string{"/api/"},
		}
		if domain != "" {
			route.DomainPatterns = []string{domain}
		}
		cfg.Projects = append(cfg.Projects, route)

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(outPath, cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote %s. Start with: devproxy serve\n", outPath)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing devproxy.yaml")
	rootCmd.AddCommand(initCmd)
}
