package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ember/apps"
)

func newAppsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List builtin apps",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			def := make(map[string]bool)
			for _, name := range apps.Default() {
				def[name] = true
			}
			fmt.Fprintf(out, "%-12s  %s\n", "APP", "DEFAULT")
			fmt.Fprintf(out, "%-12s  %s\n", "---", "-------")
			for _, name := range apps.Names() {
				mark := ""
				if def[name] {
					mark = "yes"
				}
				fmt.Fprintf(out, "%-12s  %s\n", name, mark)
			}
			return nil
		},
	}
}
