package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ember/internal/acct"
)

func newAcctCmd() *cobra.Command {
	var dbPath, bootID string

	cmd := &cobra.Command{
		Use:   "acct",
		Short: "Show the process-accounting journal",
		Long:  "Without --boot, lists every recorded boot. With --boot, lists the task exits of that boot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			j, err := acct.Open(ctx, dbPath, cliLogger(cmd))
			if err != nil {
				return err
			}
			defer j.Close()

			out := cmd.OutOrStdout()
			if bootID == "" {
				boots, err := j.Boots(ctx)
				if err != nil {
					return fmt.Errorf("list boots: %w", err)
				}
				if len(boots) == 0 {
					fmt.Fprintln(out, "No boots recorded.")
					return nil
				}
				acct.WriteBoots(out, boots, time.Now())
				return nil
			}

			exits, err := j.Exits(ctx, bootID)
			if err != nil {
				return fmt.Errorf("list exits: %w", err)
			}
			if len(exits) == 0 {
				fmt.Fprintf(out, "No exits recorded for %s.\n", bootID)
				return nil
			}
			acct.WriteExits(out, exits)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Accounting journal (SQLite path)")
	cmd.Flags().StringVar(&bootID, "boot", "", "Boot id to show")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
