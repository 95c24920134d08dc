package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statesShowStatuses bool

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "List the portal's state ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := initPortal()

		if statesShowStatuses {
			statuses, err := client.Statuses(cmd.Context(), 1)
			if err != nil {
				return eris.Wrap(err, "states: statuses")
			}
			for _, s := range statuses {
				fmt.Println(s)
			}
			return nil
		}

		states, err := client.States(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "states")
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCODE\tNAME")
		for _, s := range states {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", s.ID, s.Code, s.Name)
		}
		return eris.Wrap(tw.Flush(), "states: render")
	},
}

func init() {
	statesCmd.Flags().BoolVar(&statesShowStatuses, "statuses", false, "list status values instead of states")
	rootCmd.AddCommand(statesCmd)
}
