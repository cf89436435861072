package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List classes with a roster file",
	RunE:  runClasses,
}

func init() {
	rootCmd.AddCommand(classesCmd)
}

func runClasses(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	classes, err := a.rosters.ListClasses()
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No rosters found in %s\n", a.cfg.Paths.ClassesDir())
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tSTUDENTS\tDEFAULT")
	for _, class := range classes {
		names, err := a.rosters.LoadRoster(class)
		if err != nil {
			return err
		}
		def := ""
		if class == a.cfg.Classes.Default {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", class, len(names), def)
	}
	return w.Flush()
}
