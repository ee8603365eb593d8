package cmd

import (
	"github.com/spf13/cobra"
)

var forceCmd = &cobra.Command{
	Use:   "force <extension> <tenant>",
	Short: "Post for one tenant right now, ignoring its cadence",
	Long: `Compose and deliver one tenant's post immediately. The calendar date
rolls over exactly as it would on a scheduled post, and the post counts as a
firing, so the next scheduled one is measured from now.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		e, err := extension(a, args[0])
		if err != nil {
			return err
		}
		if err := e.Driver.Fire(cmd.Context(), args[1], a.Now()); err != nil {
			return err
		}
		st, err := e.Driver.Describe(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		cmd.Printf("Posted for %s.\n", args[1])
		printStatus(cmd, e.Name, st)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forceCmd)
}
