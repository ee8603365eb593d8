package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"almanac/internal/app"
	logx "almanac/pkg/logx"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the schedulers until interrupted",
	Long:  `Start every enabled extension's tick loop, the optional metrics listener and the config watcher. SIGINT or SIGTERM stops gracefully; a tick in progress is allowed to finish.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := openApp()
		if err != nil {
			return err
		}
		if err := a.Start(ctx); err != nil {
			_ = a.Close()
			return err
		}

		select {
		case <-ctx.Done():
		case <-a.Done():
		}

		stopCtx, stop := context.WithTimeout(context.Background(), app.StopTimeout)
		defer stop()
		if err := a.Stop(stopCtx); err != nil {
			a.Logger().Error("shutdown", logx.Err(err))
			return err
		}
		return a.Err()
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick <extension>",
	Short: "Run a single tick now and exit",
	Long:  `Evaluate every tenant of one extension once and deliver whatever is due. Useful when an external timer drives almanac instead of "almanac run".`,
	Args:  cobra.ExactArgs(1),
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
		rep, err := e.Driver.Tick(cmd.Context(), a.Now())
		if err != nil {
			return err
		}
		cmd.Printf("tick %s: evaluated=%d fired=%d failed=%d skipped=%d\n",
			rep.ID, rep.Evaluated, rep.Fired, rep.Failed, rep.Skipped)
		for id, terr := range rep.Errors {
			cmd.Printf("  %s: %v\n", id, terr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tickCmd)
}
