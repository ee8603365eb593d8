package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"almanac/internal/app"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "almanac",
	Short: "Almanac posts in-fiction calendar dates and weather to chat groups on a schedule",
	Long: `almanac runs one tick loop per enabled extension:

  - calendar: advances each group's fictional date one day per real day
    and announces it.
  - weather: posts randomized weather on an interval or at a time of day.

Common workflows:

  Run the scheduler:
    almanac run --config ./almanac.yaml

  Post the calendar every day at 08:00 Berlin time:
    almanac set calendar --timezone Europe/Berlin --cadence 08:00 --start-date 1492-03-10 -- -1001234

  Check when a group posts next:
    almanac describe weather -- -1001234

Telegram chat ids are negative; put them after "--" so they are not read as flags.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// openApp builds the app from --config without starting it.
func openApp() (*app.App, error) {
	a, err := app.New(cfgFile, app.Options{})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfgFile, err)
	}
	return a, nil
}

// extension resolves an enabled extension by name.
func extension(a *app.App, name string) (*app.Extension, error) {
	e, ok := a.Extension(name)
	if !ok {
		return nil, fmt.Errorf("extension %q is not enabled", name)
	}
	return e, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "./almanac.yaml", "config file (JSON or YAML)")
}
