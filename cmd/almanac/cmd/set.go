package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"almanac/internal/config"
)

var setFlags struct {
	timezone  string
	cadence   string
	startDate string
	channel   string
}

var setCmd = &cobra.Command{
	Use:   "set <extension> <tenant>",
	Short: "Configure a tenant's timezone, cadence, start date or channel",
	Long: `Configure one tenant. The record is created with defaults on first use.

Cadence forms:
  1830, HH:MM, daily:HH:MM           once a day at a local time
  interval:<seconds>, every:<dur>    fixed interval, e.g. every:90m
  off                                stop posting

--start-date (calendar only) resets the fictional date, e.g. 1492-03-10.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		if !f.Changed("timezone") && !f.Changed("cadence") && !f.Changed("start-date") && !f.Changed("channel") {
			return errors.New("nothing to set; pass --timezone, --cadence, --start-date or --channel")
		}
		if f.Changed("start-date") && args[0] != config.ExtCalendar {
			return errors.New("--start-date only applies to the calendar extension")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		e, err := extension(a, args[0])
		if err != nil {
			return err
		}
		ctx, id := cmd.Context(), args[1]

		if f.Changed("timezone") {
			if err := e.Tenants.SetTimezone(ctx, id, setFlags.timezone); err != nil {
				return err
			}
		}
		if f.Changed("cadence") {
			if _, err := e.Tenants.SetCadence(ctx, id, setFlags.cadence); err != nil {
				return err
			}
		}
		if f.Changed("start-date") {
			if _, err := e.Tenants.SetStartDate(ctx, id, setFlags.startDate); err != nil {
				return err
			}
		}
		if f.Changed("channel") {
			if err := e.Tenants.SetChannel(ctx, id, setFlags.channel); err != nil {
				return err
			}
		}

		st, err := e.Driver.Describe(ctx, id)
		if err != nil {
			return err
		}
		printStatus(cmd, e.Name, st)
		return nil
	},
}

func init() {
	setCmd.Flags().StringVar(&setFlags.timezone, "timezone", "", "IANA zone name, e.g. Europe/Berlin")
	setCmd.Flags().StringVar(&setFlags.cadence, "cadence", "", "military time (1830), daily:HH:MM, interval:<seconds>, every:<duration> or off")
	setCmd.Flags().StringVar(&setFlags.startDate, "start-date", "", "fictional start date YYYY-MM-DD (calendar)")
	setCmd.Flags().StringVar(&setFlags.channel, "channel", "", "Telegram chat id, optionally chat:thread")
	rootCmd.AddCommand(setCmd)
}
