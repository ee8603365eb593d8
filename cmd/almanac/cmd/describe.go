package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"almanac/internal/tenant"
)

var describeCmd = &cobra.Command{
	Use:   "describe <extension> <tenant>",
	Short: "Show a tenant's schedule and when it posts next",
	Args:  cobra.ExactArgs(2),
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
		st, err := e.Driver.Describe(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		printStatus(cmd, e.Name, st)
		return nil
	},
}

func printStatus(cmd *cobra.Command, ext string, st tenant.Status) {
	cmd.Printf("Tenant:        %s (%s)\n", st.TenantID, ext)
	cmd.Printf("Timezone:      %s\n", st.Timezone)
	cmd.Printf("Cadence:       %s\n", st.CadenceSummary)
	if st.Channel != "" {
		cmd.Printf("Channel:       %s\n", st.Channel)
	}
	if st.CurrentLogicalDate != nil {
		d := st.CurrentLogicalDate
		cmd.Printf("Logical date:  %s (%s)\n", d, d.Weekday())
	}
	cmd.Printf("Last fired:    %s\n", formatLastFired(st.LastFiredAt, st.Timezone))
	cmd.Printf("Next fire:     %s\n", formatNext(st))
}

func formatLastFired(t *time.Time, zone string) string {
	if t == nil {
		return "never"
	}
	if loc, err := time.LoadLocation(zone); err == nil {
		return t.In(loc).Format("Mon, 02 Jan 2006 15:04 MST")
	}
	return t.Format(time.RFC3339)
}

func formatNext(st tenant.Status) string {
	switch {
	case !st.Scheduled:
		return "-"
	case st.DueNow():
		return "due now"
	}
	return fmt.Sprintf("in %s (%s)", st.TimeUntilNextFire.Round(time.Second), st.NextFireAt.Format("Mon, 02 Jan 2006 15:04 MST"))
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
