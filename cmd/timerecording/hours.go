package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/timerecording/internal/worktime"
)

func newHoursCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hours",
		Short: "Compute the working hours of one day",
		Long: `Compute actual working time, planned time and their difference for one day.

Examples:

  timerecording hours --start 08:00 --end 16:30 --break 12:00-12:30
  timerecording hours --start 07:30,13:00 --end 12:00,17:15 --planned 7.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			starts, _ := cmd.Flags().GetStringSlice("start")
			ends, _ := cmd.Flags().GetStringSlice("end")
			rawBreaks, _ := cmd.Flags().GetStringSlice("break")
			planned, _ := cmd.Flags().GetFloat64("planned")

			breaks, err := parseBreakFlags(rawBreaks)
			if err != nil {
				return err
			}
			record, err := worktime.ParseDayWorkRecord(starts, ends, breaks, planned)
			if err != nil {
				return err
			}

			result := worktime.Calculate(record)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "actual:     %s\n", result.Actual)
			fmt.Fprintf(out, "planned:    %s\n", result.Planned)
			fmt.Fprintf(out, "difference: %s\n", result.Difference)
			return nil
		},
	}

	cmd.Flags().StringSlice("start", nil, "start times (HH:MM)")
	cmd.Flags().StringSlice("end", nil, "end times (HH:MM)")
	cmd.Flags().StringSlice("break", nil, "breaks as HH:MM-HH:MM")
	cmd.Flags().Float64("planned", 8, "planned hours for the day")
	return cmd
}

func parseBreakFlags(values []string) ([]worktime.BreakInput, error) {
	breaks := make([]worktime.BreakInput, 0, len(values))
	for _, value := range values {
		start, end, ok := strings.Cut(strings.TrimSpace(value), "-")
		if !ok {
			return nil, fmt.Errorf("break %q must use HH:MM-HH:MM", value)
		}
		breaks = append(breaks, worktime.BreakInput{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)})
	}
	return breaks, nil
}
