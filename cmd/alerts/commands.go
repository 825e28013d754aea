package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/briangreenhill/alertsua/alerts"
	"github.com/briangreenhill/alertsua/status"
)

func newActiveCmd(a *app) *cobra.Command {
	var alertType, locationType string

	cmd := &cobra.Command{
		Use:   "active",
		Short: "List alerts currently in effect",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, true)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.client.GetActiveAlerts(cmd.Context(), a.callOptions()...)
			if err != nil {
				return err
			}
			if alertType != "" {
				list = list.ByAlertType(alerts.AlertType(alertType))
			}
			if locationType != "" {
				list = list.ByLocationType(alerts.LocationType(locationType))
			}
			return render(cmd.OutOrStdout(), a.output, list.Slice(), list, func(w io.Writer) error {
				return writeAlerts(w, list)
			})
		},
	}
	cmd.Flags().StringVar(&alertType, "type", "", "only alerts of this type (air_raid, artillery_shelling, urban_fights, chemical, nuclear)")
	cmd.Flags().StringVar(&locationType, "location-type", "", "only alerts for this location type (oblast, raion, hromada, city)")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "history <location>",
		Short: "List recent alerts of an oblast by name or UID",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, true)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.client.GetAlertsHistory(cmd.Context(), args[0], alerts.Period(period), a.callOptions()...)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, list.Slice(), list, func(w io.Writer) error {
				return writeAlerts(w, list)
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", string(alerts.PeriodMonthAgo), "history window: month_ago or week_ago")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var oblastLevelOnly, byUID bool

	cmd := &cobra.Command{
		Use:   "status [location]",
		Short: "Show air raid status of one location or of every oblast",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, true)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				st, err := a.client.GetAirRaidAlertStatus(ctx, args[0], a.callOptions()...)
				if err != nil {
					return err
				}
				return render(out, a.output, st, st, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s (%d): %s\n", st.LocationTitle, st.LocationUID, st.Status)
					return err
				})
			}

			var (
				list status.Statuses
				err  error
			)
			if byUID {
				list, err = a.client.GetAirRaidAlertStatuses(ctx, a.callOptions()...)
			} else {
				list, err = a.client.GetAirRaidAlertStatusesByOblast(ctx, oblastLevelOnly, a.callOptions()...)
			}
			if err != nil {
				return err
			}
			return render(out, a.output, list.Slice(), list, func(w io.Writer) error {
				return writeStatuses(w, list)
			})
		},
	}
	cmd.Flags().BoolVar(&oblastLevelOnly, "oblast-level-only", false, "only oblasts under a full oblast alert")
	cmd.Flags().BoolVar(&byUID, "by-uid", false, "read the UID-indexed status string instead of the oblast one")
	cmd.MarkFlagsMutuallyExclusive("oblast-level-only", "by-uid")
	return cmd
}

func newLocationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List known locations and their UIDs",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, false)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			locs := locationTable(a.client.Resolver())
			return render(cmd.OutOrStdout(), a.output, locs, locs, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "UID\tNAME")
				for _, l := range locs {
					fmt.Fprintf(tw, "%d\t%s\n", l.UID, l.Name)
				}
				return tw.Flush()
			})
		},
	}
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	var (
		tags        []string
		expiredOnly bool
	)
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop cached responses, all of them or by request type",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, false)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := a.client.Cache()
			if m == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "caching is disabled")
				return nil
			}
			if expiredOnly {
				m.Store().CleanupExpired(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "expired entries removed")
				return nil
			}
			if err := a.client.ClearCache(cmd.Context(), tags...); err != nil {
				return err
			}
			if len(tags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %v\n", tags)
			}
			return nil
		},
	}
	clearCmd.Flags().StringSliceVar(&tags, "tag", nil, "request type to invalidate, repeatable")
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only purge expired entries")
	clearCmd.MarkFlagsMutuallyExclusive("tag", "expired")

	cmd.AddCommand(clearCmd)
	return cmd
}

func writeAlerts(w io.Writer, list alerts.Alerts) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLOCATION\tLOCATION TYPE\tALERT\tSTARTED\tFINISHED")
	for _, al := range list.All() {
		finished := "-"
		if al.FinishedAt != nil {
			finished = al.FinishedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			al.ID, al.LocationTitle, al.LocationType, al.AlertType,
			al.StartedAt.Local().Format(time.DateTime), finished)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !list.LastUpdatedAt().IsZero() {
		fmt.Fprintf(w, "\n%d alerts, updated %s\n", list.Len(), list.LastUpdatedAt().Local().Format(time.DateTime))
	}
	return nil
}

func writeStatuses(w io.Writer, list status.Statuses) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tNAME\tSTATUS")
	for _, r := range list.All() {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.UID, r.Name, r.Status)
	}
	return tw.Flush()
}
