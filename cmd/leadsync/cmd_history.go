package main

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/spf13/cobra"
)

func (c *cli) newHistoryCmd() *cobra.Command {
	var (
		limit int
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past imports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app) error {
				var (
					runs []core.Summary
					err  error
				)
				if since > 0 {
					runs, err = a.history.Since(time.Now().Add(-since))
					if limit > 0 && len(runs) > limit {
						runs = runs[:limit]
					}
				} else {
					runs, err = a.history.List(limit)
				}
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					c.ux.Infof("No imports recorded")
					return nil
				}

				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					state := c.ux.Good("complete")
					if r.Cancelled {
						state = c.ux.Bad("cancelled")
					}
					rows = append(rows, []string{
						r.StartedAt.Local().Format("2006-01-02 15:04"), r.FileName,
						strconv.Itoa(r.Total), strconv.Itoa(r.Succeeded), strconv.Itoa(r.Failed), state,
					})
				}
				c.ux.Table([]string{"STARTED", "FILE", "ROWS", "OK", "FAILED", "STATE"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most this many runs (0 = all)")
	cmd.Flags().DurationVar(&since, "since", 0, "only runs started within this duration, e.g. 24h")
	return cmd
}
