package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"gardenrelay/pkg/storage/postgres"

	"github.com/spf13/cobra"
)

const maxEventsLimit = 1000

func eventsCmd(configPath *string) *cobra.Command {
	var (
		source string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print recent upstream connection events from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 || limit > maxEventsLimit {
				return fmt.Errorf("--limit must be between 1 and %d, got %d", maxEventsLimit, limit)
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Postgres.Enabled {
				return errors.New("journal disabled: set postgres.enabled")
			}

			client, err := postgres.NewClient(cfg.Postgres.DSN(cfg.Log.Environment))
			if err != nil {
				return err
			}
			defer client.Close()

			events, err := client.ListRecentConnectionEvents(cmd.Context(), source, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSOURCE\tFROM\tTO\tERROR")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.OccurredAt.UTC().Format(time.RFC3339), e.Source, e.FromState, e.ToState, e.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "filter by source: stream or poll")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show")
	return cmd
}
