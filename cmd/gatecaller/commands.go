package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hammamikhairi/gatecaller/internal/config"
	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/gate"
	"github.com/hammamikhairi/gatecaller/internal/logger"
	"github.com/hammamikhairi/gatecaller/internal/playlog"
	"github.com/hammamikhairi/gatecaller/internal/resolver"
)

func newResolveCmd() *cobra.Command {
	var (
		snap      domain.FlightSnapshot
		call      string
		direction string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the asset path and priority for an announcement",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := domain.ParseCallType(call)
			if err != nil {
				return err
			}

			var job domain.AnnouncementJob
			if c.FlightBound() {
				snap.Ident = strings.ToUpper(snap.Ident)
				snap.Direction = domain.ParseDirection(direction)
				job, err = resolver.Job(snap, c)
			} else {
				job, err = resolver.ClassJob(c)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\tpriority=%d\tkey=%s\n", job.Asset.Path, job.Priority, job.Key)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&call, "call", "boarding", "call type (first_call, second_call, boarding, last_call, arrival, baggage, security)")
	f.StringVar(&direction, "direction", "departure", "departure or arrival")
	f.StringVar(&snap.Ident, "ident", "", "flight identifier, e.g. AF456")
	f.StringVar(&snap.AirlineIATA, "airline", "", "IATA airline code")
	f.StringVar(&snap.AirlineICAO, "airline-icao", "", "ICAO airline code, used when --airline is empty")
	f.StringVar(&snap.Destination, "dest", "", "destination airport code")
	f.StringVar(&snap.Origin, "origin", "", "origin airport code")
	f.StringVar(&snap.Gate, "gate", "", "departure gate")
	return cmd
}

func newGateCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Show the baggage window and tick state at a point in time",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = t
			}

			w := gate.BaggageWindow(now)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "time:     %s\n", now.Format("2006-01-02 15:04 MST"))
			fmt.Fprintf(out, "season:   %s\n", gate.SeasonOf(now))
			fmt.Fprintf(out, "window:   %02d:%02d-%02d:%02d\n", w.Start/60, w.Start%60, w.End/60, w.End%60)
			fmt.Fprintf(out, "tick:     %t\n", gate.IsTick(now))
			fmt.Fprintf(out, "baggage:  %t\n", gate.IsTick(now) && gate.IsPermitted(domain.CallBaggage, now))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "RFC3339 time to evaluate (default now)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent playbacks from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("GATECALLER_DATABASE_URL is not set")
			}

			log := logger.New(logger.LevelOff, nil)
			pg, err := playlog.NewPostgresLog(cmd.Context(), cfg.DatabaseURL, log)
			if err != nil {
				return err
			}
			defer pg.Close()

			recs, err := pg.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tFLIGHTS\tCALL\tGATE\tASSET\tRESULT")
			for _, r := range recs {
				result := "ok"
				if !r.Succeeded() {
					result = r.Failure
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					humanize.Time(r.StartedAt), strings.Join(r.Flights, ","), r.CallType, r.Gate, r.AssetFile, result)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	return cmd
}
