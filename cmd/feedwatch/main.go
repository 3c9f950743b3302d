// Command feedwatch follows a live donation query in the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"feedra/internal/donation/feed"
	"feedra/internal/donation/models"
	"feedra/internal/donation/store"
	"feedra/internal/platform/config"
	"feedra/internal/platform/logger"
	"feedra/internal/platform/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	databaseURL string
	filter      models.Filter
	stats       bool
	asJSON      bool
	logLevel    string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "feedwatch",
		Short: "Print live donation snapshots from the Postgres store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watch(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.databaseURL, "database-url", "", "postgres connection string (defaults to DATABASE_URL)")
	f.StringVar(&opts.filter.Status, "status", "", "only donations in this status (available, claimed, completed, all)")
	f.StringVar(&opts.filter.OwnerID, "donor", "", "only donations posted by this donor id")
	f.IntVar(&opts.filter.Limit, "limit", 0, "maximum number of donations per snapshot")
	f.BoolVar(&opts.stats, "stats", false, "print aggregate stats instead of donations")
	f.BoolVar(&opts.asJSON, "json", false, "print one JSON document per snapshot")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	return cmd
}

func watch(ctx context.Context, opts options, out, errOut io.Writer) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if opts.databaseURL != "" {
		cfg.Postgres.URL = opts.databaseURL
	}
	log := logger.NewWithWriter(errOut, opts.logLevel)

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	manager := feed.New(store.NewPostgres(pool, cfg.Postgres.URL, store.WithLogger(log)), feed.WithLogger(log))
	p := &printer{out: out, asJSON: opts.asJSON}

	done := make(chan error, 1)
	onError := func(err error) {
		fmt.Fprintln(errOut, "feed error:", err)
		var fe *feed.Error
		if errors.As(err, &fe) && fe.Terminal {
			select {
			case done <- err:
			default:
			}
		}
	}

	var unsubscribe feed.Unsubscribe
	if opts.stats {
		unsubscribe = manager.SubscribeStats(ctx, p.stats, onError)
	} else {
		unsubscribe = manager.Subscribe(ctx, opts.filter, p.donations, onError)
	}
	defer manager.Wait()
	defer unsubscribe()

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}

type printer struct {
	out    io.Writer
	asJSON bool
}

func (p *printer) donations(ds []models.Donation) {
	if p.asJSON {
		p.json(map[string]any{"donations": ds})
		return
	}
	fmt.Fprintf(p.out, "\n%s  %d donations\n", time.Now().Format(time.TimeOnly), len(ds))
	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFOOD\tQTY\tLOCATION\tDONOR\tCREATED")
	for _, d := range ds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%s\t%s\t%s\n",
			d.ID, d.Status, d.FoodType, d.Quantity, d.Location, d.DonorName, d.CreatedAt.Format(time.DateTime))
	}
	_ = tw.Flush()
}

func (p *printer) stats(s feed.Stats) {
	if p.asJSON {
		p.json(s)
		return
	}
	fmt.Fprintf(p.out, "%s  donations=%d food_saved=%dkg donors=%d co2_saved=%dkg\n",
		time.Now().Format(time.TimeOnly), s.TotalDonations, s.TotalFoodSaved, s.ActiveDonors, s.CO2Saved)
}

func (p *printer) json(v any) {
	if err := json.NewEncoder(p.out).Encode(v); err != nil {
		slog.Default().Warn("failed to encode snapshot", "error", err)
	}
}
