// Command checkoutctl runs operator tasks against the checkout database:
// schema migration, orphan repair, gateway confirmation and catalog sync.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-checkout/config"
	"course-checkout/database"
	"course-checkout/internal/infra/events"
	"course-checkout/internal/infra/gateway"
	"course-checkout/internal/infra/stripe"
	"course-checkout/internal/service"
	"course-checkout/internal/store"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "checkoutctl",
		Short:        "Operator tasks for course checkout",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(repairCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(confirmCmd())
	rootCmd.AddCommand(syncCoursesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type env struct {
	cfg   *config.Config
	store store.Store
	close func()
}

func openEnv(migrate bool) (*env, error) {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return &env{cfg: cfg, store: store.NewGorm(db), close: closeFn}, nil
}

// publisher falls back to Nop so repair still works without a broker.
func (e *env) publisher() (events.Publisher, func()) {
	if e.cfg.RabbitMQURL == "" {
		return events.Nop{}, func() {}
	}
	p, err := events.NewAMQPPublisher(e.cfg.RabbitMQURL, e.cfg.EventsExchange)
	if err != nil {
		fmt.Fprintf(os.Stderr, "events disabled: %v\n", err)
		return events.Nop{}, func() {}
	}
	return p, p.Close
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the checkout tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(true)
			if err != nil {
				return err
			}
			defer e.close()
			fmt.Println("schema up to date")
			return nil
		},
	}
}

func repairCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Create missing enrollments for paid orders once",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(false)
			if err != nil {
				return err
			}
			defer e.close()
			pub, closePub := e.publisher()
			defer closePub()

			ctx, cancel := signalContext()
			defer cancel()
			report, err := service.NewReconciler(e.store, pub).Repair(ctx, limit)
			if err != nil {
				return fmt.Errorf("repair: %w", err)
			}
			return printJSON(report)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum orders to repair")
	return cmd
}

func watchCmd() *cobra.Command {
	var limit int
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the repair sweep on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(false)
			if err != nil {
				return err
			}
			defer e.close()
			every := e.cfg.RepairInterval
			if interval > 0 {
				every = interval
			}
			pub, closePub := e.publisher()
			defer closePub()

			ctx, cancel := signalContext()
			defer cancel()
			service.NewRepairWorker(service.NewReconciler(e.store, pub), every, limit).Run(ctx)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum orders per sweep")
	cmd.Flags().DurationVar(&interval, "interval", 0, "sweep interval (defaults to REPAIR_INTERVAL)")
	return cmd
}

func confirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm [order-id] [payment-id]",
		Short: "Confirm a payment with the gateway and enroll the buyer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(false)
			if err != nil {
				return err
			}
			defer e.close()
			pub, closePub := e.publisher()
			defer closePub()

			gw := gateway.NewRazorpay(e.cfg.RazorpayKeyID, e.cfg.RazorpayKeySecret)
			rec := service.NewReconciler(e.store, pub)
			v := service.NewPaymentVerifier(e.store, rec, gw, e.cfg.RazorpayKeySecret, e.cfg.GatewayFetchTimeout)

			ctx, cancel := signalContext()
			defer cancel()
			res, err := v.ConfirmFromGateway(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("confirm %s: %w", args[0], err)
			}
			return printJSON(res)
		},
	}
}

func syncCoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-courses",
		Short: "Import course prices from the Stripe catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(false)
			if err != nil {
				return err
			}
			defer e.close()
			if e.cfg.StripeSecretKey == "" {
				return fmt.Errorf("STRIPE_SECRET_KEY is required")
			}

			ctx, cancel := signalContext()
			defer cancel()
			report, err := service.NewCatalogSync(stripe.NewCatalog(e.cfg.StripeSecretKey), e.store, nil).SyncCourses(ctx)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}
