package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chainguard-dev/clog"
	"github.com/pivotal/ciborg/internal/models"
	ciborgaws "github.com/pivotal/ciborg/pkg/aws"
	"github.com/pivotal/ciborg/pkg/formatter"
	"github.com/pivotal/ciborg/pkg/pricing"
	"github.com/spf13/cobra"
)

// startLaunchSpinner creates and starts a spinner while an instance boots
func startLaunchSpinner(a *app, flavor, region string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[9], 200*time.Millisecond, spinner.WithWriter(a.errOut))
	s.Suffix = fmt.Sprintf(" Launching %s in %s ...", flavor, region)
	s.Start()
	return s
}

func newLaunchCmd(a *app) *cobra.Command {
	var flavor string
	var noPrice bool

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch a CI server and bind the Elastic IP to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if flavor == "" {
				flavor = a.cfg.Flavor
			}

			s := a.session(ctx)
			started := time.Now()
			spin := startLaunchSpinner(a, flavor, s.Region())
			instance, err := s.LaunchServer(ctx, a.cfg.KeyPair, a.cfg.SecurityGroup, flavor)
			if err != nil {
				spin.FinalMSG = "✗ Launch failed\n"
				spin.Stop()
				return launchError(instance, err)
			}
			spin.FinalMSG = fmt.Sprintf("✓ %s running - Completed in %.2f seconds\n", instance.InstanceID, time.Since(started).Seconds())
			spin.Stop()

			quote := pricing.Quote{Flavor: flavor, Region: s.Region(), Source: pricing.PricingSourceNA}
			if !noPrice {
				quote = lookupPrice(ctx, s, flavor)
			}
			formatter.FormatLaunchSummary(a.out, instance, quote)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flavor, "flavor", "f", "", "Instance type (default: config flavor, "+ciborgaws.DefaultFlavor+")")
	cmd.Flags().BoolVar(&noPrice, "no-price", false, "Skip the on-demand price lookup")
	return cmd
}

// launchError adds a hint about the instance left behind when waiting failed
func launchError(instance *models.InstanceInfo, err error) error {
	if instance == nil || instance.InstanceID == "" {
		return err
	}
	if errors.Is(err, ciborgaws.ErrLaunchTimeout) {
		return fmt.Errorf("%w\ninstance %s may still start; check with `ciborg list` or remove it with `ciborg destroy %s`",
			err, instance.InstanceID, instance.InstanceID)
	}
	return fmt.Errorf("%w\ninstance %s was launched; remove it with `ciborg destroy %s`",
		err, instance.InstanceID, instance.InstanceID)
}

// lookupPrice returns the hourly price of flavor, or an unavailable quote
func lookupPrice(ctx context.Context, s *ciborgaws.Session, flavor string) pricing.Quote {
	unavailable := pricing.Quote{Flavor: flavor, Region: s.Region(), Source: pricing.PricingSourceNA}

	cfg, err := s.Config(ctx)
	if err != nil {
		return unavailable
	}
	quote, err := pricing.NewClient(cfg).HourlyPrice(ctx, flavor, s.Region())
	if err != nil {
		clog.FromContext(ctx).Info("price unavailable", "flavor", flavor, "error", err)
		return unavailable
	}
	return quote
}
