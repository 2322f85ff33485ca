package main

import (
	"fmt"
	"time"

	"github.com/pivotal/ciborg/internal/models"
	ciborgaws "github.com/pivotal/ciborg/pkg/aws"
	"github.com/pivotal/ciborg/pkg/formatter"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the instances launched by ciborg",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			instances, err := a.session(ctx).Instances(ctx, ciborgaws.AllInstances())
			if err != nil {
				return err
			}
			formatter.FormatInstancesTable(a.out, instances, time.Now())
			return nil
		},
	}
}

func newDestroyCmd(a *app) *cobra.Command {
	var all, yes bool

	cmd := &cobra.Command{
		Use:   "destroy [instance-id...]",
		Short: "Terminate instances launched by ciborg",
		Long: `destroy terminates the given instances, or with --all every live
instance tagged by ciborg. Each instance is confirmed interactively unless
--yes is given. Elastic IPs are kept; use release to give one back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target, err := destroyTarget(all, args)
			if err != nil {
				return err
			}

			confirm := a.confirmInstance
			if yes {
				confirm = func(models.InstanceInfo) bool { return true }
			}

			report, err := a.session(ctx).DestroyEC2(ctx, confirm, target)
			if report != nil {
				formatter.FormatDestroyReport(a.out, report)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Destroy every instance launched by ciborg")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func destroyTarget(all bool, args []string) (ciborgaws.Target, error) {
	switch {
	case all && len(args) > 0:
		return ciborgaws.Target{}, fmt.Errorf("%w: --all cannot be combined with instance ids", ciborgaws.ErrConfiguration)
	case all:
		return ciborgaws.AllInstances(), nil
	default:
		return ciborgaws.ParseTarget(args...)
	}
}

// confirmInstance asks whether one instance may be terminated
func (a *app) confirmInstance(instance models.InstanceInfo) bool {
	question := fmt.Sprintf("Terminate %s (%s, %s", instance.InstanceID, instance.Flavor, instance.State)
	if instance.PublicIP != "" {
		question += ", " + instance.PublicIP
	}
	return a.confirm(question + ")?")
}
