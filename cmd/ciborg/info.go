package main

import (
	"fmt"

	"github.com/pivotal/ciborg/internal/version"
	ciborgaws "github.com/pivotal/ciborg/pkg/aws"
	"github.com/pivotal/ciborg/pkg/formatter"
	"github.com/pivotal/ciborg/pkg/utils"
	"github.com/spf13/cobra"
)

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the AWS identity and region ciborg would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := a.session(ctx)

			identity, err := s.CallerIdentity(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Account: %s\n", identity.Account)
			fmt.Fprintf(a.out, "ARN:     %s\n", identity.ARN)
			fmt.Fprintf(a.out, "Region:  %s (%s)\n", s.Region(), utils.GetRegionDescriptiveName(s.Region()))
			return nil
		},
	}
}

func newRegionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the regions ciborg has an image for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			images := ciborgaws.DefaultImages()
			for region, image := range a.cfg.Images {
				images[region] = image
			}
			formatter.FormatRegionsTable(a.out, images, a.resolveRegion(cmd.Context()))
			return nil
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Fprintf(a.out, "ciborg version %s (built: %s, commit: %s, %s)\n",
				info.Version, info.BuildDate, info.GitCommit, info.GoVersion)
		},
	}
}
