package main

import (
	"fmt"

	"github.com/pivotal/ciborg/pkg/formatter"
	"github.com/spf13/cobra"
)

func newAddressCmd(a *app) *cobra.Command {
	var allocate bool

	cmd := &cobra.Command{
		Use:   "address",
		Short: "List Elastic IPs, or allocate one with --allocate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := a.session(ctx)

			if allocate {
				address, err := s.ElasticIPAddress(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Elastic IP %s (%s)\n", address.PublicIP, address.AllocationID)
				fmt.Fprintf(a.out, "Set elastic_ip: %s in the config file to launch on it.\n", address.PublicIP)
				return nil
			}

			addresses, err := s.Addresses(ctx)
			if err != nil {
				return err
			}
			formatter.FormatAddressesTable(a.out, addresses)
			return nil
		},
	}

	cmd.Flags().BoolVar(&allocate, "allocate", false, "Allocate a new Elastic IP")
	return cmd
}

func newReleaseCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "release <ip>",
		Short: "Release an Elastic IP back to AWS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ip := args[0]

			if !yes && !a.confirm(fmt.Sprintf("Release Elastic IP %s?", ip)) {
				fmt.Fprintln(a.out, "Nothing released.")
				return nil
			}
			if err := a.session(ctx).ReleaseElasticIP(ctx, ip); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Released %s.\n", ip)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
