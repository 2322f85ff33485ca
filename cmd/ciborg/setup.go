package main

import (
	"fmt"

	"github.com/pivotal/ciborg/internal/config"
	"github.com/pivotal/ciborg/pkg/formatter"
	"github.com/pivotal/ciborg/pkg/sshkey"
	"github.com/spf13/cobra"
)

func newSetupCmd(a *app) *cobra.Command {
	var publicKeyPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the security group, open its ports and import the SSH key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if publicKeyPath == "" {
				publicKeyPath = a.cfg.PublicKeyPath
			}

			key, err := sshkey.ReadFile(config.ExpandPath(publicKeyPath))
			if err != nil {
				return err
			}

			s := a.session(ctx)
			if err := s.EnsureSecurityGroup(ctx, a.cfg.SecurityGroup); err != nil {
				return err
			}
			if err := s.OpenPort(ctx, a.cfg.SecurityGroup, a.cfg.Ports...); err != nil {
				return err
			}
			if err := s.AddKeyPair(ctx, a.cfg.KeyPair, key.Authorized); err != nil {
				return err
			}

			group, found, err := s.SecurityGroup(ctx, a.cfg.SecurityGroup)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("security group %s not visible after setup", a.cfg.SecurityGroup)
			}
			formatter.FormatSecurityGroup(a.out, group)
			for _, port := range a.cfg.Ports {
				if !group.Allows(port) {
					fmt.Fprintf(a.errOut, "Warning: port %d is not open yet on %s\n", port, group.Name)
				}
			}
			fmt.Fprintf(a.out, "Key pair %s: %s %s\n", a.cfg.KeyPair, key.Type, key.Fingerprint)
			return nil
		},
	}

	cmd.Flags().StringVarP(&publicKeyPath, "public-key", "k", "", "Public key to import (default: config public_key)")
	return cmd
}

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the key pairs registered in the region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			keys, err := a.session(ctx).KeyPairs(ctx)
			if err != nil {
				return err
			}
			formatter.FormatKeyPairsTable(a.out, keys)
			return nil
		},
	}
}

func newTeardownCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "teardown",
		Short: "Delete the key pair and security group created by setup",
		Long: `teardown deletes the configured key pair and security group. Instances
still using the group must be destroyed first; Elastic IPs are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := fmt.Sprintf("Delete key pair %s and security group %s?", a.cfg.KeyPair, a.cfg.SecurityGroup)
			if !yes && !a.confirm(question) {
				fmt.Fprintln(a.out, "Nothing deleted.")
				return nil
			}

			s := a.session(ctx)
			if err := s.DeleteKeyPair(ctx, a.cfg.KeyPair); err != nil {
				return err
			}
			if err := s.DeleteSecurityGroup(ctx, a.cfg.SecurityGroup); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted key pair %s and security group %s.\n", a.cfg.KeyPair, a.cfg.SecurityGroup)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
