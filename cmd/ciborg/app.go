package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/chainguard-dev/clog"
	"github.com/pivotal/ciborg/internal/config"
	ciborgaws "github.com/pivotal/ciborg/pkg/aws"
	"github.com/pivotal/ciborg/pkg/utils"
	"github.com/spf13/cobra"
)

// app holds what every command needs: the loaded configuration, the
// terminal streams and a way to open a session
type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	region     string
	logLevel   string
	endpoint   string

	cfg config.Config

	// metadata is asked for the region when nothing else names one
	metadata config.RegionSource
	// sessionOptions are appended to every session the app opens
	sessionOptions []ciborgaws.Option
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:       bufio.NewReader(in),
		out:      out,
		errOut:   errOut,
		metadata: imds.New(imds.Options{}),
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ciborg",
		Short: "Provision CI servers on EC2",
		Long: `ciborg manages the EC2 side of a CI fleet: a security group, an SSH key
pair, instances launched from a per-region image, and the Elastic IP the
newest instance is reachable on.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default: "+config.DefaultPath()+")")
	flags.StringVarP(&a.region, "region", "r", "", "AWS region (default: config, $AWS_REGION, instance metadata, us-east-1)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.StringVar(&a.endpoint, "endpoint", "", "EC2-compatible endpoint URL")

	rootCmd.AddCommand(
		newSetupCmd(a),
		newLaunchCmd(a),
		newListCmd(a),
		newDestroyCmd(a),
		newAddressCmd(a),
		newReleaseCmd(a),
		newKeysCmd(a),
		newTeardownCmd(a),
		newWhoamiCmd(a),
		newRegionsCmd(a),
		newVersionCmd(a),
	)
	return rootCmd
}

// init installs the logger and loads the configuration
func (a *app) init(cmd *cobra.Command) error {
	level, err := parseLogLevel(a.logLevel)
	if err != nil {
		return err
	}
	logger := clog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
	cmd.SetContext(clog.WithLogger(cmd.Context(), logger))

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// resolveRegion returns the region commands operate in
func (a *app) resolveRegion(ctx context.Context) string {
	return config.ResolveRegion(ctx, a.region, a.cfg, a.metadata)
}

// session opens a session for the configured credentials and region
func (a *app) session(ctx context.Context) *ciborgaws.Session {
	log := clog.FromContext(ctx)
	region := a.resolveRegion(ctx)
	if !utils.IsValidRegion(region) {
		log.Warn("unknown region", "region", region)
	}
	log.Debug("opening session", "region", region)

	opts := []ciborgaws.Option{
		ciborgaws.WithImageResolver(a.cfg.ImageResolver()),
		ciborgaws.WithLaunchTimeout(a.cfg.LaunchTimeout),
		ciborgaws.WithPollInterval(a.cfg.PollInterval),
	}
	if endpoint := a.endpointURL(); endpoint != "" {
		opts = append(opts, ciborgaws.WithEndpoint(endpoint))
	}
	if a.cfg.ElasticIP != "" {
		opts = append(opts, ciborgaws.WithElasticIP(a.cfg.ElasticIP))
	}
	opts = append(opts, a.sessionOptions...)

	creds := a.cfg.Credentials
	return ciborgaws.NewSession(creds.AccessKeyID, creds.SecretAccessKey, region, opts...)
}

func (a *app) endpointURL() string {
	if a.endpoint != "" {
		return a.endpoint
	}
	return a.cfg.Endpoint
}

// confirm asks a yes/no question on the terminal; anything but y or yes is no
func (a *app) confirm(question string) bool {
	fmt.Fprintf(a.out, "%s [y/N] ", question)
	answer, err := a.in.ReadString('\n')
	if err != nil && answer == "" {
		fmt.Fprintln(a.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
