// Package config loads ciborg's YAML configuration file and the credentials
// it may take from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	ciborgaws "github.com/pivotal/ciborg/pkg/aws"
	"gopkg.in/yaml.v3"
)

const (
	DefaultKeyPair       = "ciborg"
	DefaultSecurityGroup = "ciborg"
	DefaultPublicKeyPath = "~/.ssh/id_rsa.pub"
)

// DefaultPorts are opened on the security group by setup: SSH and HTTPS
var DefaultPorts = []int{22, 443}

// Credentials are the EC2 identity and secret
type Credentials struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Config is the contents of config.yaml
type Config struct {
	Region        string            `yaml:"region"`
	Flavor        string            `yaml:"flavor"`
	KeyPair       string            `yaml:"key_pair"`
	PublicKeyPath string            `yaml:"public_key"`
	SecurityGroup string            `yaml:"security_group"`
	Ports         []int             `yaml:"ports"`
	LaunchTimeout time.Duration     `yaml:"launch_timeout"`
	PollInterval  time.Duration     `yaml:"poll_interval"`
	ElasticIP     string            `yaml:"elastic_ip"`
	Endpoint      string            `yaml:"endpoint"`
	Images        map[string]string `yaml:"images"`
	Credentials   Credentials       `yaml:"credentials"`
}

// DefaultPath resolves $XDG_CONFIG_HOME/ciborg/config.yaml or
// ~/.config/ciborg/config.yaml
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "ciborg", "config.yaml")
}

// LoadConfig reads YAML configuration from a path. If path is empty the
// default path is used, and a missing default file yields an empty
// configuration. Credentials from the environment override the file.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("open config: %w", err)
	}

	cfg.Credentials = credentialsFromEnv(cfg.Credentials)
	return cfg, nil
}

// credentialsFromEnv prefers EC2_KEY/EC2_SECRET, then the standard AWS
// variables, then whatever the file held
func credentialsFromEnv(fromFile Credentials) Credentials {
	creds := fromFile
	for _, pair := range [][2]string{
		{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"},
		{"EC2_KEY", "EC2_SECRET"},
	} {
		key, secret := os.Getenv(pair[0]), os.Getenv(pair[1])
		if key != "" && secret != "" {
			creds = Credentials{AccessKeyID: key, SecretAccessKey: secret}
		}
	}
	return creds
}

// ApplyDefaults fills in every unset field
func (c *Config) ApplyDefaults() {
	if c.Flavor == "" {
		c.Flavor = ciborgaws.DefaultFlavor
	}
	if c.KeyPair == "" {
		c.KeyPair = DefaultKeyPair
	}
	if c.SecurityGroup == "" {
		c.SecurityGroup = DefaultSecurityGroup
	}
	if c.PublicKeyPath == "" {
		c.PublicKeyPath = DefaultPublicKeyPath
	}
	if len(c.Ports) == 0 {
		c.Ports = append([]int(nil), DefaultPorts...)
	}
	if c.LaunchTimeout == 0 {
		c.LaunchTimeout = ciborgaws.DefaultLaunchTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = ciborgaws.DefaultPollInterval
	}
}

// Validate checks the values that cannot be fixed by defaults
func (c *Config) Validate() error {
	var errs []error
	for _, port := range c.Ports {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("port %d out of range", port))
		}
	}
	if c.LaunchTimeout < 0 {
		errs = append(errs, fmt.Errorf("launch_timeout must be positive"))
	}
	if c.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive"))
	}
	if c.LaunchTimeout > 0 && c.PollInterval > c.LaunchTimeout {
		errs = append(errs, fmt.Errorf("poll_interval %s exceeds launch_timeout %s", c.PollInterval, c.LaunchTimeout))
	}
	for region, image := range c.Images {
		if !strings.HasPrefix(image, "ami-") {
			errs = append(errs, fmt.Errorf("image %q for region %s is not an AMI id", image, region))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ciborgaws.ErrConfiguration, err)
	}
	return nil
}

// ImageResolver returns the region to image lookup implied by the Images
// table: the built-in table with the configured entries layered on top
func (c *Config) ImageResolver() ciborgaws.ImageResolver {
	if len(c.Images) == 0 {
		return ciborgaws.DefaultImage
	}
	images := ciborgaws.DefaultImages()
	for region, image := range c.Images {
		images[region] = image
	}
	return ciborgaws.StaticImages(images)
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
