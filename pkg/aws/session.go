package aws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/google/uuid"
	"github.com/pivotal/ciborg/internal/models"
)

const (
	// DefaultLaunchTimeout bounds how long LaunchServer waits for the running state
	DefaultLaunchTimeout = 10 * time.Minute

	// DefaultPollInterval is the delay between instance state checks while launching
	DefaultPollInterval = 5 * time.Second

	// DefaultConsistencyAttempts is how many times a call is tried while the
	// resource it refers to is not visible yet
	DefaultConsistencyAttempts = 5

	// DefaultConsistencyDelay is the first backoff between those attempts
	DefaultConsistencyDelay = 2 * time.Second
)

// Session owns the connection to EC2 for one set of credentials and one
// region. The connection and the session's Elastic IP are set up on first
// use and reused afterwards. A Session is meant to be used by one goroutine;
// run one Session per worker for concurrent provisioning.
type Session struct {
	identity string
	secret   string
	region   string
	endpoint string

	images        ImageResolver
	launchTimeout time.Duration
	pollInterval  time.Duration
	retryAttempts int
	retryDelay    time.Duration
	adoptIP       string
	clientToken   func() string

	mu      sync.Mutex
	cfg     *aws.Config
	client  EC2API
	sts     STSAPI
	address *models.EIPInfo
}

// Option configures a Session
type Option func(*Session)

// WithClient makes the session use client instead of connecting to EC2
func WithClient(client EC2API) Option {
	return func(s *Session) {
		s.client = client
	}
}

// WithSTSClient makes the session use client for identity lookups
func WithSTSClient(client STSAPI) Option {
	return func(s *Session) {
		s.sts = client
	}
}

// WithEndpoint points the EC2 client at an EC2-compatible endpoint
func WithEndpoint(url string) Option {
	return func(s *Session) {
		s.endpoint = url
	}
}

// WithImageResolver replaces the built-in region to image table
func WithImageResolver(resolver ImageResolver) Option {
	return func(s *Session) {
		if resolver != nil {
			s.images = resolver
		}
	}
}

// WithLaunchTimeout bounds the wait for a launched instance to run
func WithLaunchTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.launchTimeout = d
		}
	}
}

// WithPollInterval sets the delay between instance state checks
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithConsistencyRetry sets how often, and with what initial backoff, calls
// against a resource that is not visible yet are retried
func WithConsistencyRetry(attempts int, delay time.Duration) Option {
	return func(s *Session) {
		if attempts > 0 {
			s.retryAttempts = attempts
		}
		if delay > 0 {
			s.retryDelay = delay
		}
	}
}

// WithElasticIP makes the session adopt an already allocated address
// instead of allocating a new one on first use
func WithElasticIP(publicIP string) Option {
	return func(s *Session) {
		s.adoptIP = publicIP
	}
}

// WithClientToken overrides how RunInstances idempotency tokens are generated
func WithClientToken(fn func() string) Option {
	return func(s *Session) {
		if fn != nil {
			s.clientToken = fn
		}
	}
}

// NewSession creates a session for the given credentials and region.
// Nothing is sent to AWS until the first operation.
func NewSession(identity, secret, region string, opts ...Option) *Session {
	s := &Session{
		identity:      identity,
		secret:        secret,
		region:        region,
		images:        DefaultImage,
		launchTimeout: DefaultLaunchTimeout,
		pollInterval:  DefaultPollInterval,
		retryAttempts: DefaultConsistencyAttempts,
		retryDelay:    DefaultConsistencyDelay,
		clientToken:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Region returns the region the session was created for
func (s *Session) Region() string {
	return s.region
}

// EC2 returns the session's EC2 client, connecting on first use
func (s *Session) EC2(ctx context.Context) (EC2API, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	s.client = ec2.NewFromConfig(cfg, func(o *ec2.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
		}
	})
	return s.client, nil
}

// Config returns the AWS configuration built from the session's credentials
func (s *Session) Config(ctx context.Context) (aws.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadConfig(ctx)
}

// loadConfig must be called with s.mu held
func (s *Session) loadConfig(ctx context.Context) (aws.Config, error) {
	if s.cfg != nil {
		return *s.cfg, nil
	}
	if s.identity == "" || s.secret == "" {
		return aws.Config{}, fmt.Errorf("%w: missing access key id or secret access key", ErrAuthentication)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s.region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.identity, s.secret, "")),
		config.WithRetryMode(aws.RetryModeStandard),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("%w: error loading AWS config: %w", ErrConfiguration, err)
	}

	s.cfg = &cfg
	return cfg, nil
}
