package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Identity describes the principal behind the session's credentials
type Identity struct {
	Account string
	ARN     string
	UserID  string
}

// CallerIdentity asks STS who the session's credentials belong to.
// Rejected credentials fail with ErrAuthentication.
func (s *Session) CallerIdentity(ctx context.Context) (Identity, error) {
	client, err := s.stsClient(ctx)
	if err != nil {
		return Identity{}, err
	}

	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("error looking up caller identity: %w", classify(err))
	}

	return Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

func (s *Session) stsClient(ctx context.Context) (STSAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sts != nil {
		return s.sts, nil
	}

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	s.sts = sts.NewFromConfig(cfg)
	return s.sts, nil
}
