package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/pivotal/ciborg/internal/models"
)

// AddKeyPair imports publicKey under name unless a key pair with that name is
// already registered. The existing key's material is not compared.
func (s *Session) AddKeyPair(ctx context.Context, name, publicKey string) error {
	log := clog.FromContext(ctx)

	found, err := s.hasKeyPair(ctx, name)
	if err != nil {
		return err
	}
	if found {
		log.Debug("key pair already registered", "name", name)
		return nil
	}

	client, err := s.EC2(ctx)
	if err != nil {
		return err
	}

	result, err := client.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(name),
		PublicKeyMaterial: []byte(publicKey),
		TagSpecifications: tagSpecification(types.ResourceTypeKeyPair),
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrAlreadyExists) {
			log.Debug("key pair imported concurrently", "name", name)
			return nil
		}
		return fmt.Errorf("error importing key pair %s: %w", name, err)
	}

	log.Debug("imported key pair", "name", name, "fingerprint", aws.ToString(result.KeyFingerprint))
	return nil
}

// DeleteKeyPair removes the named key pair. Deleting a missing key is a no-op.
func (s *Session) DeleteKeyPair(ctx context.Context, name string) error {
	found, err := s.hasKeyPair(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	client, err := s.EC2(ctx)
	if err != nil {
		return err
	}

	_, err = client.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(name),
	})
	if err = classify(err); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("error deleting key pair %s: %w", name, err)
	}

	clog.FromContext(ctx).Debug("deleted key pair", "name", name)
	return nil
}

// KeyPairs lists the key pairs registered in the session's region
func (s *Session) KeyPairs(ctx context.Context) ([]models.KeyPairInfo, error) {
	return s.describeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{})
}

func (s *Session) hasKeyPair(ctx context.Context, name string) (bool, error) {
	keys, err := s.describeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		Filters: []types.Filter{{
			Name:   aws.String("key-name"),
			Values: []string{name},
		}},
	})
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		if key.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) describeKeyPairs(ctx context.Context, input *ec2.DescribeKeyPairsInput) ([]models.KeyPairInfo, error) {
	client, err := s.EC2(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.DescribeKeyPairs(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error querying key pairs: %w", classify(err))
	}

	keys := []models.KeyPairInfo{}
	for _, key := range result.KeyPairs {
		keys = append(keys, models.KeyPairInfo{
			KeyPairID:   aws.ToString(key.KeyPairId),
			Name:        aws.ToString(key.KeyName),
			Fingerprint: aws.ToString(key.KeyFingerprint),
			Region:      s.region,
		})
	}
	return keys, nil
}
