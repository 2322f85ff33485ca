package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/pivotal/ciborg/internal/models"
	"github.com/pivotal/ciborg/pkg/utils"
)

// ElasticIPAddress returns the session's Elastic IP, allocating one the first
// time it is asked for. Later calls return the same address.
func (s *Session) ElasticIPAddress(ctx context.Context) (*models.EIPInfo, error) {
	if address := s.currentAddress(); address != nil {
		return address, nil
	}

	client, err := s.EC2(ctx)
	if err != nil {
		return nil, err
	}

	var address *models.EIPInfo
	if s.adoptIP != "" {
		address, err = s.lookupAddress(ctx, client, s.adoptIP)
	} else {
		address, err = s.allocateAddress(ctx, client)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.address = address
	s.mu.Unlock()

	copied := *address
	return &copied, nil
}

// ReleaseElasticIP gives the address back to AWS. Releasing an address that
// is not allocated fails with ErrNotFound. When ip is the session's address,
// the next ElasticIPAddress call allocates a new one.
func (s *Session) ReleaseElasticIP(ctx context.Context, ip string) error {
	client, err := s.EC2(ctx)
	if err != nil {
		return err
	}

	address, err := s.lookupAddress(ctx, client, ip)
	if err != nil {
		return err
	}

	input := &ec2.ReleaseAddressInput{}
	if address.AllocationID != "" {
		input.AllocationId = aws.String(address.AllocationID)
	} else {
		input.PublicIp = aws.String(address.PublicIP)
	}
	if _, err := client.ReleaseAddress(ctx, input); err != nil {
		return fmt.Errorf("error releasing Elastic IP %s: %w", ip, classify(err))
	}

	s.mu.Lock()
	if s.address != nil && s.address.PublicIP == ip {
		s.address = nil
	}
	if s.adoptIP == ip {
		s.adoptIP = ""
	}
	s.mu.Unlock()

	clog.FromContext(ctx).Debug("released Elastic IP", "ip", ip, "allocation", address.AllocationID)
	return nil
}

// Addresses lists every Elastic IP allocated in the session's region
func (s *Session) Addresses(ctx context.Context) ([]models.EIPInfo, error) {
	client, err := s.EC2(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("error querying Elastic IPs: %w", classify(err))
	}

	eips := []models.EIPInfo{}
	for _, eip := range result.Addresses {
		eips = append(eips, s.toEIPInfo(eip))
	}
	return eips, nil
}

func (s *Session) allocateAddress(ctx context.Context, client EC2API) (*models.EIPInfo, error) {
	result, err := client.AllocateAddress(ctx, &ec2.AllocateAddressInput{
		Domain:            types.DomainTypeVpc,
		TagSpecifications: tagSpecification(types.ResourceTypeElasticIp),
	})
	if err != nil {
		return nil, fmt.Errorf("error allocating Elastic IP: %w", classify(err))
	}
	if result.PublicIp == nil {
		return nil, fmt.Errorf("%w: allocation returned no public IP", ErrProvider)
	}

	clog.FromContext(ctx).Debug("allocated Elastic IP", "ip", *result.PublicIp, "allocation", aws.ToString(result.AllocationId))
	return &models.EIPInfo{
		AllocationID: aws.ToString(result.AllocationId),
		PublicIP:     *result.PublicIp,
		Region:       s.region,
	}, nil
}

func (s *Session) lookupAddress(ctx context.Context, client EC2API, ip string) (*models.EIPInfo, error) {
	result, err := client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{
		PublicIps: []string{ip},
	})
	if err != nil {
		return nil, fmt.Errorf("error querying Elastic IP %s: %w", ip, classify(err))
	}
	for _, eip := range result.Addresses {
		if aws.ToString(eip.PublicIp) == ip {
			info := s.toEIPInfo(eip)
			return &info, nil
		}
	}
	return nil, fmt.Errorf("%w: Elastic IP %s", ErrNotFound, ip)
}

func (s *Session) currentAddress() *models.EIPInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.address == nil {
		return nil
	}
	copied := *s.address
	return &copied
}

func (s *Session) recordAssociation(ip, instanceID, associationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.address != nil && s.address.PublicIP == ip {
		s.address.InstanceID = instanceID
		s.address.AssociationID = associationID
	}
}

func (s *Session) toEIPInfo(eip types.Address) models.EIPInfo {
	return models.EIPInfo{
		AllocationID:       utils.SafeDeref(eip.AllocationId),
		PublicIP:           utils.SafeDeref(eip.PublicIp),
		AssociationID:      utils.SafeDeref(eip.AssociationId),
		InstanceID:         utils.SafeDeref(eip.InstanceId),
		NetworkInterfaceID: utils.SafeDeref(eip.NetworkInterfaceId),
		Region:             s.region,
	}
}
