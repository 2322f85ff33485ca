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
	"github.com/pivotal/ciborg/pkg/utils"
)

const (
	securityGroupDescription = "Ciborg security group"

	// anywhere is the source range of every ingress rule ciborg opens
	anywhere = "0.0.0.0/0"
)

// EnsureSecurityGroup creates the named security group unless it already exists
func (s *Session) EnsureSecurityGroup(ctx context.Context, name string) error {
	log := clog.FromContext(ctx)

	_, found, err := s.SecurityGroup(ctx, name)
	if err != nil {
		return err
	}
	if found {
		log.Debug("security group already exists", "name", name)
		return nil
	}

	client, err := s.EC2(ctx)
	if err != nil {
		return err
	}

	result, err := client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(name),
		Description:       aws.String(securityGroupDescription),
		TagSpecifications: tagSpecification(types.ResourceTypeSecurityGroup),
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrAlreadyExists) {
			log.Debug("security group created concurrently", "name", name)
			return nil
		}
		return fmt.Errorf("error creating security group %s: %w", name, err)
	}

	log.Debug("created security group", "name", name, "id", aws.ToString(result.GroupId))
	return nil
}

// OpenPort allows inbound TCP traffic from anywhere on each of the given
// ports, one rule per port. Ports that are already open are left alone.
func (s *Session) OpenPort(ctx context.Context, name string, ports ...int) error {
	log := clog.FromContext(ctx)

	if len(ports) == 0 {
		return fmt.Errorf("%w: no ports given for security group %s", ErrConfiguration, name)
	}
	for _, port := range ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrConfiguration, port)
		}
	}

	client, err := s.EC2(ctx)
	if err != nil {
		return err
	}

	for _, port := range ports {
		err := s.retryNotFound(ctx, name, func() error {
			group, found, err := s.SecurityGroup(ctx, name)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: security group %s", ErrNotFound, name)
			}

			_, err = client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
				GroupId:    aws.String(group.GroupID),
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(int32(port)),
				ToPort:     aws.Int32(int32(port)),
				CidrIp:     aws.String(anywhere),
			})
			return classify(err)
		})
		if errors.Is(err, ErrAlreadyExists) {
			log.Debug("port already open", "group", name, "port", port)
			continue
		}
		if err != nil {
			return fmt.Errorf("error opening port %d on security group %s: %w", port, name, err)
		}
		log.Debug("opened port", "group", name, "port", port)
	}

	return nil
}

// SecurityGroup looks up a security group by name. The boolean reports
// whether the group exists.
func (s *Session) SecurityGroup(ctx context.Context, name string) (*models.SecurityGroupInfo, bool, error) {
	client, err := s.EC2(ctx)
	if err != nil {
		return nil, false, err
	}

	result, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{{
			Name:   aws.String("group-name"),
			Values: []string{name},
		}},
	})
	if err != nil {
		return nil, false, fmt.Errorf("error querying security groups: %w", classify(err))
	}

	for _, group := range result.SecurityGroups {
		if aws.ToString(group.GroupName) != name {
			continue
		}
		info := s.toSecurityGroupInfo(group)
		return &info, true, nil
	}
	return nil, false, nil
}

// DeleteSecurityGroup removes the named security group if it exists
func (s *Session) DeleteSecurityGroup(ctx context.Context, name string) error {
	group, found, err := s.SecurityGroup(ctx, name)
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

	_, err = client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(group.GroupID),
	})
	if err = classify(err); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("error deleting security group %s: %w", name, err)
	}

	clog.FromContext(ctx).Debug("deleted security group", "name", name, "id", group.GroupID)
	return nil
}

func (s *Session) toSecurityGroupInfo(group types.SecurityGroup) models.SecurityGroupInfo {
	info := models.SecurityGroupInfo{
		GroupID:     aws.ToString(group.GroupId),
		Name:        aws.ToString(group.GroupName),
		Description: aws.ToString(group.Description),
		Region:      s.region,
	}

	for _, perm := range group.IpPermissions {
		rule := models.PortRule{
			Protocol: aws.ToString(perm.IpProtocol),
			FromPort: utils.SafeDerefInt32(perm.FromPort),
			ToPort:   utils.SafeDerefInt32(perm.ToPort),
		}
		if len(perm.IpRanges) == 0 {
			info.Rules = append(info.Rules, rule)
			continue
		}
		for _, ipRange := range perm.IpRanges {
			rule.CIDR = aws.ToString(ipRange.CidrIp)
			info.Rules = append(info.Rules, rule)
		}
	}

	return info
}
