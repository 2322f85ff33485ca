package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/pivotal/ciborg/internal/models"
	"github.com/pivotal/ciborg/pkg/utils"
)

// DefaultFlavor is the instance type used when none is given
const DefaultFlavor = "t1.micro"

// liveStates are the instance states DestroyEC2 considers when targeting all instances
var liveStates = []string{"pending", "running", "stopping", "stopped"}

// Target selects the instances an operation applies to
type Target struct {
	all bool
	ids []string
}

// AllInstances targets every live instance launched by ciborg
func AllInstances() Target {
	return Target{all: true}
}

// InstanceIDs targets the given instances
func InstanceIDs(ids ...string) Target {
	return Target{ids: ids}
}

// ParseTarget turns command line arguments into a target: "all" selects every
// ciborg instance, anything else is a list of instance ids
func ParseTarget(args ...string) (Target, error) {
	if len(args) == 1 && args[0] == "all" {
		return AllInstances(), nil
	}
	target := InstanceIDs(args...)
	return target, target.validate()
}

// All reports whether the target selects every ciborg instance
func (t Target) All() bool {
	return t.all
}

// IDs returns the instance ids of an explicit target
func (t Target) IDs() []string {
	return t.ids
}

func (t Target) String() string {
	if t.all {
		return "all"
	}
	return strings.Join(t.ids, ",")
}

func (t Target) validate() error {
	if t.all {
		return nil
	}
	if len(t.ids) == 0 {
		return fmt.Errorf("%w: no instances targeted", ErrConfiguration)
	}
	for _, id := range t.ids {
		if id == "" || id == "all" {
			return fmt.Errorf("%w: invalid instance id %q", ErrConfiguration, id)
		}
	}
	return nil
}

// LaunchServer starts one instance of flavor (DefaultFlavor if empty) from the
// region's image, with the given key pair and security group, and waits for it
// to run. The session's Elastic IP is then bound to it.
//
// If waiting fails, the instance as last seen is returned with the error so
// the caller can poll again or destroy it.
func (s *Session) LaunchServer(ctx context.Context, keyPair, securityGroup, flavor string) (*models.InstanceInfo, error) {
	log := clog.FromContext(ctx)

	if flavor == "" {
		flavor = DefaultFlavor
	}
	image, err := s.images(s.region)
	if err != nil {
		return nil, err
	}

	client, err := s.EC2(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:           aws.String(image),
		InstanceType:      types.InstanceType(flavor),
		MinCount:          aws.Int32(1),
		MaxCount:          aws.Int32(1),
		KeyName:           aws.String(keyPair),
		SecurityGroups:    []string{securityGroup},
		ClientToken:       aws.String(s.clientToken()),
		TagSpecifications: tagSpecification(types.ResourceTypeInstance),
	})
	if err != nil {
		return nil, fmt.Errorf("error launching instance: %w", classify(err))
	}
	if len(result.Instances) == 0 || result.Instances[0].InstanceId == nil {
		return nil, fmt.Errorf("%w: no instance returned from launch", ErrProvider)
	}

	id := *result.Instances[0].InstanceId
	log.Debug("launched instance", "id", id, "image", image, "flavor", flavor)

	instance, err := s.waitForRunning(ctx, id)
	if err != nil {
		return instance, err
	}

	address, err := s.ElasticIPAddress(ctx)
	if err != nil {
		return instance, fmt.Errorf("error reserving address for instance %s: %w", id, err)
	}

	return s.bindAddress(ctx, instance, address)
}

// waitForRunning waits for the instance to run, bounded by the launch timeout
// and ctx. Instances that stop or terminate while launching fail right away.
func (s *Session) waitForRunning(ctx context.Context, id string) (*models.InstanceInfo, error) {
	log := clog.FromContext(ctx)

	client, err := s.EC2(ctx)
	if err != nil {
		return nil, err
	}

	last := &models.InstanceInfo{InstanceID: id, State: "pending", Region: s.region}
	var failed error
	waiter := ec2.NewInstanceRunningWaiter(client, func(o *ec2.InstanceRunningWaiterOptions) {
		o.MinDelay = s.pollInterval
		o.MaxDelay = s.pollInterval

		next := o.Retryable
		o.Retryable = func(ctx context.Context, in *ec2.DescribeInstancesInput, out *ec2.DescribeInstancesOutput, err error) (bool, error) {
			if err == nil && out != nil {
				for _, reservation := range out.Reservations {
					for _, instance := range reservation.Instances {
						info := s.toInstanceInfo(instance)
						last = &info
					}
				}
				if last.Gone() || last.Halted() {
					failed = fmt.Errorf("%w: instance %s went %s while launching", ErrProvider, id, last.State)
					return false, failed
				}
				log.Debug("waiting for instance to enter running state", "id", id, "state", last.State)
			}

			retry, err := next(ctx, in, out, err)
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return false, err
			}
			if err != nil {
				failed = fmt.Errorf("error waiting for instance %s: %w", id, classify(err))
				return false, failed
			}
			if retry && out == nil {
				log.Debug("instance not visible yet", "id", id)
			}
			return retry, nil
		}
	})

	out, err := waiter.WaitForOutput(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	}, s.launchTimeout)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return last, fmt.Errorf("error waiting for instance %s: %w", id, ctx.Err())
	case failed != nil:
		return last, failed
	default:
		if current, err := s.describeInstance(ctx, id); err == nil {
			last = current
		}
		return last, fmt.Errorf("%w: instance %s still %s after %s: %w", ErrLaunchTimeout, id, last.State, s.launchTimeout, err)
	}

	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			info := s.toInstanceInfo(instance)
			log.Debug("instance running", "id", id)
			return &info, nil
		}
	}
	return last, fmt.Errorf("%w: instance %s missing from describe output", ErrProvider, id)
}

// bindAddress associates address with the running instance and returns the
// instance as EC2 reports it afterwards
func (s *Session) bindAddress(ctx context.Context, instance *models.InstanceInfo, address *models.EIPInfo) (*models.InstanceInfo, error) {
	log := clog.FromContext(ctx)

	client, err := s.EC2(ctx)
	if err != nil {
		return instance, err
	}

	var associationID string
	err = s.retryNotFound(ctx, instance.InstanceID, func() error {
		input := &ec2.AssociateAddressInput{
			InstanceId:         aws.String(instance.InstanceID),
			AllowReassociation: aws.Bool(true),
		}
		if address.AllocationID != "" {
			input.AllocationId = aws.String(address.AllocationID)
		} else {
			input.PublicIp = aws.String(address.PublicIP)
		}

		result, err := client.AssociateAddress(ctx, input)
		if err != nil {
			return classify(err)
		}
		associationID = aws.ToString(result.AssociationId)
		return nil
	})
	if err != nil {
		return instance, fmt.Errorf("error associating %s with instance %s: %w", address.PublicIP, instance.InstanceID, err)
	}
	s.recordAssociation(address.PublicIP, instance.InstanceID, associationID)
	log.Debug("associated address", "id", instance.InstanceID, "ip", address.PublicIP)

	var bound *models.InstanceInfo
	err = s.retryNotFound(ctx, instance.InstanceID, func() error {
		current, err := s.describeInstance(ctx, instance.InstanceID)
		if err != nil {
			return err
		}
		bound = current
		if current.PublicIP != address.PublicIP {
			return fmt.Errorf("%w: address %s on instance %s", ErrNotFound, address.PublicIP, instance.InstanceID)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) && bound != nil {
		// The association call succeeded; describe results just lag behind it.
		bound.PublicIP = address.PublicIP
		return bound, nil
	}
	if err != nil {
		return instance, fmt.Errorf("error describing instance %s: %w", instance.InstanceID, err)
	}
	return bound, nil
}

// Instances lists the instances selected by target. Terminated and
// terminating instances are left out, as are explicit ids EC2 no longer knows.
func (s *Session) Instances(ctx context.Context, target Target) ([]models.InstanceInfo, error) {
	instances, _, err := s.lookupInstances(ctx, target)
	return instances, err
}

// lookupInstances returns the live instances selected by target and the
// explicit ids EC2 does not know
func (s *Session) lookupInstances(ctx context.Context, target Target) ([]models.InstanceInfo, []string, error) {
	if err := target.validate(); err != nil {
		return nil, nil, err
	}

	var instances []models.InstanceInfo
	var missing []string
	if target.All() {
		found, err := s.describeInstances(ctx, &ec2.DescribeInstancesInput{
			Filters: []types.Filter{
				{
					Name:   aws.String("tag-key"),
					Values: []string{TagKeyVersion},
				},
				{
					Name:   aws.String("instance-state-name"),
					Values: liveStates,
				},
			},
		})
		if err != nil {
			return nil, nil, err
		}
		instances = found
	} else {
		found, err := s.describeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: target.IDs(),
		})
		switch {
		case errors.Is(err, ErrNotFound):
			// One unknown id fails the whole call, so look them up one by one.
			clog.FromContext(ctx).Debug("describing instances one by one", "ids", target.String())
			for _, id := range target.IDs() {
				instance, err := s.describeInstance(ctx, id)
				if errors.Is(err, ErrNotFound) {
					missing = append(missing, id)
					continue
				}
				if err != nil {
					return nil, nil, err
				}
				instances = append(instances, *instance)
			}
		case err != nil:
			return nil, nil, err
		default:
			instances = found
		}
	}

	live := []models.InstanceInfo{}
	for _, instance := range instances {
		if instance.Gone() {
			continue
		}
		live = append(live, instance)
	}
	return live, missing, nil
}

func (s *Session) describeInstance(ctx context.Context, id string) (*models.InstanceInfo, error) {
	instances, err := s.describeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: instance %s", ErrNotFound, id)
	}
	return &instances[0], nil
}

func (s *Session) describeInstances(ctx context.Context, input *ec2.DescribeInstancesInput) ([]models.InstanceInfo, error) {
	client, err := s.EC2(ctx)
	if err != nil {
		return nil, err
	}

	instances := []models.InstanceInfo{}
	paginator := ec2.NewDescribeInstancesPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error querying EC2 instances: %w", classify(err))
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				instances = append(instances, s.toInstanceInfo(instance))
			}
		}
	}
	return instances, nil
}

func (s *Session) toInstanceInfo(instance types.Instance) models.InstanceInfo {
	info := models.InstanceInfo{
		InstanceID: aws.ToString(instance.InstanceId),
		Name:       utils.GetName(instance.Tags),
		ImageID:    aws.ToString(instance.ImageId),
		Flavor:     string(instance.InstanceType),
		KeyName:    aws.ToString(instance.KeyName),
		Tags:       utils.GetTagsMap(instance.Tags),
		PublicIP:   aws.ToString(instance.PublicIpAddress),
		Region:     s.region,
		LaunchTime: aws.ToTime(instance.LaunchTime),
	}

	if instance.State != nil {
		info.State = string(instance.State.Name)
	}
	if instance.Placement != nil {
		info.AvailabilityZone = aws.ToString(instance.Placement.AvailabilityZone)
	}
	for _, group := range instance.SecurityGroups {
		info.SecurityGroups = append(info.SecurityGroups, aws.ToString(group.GroupName))
	}

	return info
}
