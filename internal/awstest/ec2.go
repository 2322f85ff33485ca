// Package awstest provides in-memory stand-ins for the AWS clients ciborg
// calls, for use in tests of the session and of the CLI.
package awstest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// APIError builds the error AWS returns for code
func APIError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code + " (fake)"}
}

// EC2 keeps EC2 state in memory and mimics the error codes AWS returns
type EC2 struct {
	mu sync.Mutex

	groups    map[string]*types.SecurityGroup
	keys      map[string]types.KeyPairInfo
	instances map[string]*types.Instance
	addresses map[string]*types.Address
	tokens    map[string]string
	polls     map[string]int
	nextID    int
	calls     map[string]int
	lastRun   *ec2.RunInstancesInput

	// Region is used for availability zones of launched instances
	Region string
	// PendingPolls is how many describes an instance stays pending for
	PendingPolls int
	// NeverRun keeps instances pending forever
	NeverRun bool
	// HaltTo is the state pending instances move to instead of running
	HaltTo types.InstanceStateName
	// HiddenInstanceDescribes makes new instances invisible for that many describes
	HiddenInstanceDescribes int
	// HiddenGroupDescribes makes existing groups invisible for that many describes
	HiddenGroupDescribes int
	// TerminateErr fails TerminateInstances for specific instances
	TerminateErr map[string]error
	// FailAll makes every call fail with this error code
	FailAll string
}

// NewEC2 returns an empty fake in us-east-1
func NewEC2() *EC2 {
	return &EC2{
		Region:       "us-east-1",
		groups:       make(map[string]*types.SecurityGroup),
		keys:         make(map[string]types.KeyPairInfo),
		instances:    make(map[string]*types.Instance),
		addresses:    make(map[string]*types.Address),
		tokens:       make(map[string]string),
		polls:        make(map[string]int),
		calls:        make(map[string]int),
		TerminateErr: make(map[string]error),
	}
}

// enter locks the fake; callers must unlock it
func (f *EC2) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	if f.FailAll != "" {
		return APIError(f.FailAll)
	}
	return nil
}

func (f *EC2) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%04d", prefix, f.nextID)
}

// CallCount returns how many times op was called
func (f *EC2) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// LastRun returns the input of the latest RunInstances call
func (f *EC2) LastRun() *ec2.RunInstancesInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRun
}

// GroupCount returns how many security groups exist
func (f *EC2) GroupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.groups)
}

// InstanceCount returns how many instances exist, terminated ones included
func (f *EC2) InstanceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances)
}

// AddInstance registers an instance that was not launched through RunInstances
func (f *EC2) AddInstance(state types.InstanceStateName, tags ...types.Tag) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.id("i")
	f.instances[id] = &types.Instance{
		InstanceId:   aws.String(id),
		InstanceType: types.InstanceTypeT1Micro,
		Tags:         tags,
		State:        &types.InstanceState{Name: state},
	}
	return id
}

// State returns the current state of instance id
func (f *EC2) State(id string) types.InstanceStateName {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instances[id].State.Name
}

func filterValues(filters []types.Filter, name string) ([]string, bool) {
	for _, filter := range filters {
		if aws.ToString(filter.Name) == name {
			return filter.Values, true
		}
	}
	return nil, false
}

func tagsFrom(specs []types.TagSpecification) []types.Tag {
	var tags []types.Tag
	for _, spec := range specs {
		tags = append(tags, spec.Tags...)
	}
	return tags
}

func (f *EC2) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	err := f.enter("DescribeSecurityGroups")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if f.HiddenGroupDescribes > 0 {
		f.HiddenGroupDescribes--
		return &ec2.DescribeSecurityGroupsOutput{}, nil
	}

	names, filtered := filterValues(params.Filters, "group-name")
	out := &ec2.DescribeSecurityGroupsOutput{}
	for name, group := range f.groups {
		if filtered && !slices.Contains(names, name) {
			continue
		}
		out.SecurityGroups = append(out.SecurityGroups, *group)
	}
	return out, nil
}

func (f *EC2) CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	err := f.enter("CreateSecurityGroup")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	name := aws.ToString(params.GroupName)
	if _, ok := f.groups[name]; ok {
		return nil, APIError("InvalidGroup.Duplicate")
	}
	id := f.id("sg")
	f.groups[name] = &types.SecurityGroup{
		GroupId:     aws.String(id),
		GroupName:   aws.String(name),
		Description: params.Description,
		Tags:        tagsFrom(params.TagSpecifications),
	}
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String(id)}, nil
}

func (f *EC2) groupByID(id string) *types.SecurityGroup {
	for _, group := range f.groups {
		if aws.ToString(group.GroupId) == id {
			return group
		}
	}
	return nil
}

func (f *EC2) AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	err := f.enter("AuthorizeSecurityGroupIngress")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	group := f.groupByID(aws.ToString(params.GroupId))
	if group == nil {
		return nil, APIError("InvalidGroup.NotFound")
	}
	for _, perm := range group.IpPermissions {
		if aws.ToString(perm.IpProtocol) == aws.ToString(params.IpProtocol) &&
			aws.ToInt32(perm.FromPort) == aws.ToInt32(params.FromPort) &&
			aws.ToInt32(perm.ToPort) == aws.ToInt32(params.ToPort) {
			return nil, APIError("InvalidPermission.Duplicate")
		}
	}
	group.IpPermissions = append(group.IpPermissions, types.IpPermission{
		IpProtocol: params.IpProtocol,
		FromPort:   params.FromPort,
		ToPort:     params.ToPort,
		IpRanges:   []types.IpRange{{CidrIp: params.CidrIp}},
	})
	return &ec2.AuthorizeSecurityGroupIngressOutput{Return: aws.Bool(true)}, nil
}

func (f *EC2) DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	err := f.enter("DeleteSecurityGroup")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	group := f.groupByID(aws.ToString(params.GroupId))
	if group == nil {
		return nil, APIError("InvalidGroup.NotFound")
	}
	delete(f.groups, aws.ToString(group.GroupName))
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func (f *EC2) DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	err := f.enter("DescribeKeyPairs")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	names, filtered := filterValues(params.Filters, "key-name")
	out := &ec2.DescribeKeyPairsOutput{}
	for name, key := range f.keys {
		if filtered && !slices.Contains(names, name) {
			continue
		}
		out.KeyPairs = append(out.KeyPairs, key)
	}
	return out, nil
}

func (f *EC2) ImportKeyPair(ctx context.Context, params *ec2.ImportKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error) {
	err := f.enter("ImportKeyPair")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	name := aws.ToString(params.KeyName)
	if _, ok := f.keys[name]; ok {
		return nil, APIError("InvalidKeyPair.Duplicate")
	}
	key := types.KeyPairInfo{
		KeyPairId:      aws.String(f.id("key")),
		KeyName:        aws.String(name),
		KeyFingerprint: aws.String(fmt.Sprintf("fp:%d", len(params.PublicKeyMaterial))),
	}
	f.keys[name] = key
	return &ec2.ImportKeyPairOutput{
		KeyName:        key.KeyName,
		KeyPairId:      key.KeyPairId,
		KeyFingerprint: key.KeyFingerprint,
	}, nil
}

func (f *EC2) DeleteKeyPair(ctx context.Context, params *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	err := f.enter("DeleteKeyPair")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	delete(f.keys, aws.ToString(params.KeyName))
	return &ec2.DeleteKeyPairOutput{Return: aws.Bool(true)}, nil
}

func (f *EC2) RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	err := f.enter("RunInstances")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	f.lastRun = params

	if id, ok := f.tokens[aws.ToString(params.ClientToken)]; ok {
		return &ec2.RunInstancesOutput{Instances: []types.Instance{*f.instances[id]}}, nil
	}

	id := f.id("i")
	instance := &types.Instance{
		InstanceId:   aws.String(id),
		ImageId:      params.ImageId,
		InstanceType: params.InstanceType,
		KeyName:      params.KeyName,
		Tags:         tagsFrom(params.TagSpecifications),
		State:        &types.InstanceState{Name: types.InstanceStateNamePending},
		Placement:    &types.Placement{AvailabilityZone: aws.String(f.Region + "a")},
		LaunchTime:   aws.Time(time.Now()),
	}
	for _, name := range params.SecurityGroups {
		instance.SecurityGroups = append(instance.SecurityGroups, types.GroupIdentifier{GroupName: aws.String(name)})
	}
	f.instances[id] = instance
	f.tokens[aws.ToString(params.ClientToken)] = id
	f.polls[id] = -f.HiddenInstanceDescribes
	return &ec2.RunInstancesOutput{Instances: []types.Instance{*instance}}, nil
}

// DescribeInstances fails the whole call when one of the requested ids is
// unknown, like EC2 does
func (f *EC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	err := f.enter("DescribeInstances")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var selected []*types.Instance
	if len(params.InstanceIds) > 0 {
		for _, id := range params.InstanceIds {
			instance, ok := f.instances[id]
			if !ok || f.polls[id] < 0 {
				if ok {
					f.polls[id]++
				}
				return nil, APIError("InvalidInstanceID.NotFound")
			}
			selected = append(selected, instance)
		}
	} else {
		for _, instance := range f.instances {
			selected = append(selected, instance)
		}
	}

	tagKeys, byTag := filterValues(params.Filters, "tag-key")
	states, byState := filterValues(params.Filters, "instance-state-name")

	reservation := types.Reservation{}
	for _, instance := range selected {
		id := aws.ToString(instance.InstanceId)
		if instance.State.Name == types.InstanceStateNamePending && !f.NeverRun && f.polls[id] >= f.PendingPolls {
			instance.State.Name = types.InstanceStateNameRunning
			if f.HaltTo != "" {
				instance.State.Name = f.HaltTo
			}
		}
		f.polls[id]++

		if byState && !slices.Contains(states, string(instance.State.Name)) {
			continue
		}
		if byTag && !slices.ContainsFunc(instance.Tags, func(tag types.Tag) bool {
			return slices.Contains(tagKeys, aws.ToString(tag.Key))
		}) {
			continue
		}
		reservation.Instances = append(reservation.Instances, *instance)
	}

	out := &ec2.DescribeInstancesOutput{}
	if len(reservation.Instances) > 0 {
		out.Reservations = []types.Reservation{reservation}
	}
	return out, nil
}

func (f *EC2) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	err := f.enter("TerminateInstances")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := &ec2.TerminateInstancesOutput{}
	for _, id := range params.InstanceIds {
		if err := f.TerminateErr[id]; err != nil {
			return nil, err
		}
		instance, ok := f.instances[id]
		if !ok {
			return nil, APIError("InvalidInstanceID.NotFound")
		}
		previous := *instance.State
		instance.State = &types.InstanceState{Name: types.InstanceStateNameShuttingDown}
		out.TerminatingInstances = append(out.TerminatingInstances, types.InstanceStateChange{
			InstanceId:    aws.String(id),
			PreviousState: &previous,
			CurrentState:  instance.State,
		})
	}
	return out, nil
}

func (f *EC2) AllocateAddress(ctx context.Context, params *ec2.AllocateAddressInput, optFns ...func(*ec2.Options)) (*ec2.AllocateAddressOutput, error) {
	err := f.enter("AllocateAddress")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	f.nextID++
	ip := fmt.Sprintf("203.0.113.%d", f.nextID)
	address := &types.Address{
		AllocationId: aws.String(fmt.Sprintf("eipalloc-%04d", f.nextID)),
		PublicIp:     aws.String(ip),
		Domain:       params.Domain,
		Tags:         tagsFrom(params.TagSpecifications),
	}
	f.addresses[ip] = address
	return &ec2.AllocateAddressOutput{
		AllocationId: address.AllocationId,
		PublicIp:     address.PublicIp,
		Domain:       params.Domain,
	}, nil
}

func (f *EC2) DescribeAddresses(ctx context.Context, params *ec2.DescribeAddressesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error) {
	err := f.enter("DescribeAddresses")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := &ec2.DescribeAddressesOutput{}
	if len(params.PublicIps) > 0 {
		for _, ip := range params.PublicIps {
			address, ok := f.addresses[ip]
			if !ok {
				return nil, APIError("InvalidAddress.NotFound")
			}
			out.Addresses = append(out.Addresses, *address)
		}
		return out, nil
	}
	for _, address := range f.addresses {
		out.Addresses = append(out.Addresses, *address)
	}
	return out, nil
}

func (f *EC2) AssociateAddress(ctx context.Context, params *ec2.AssociateAddressInput, optFns ...func(*ec2.Options)) (*ec2.AssociateAddressOutput, error) {
	err := f.enter("AssociateAddress")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var address *types.Address
	for _, candidate := range f.addresses {
		if aws.ToString(candidate.AllocationId) == aws.ToString(params.AllocationId) && params.AllocationId != nil ||
			aws.ToString(candidate.PublicIp) == aws.ToString(params.PublicIp) && params.PublicIp != nil {
			address = candidate
		}
	}
	if address == nil {
		return nil, APIError("InvalidAllocationID.NotFound")
	}
	instance, ok := f.instances[aws.ToString(params.InstanceId)]
	if !ok {
		return nil, APIError("InvalidInstanceID.NotFound")
	}

	if previous, ok := f.instances[aws.ToString(address.InstanceId)]; ok {
		previous.PublicIpAddress = nil
	}
	association := fmt.Sprintf("eipassoc-%s", aws.ToString(params.InstanceId))
	address.InstanceId = params.InstanceId
	address.AssociationId = aws.String(association)
	instance.PublicIpAddress = address.PublicIp
	return &ec2.AssociateAddressOutput{AssociationId: aws.String(association)}, nil
}

func (f *EC2) ReleaseAddress(ctx context.Context, params *ec2.ReleaseAddressInput, optFns ...func(*ec2.Options)) (*ec2.ReleaseAddressOutput, error) {
	err := f.enter("ReleaseAddress")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for ip, address := range f.addresses {
		if aws.ToString(address.AllocationId) == aws.ToString(params.AllocationId) {
			delete(f.addresses, ip)
			return &ec2.ReleaseAddressOutput{}, nil
		}
	}
	return nil, APIError("InvalidAllocationID.NotFound")
}
