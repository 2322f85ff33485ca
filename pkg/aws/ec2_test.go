package aws

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pivotal/ciborg/internal/awstest"
	"github.com/pivotal/ciborg/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ciborgTag() types.Tag {
	return types.Tag{Key: aws.String(TagKeyVersion), Value: aws.String(version.Get().Version)}
}

func TestLaunchServer(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)

	instance, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)

	address, err := s.ElasticIPAddress(t.Context())
	require.NoError(t, err)

	assert.NotEmpty(t, instance.InstanceID)
	assert.True(t, instance.Running())
	assert.Equal(t, address.PublicIP, instance.PublicIP)
	assert.Equal(t, instance.InstanceID, address.InstanceID)
	assert.True(t, address.Attached())
	assert.Equal(t, "ciborg", instance.KeyName)
	assert.Equal(t, []string{"ciborg"}, instance.SecurityGroups)
	assert.Equal(t, DefaultFlavor, instance.Flavor)
	assert.Equal(t, "ami-a29943cb", instance.ImageID)
	assert.Equal(t, "Ciborg", instance.Name)
	assert.Equal(t, version.Get().Version, instance.Tags[TagKeyVersion])
	assert.Equal(t, "us-east-1", instance.Region)

	require.NotNil(t, fake.LastRun())
	assert.Equal(t, int32(1), aws.ToInt32(fake.LastRun().MinCount))
	assert.Equal(t, int32(1), aws.ToInt32(fake.LastRun().MaxCount))
	assert.NotEmpty(t, aws.ToString(fake.LastRun().ClientToken))
}

func TestLaunchServerFlavor(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)

	instance, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "c1.medium")
	require.NoError(t, err)
	assert.Equal(t, "c1.medium", instance.Flavor)
	assert.Equal(t, types.InstanceType("c1.medium"), fake.LastRun().InstanceType)
}

func TestLaunchServerImagePerRegion(t *testing.T) {
	for region, ami := range expectedImages {
		t.Run(region, func(t *testing.T) {
			fake := awstest.NewEC2()
			fake.Region = region
			s := newTestSession(t, fake)

			instance, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
			require.NoError(t, err)
			assert.Equal(t, ami, aws.ToString(fake.LastRun().ImageId))
			assert.Equal(t, region, instance.Region)
			assert.Equal(t, region+"a", instance.AvailabilityZone)
		})
	}
}

func TestLaunchServerUnknownRegion(t *testing.T) {
	fake := awstest.NewEC2()
	fake.Region = "eu-central-1"
	s := newTestSession(t, fake)

	_, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, fake.CallCount("RunInstances"))
}

func TestLaunchServerCustomImages(t *testing.T) {
	fake := awstest.NewEC2()
	fake.Region = "eu-central-1"
	s := newTestSession(t, fake, WithImageResolver(StaticImages(map[string]string{"eu-central-1": "ami-0abc1234"})))

	_, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)
	assert.Equal(t, "ami-0abc1234", aws.ToString(fake.LastRun().ImageId))
}

func TestLaunchServerWaitsForRunning(t *testing.T) {
	fake := awstest.NewEC2()
	fake.PendingPolls = 3
	fake.HiddenInstanceDescribes = 2
	s := newTestSession(t, fake)

	instance, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)
	assert.True(t, instance.Running())
	assert.GreaterOrEqual(t, fake.CallCount("DescribeInstances"), 6)
}

func TestLaunchServerTimeout(t *testing.T) {
	fake := awstest.NewEC2()
	fake.NeverRun = true
	s := newTestSession(t, fake, WithLaunchTimeout(20*time.Millisecond))

	instance, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.ErrorIs(t, err, ErrLaunchTimeout)
	require.NotNil(t, instance)
	assert.NotEmpty(t, instance.InstanceID)
	assert.Equal(t, "pending", instance.State)

	assert.Equal(t, types.InstanceStateNamePending, fake.State(instance.InstanceID))
	assert.Zero(t, fake.CallCount("AllocateAddress"))
}

func TestLaunchServerHaltedInstance(t *testing.T) {
	for _, state := range []types.InstanceStateName{
		types.InstanceStateNameStopping,
		types.InstanceStateNameStopped,
		types.InstanceStateNameTerminated,
	} {
		t.Run(string(state), func(t *testing.T) {
			fake := awstest.NewEC2()
			fake.HaltTo = state
			s := newTestSession(t, fake, WithLaunchTimeout(time.Minute))

			started := time.Now()
			instance, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
			require.ErrorIs(t, err, ErrProvider)
			assert.NotErrorIs(t, err, ErrLaunchTimeout)
			assert.Less(t, time.Since(started), 10*time.Second)

			require.NotNil(t, instance)
			assert.Equal(t, string(state), instance.State)
			assert.Zero(t, fake.CallCount("AllocateAddress"))
		})
	}
}

func TestLaunchServerCancelled(t *testing.T) {
	fake := awstest.NewEC2()
	fake.NeverRun = true
	s := newTestSession(t, fake, WithLaunchTimeout(time.Minute))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	instance, err := s.LaunchServer(ctx, "ciborg", "ciborg", "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrLaunchTimeout)
	require.NotNil(t, instance)
	assert.NotEmpty(t, instance.InstanceID)
}

func TestLaunchServerReusesAddress(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)

	first, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)
	second, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)

	assert.NotEqual(t, first.InstanceID, second.InstanceID)
	assert.Equal(t, first.PublicIP, second.PublicIP)
	assert.Equal(t, 1, fake.CallCount("AllocateAddress"))

	instances, err := s.Instances(t.Context(), InstanceIDs(first.InstanceID))
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Empty(t, instances[0].PublicIP)
}

func TestLaunchServerClientToken(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake, WithClientToken(func() string { return "fixed-token" }))

	first, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)
	second, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)

	assert.Equal(t, first.InstanceID, second.InstanceID)
	assert.Equal(t, "fixed-token", aws.ToString(fake.LastRun().ClientToken))
	assert.Equal(t, 1, fake.InstanceCount())
}

func TestInstancesAll(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)

	launched, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)
	stopped := fake.AddInstance(types.InstanceStateNameStopped, ciborgTag())
	fake.AddInstance(types.InstanceStateNameRunning)
	fake.AddInstance(types.InstanceStateNameTerminated, ciborgTag())

	instances, err := s.Instances(t.Context(), AllInstances())
	require.NoError(t, err)

	var ids []string
	for _, instance := range instances {
		ids = append(ids, instance.InstanceID)
	}
	assert.ElementsMatch(t, []string{launched.InstanceID, stopped}, ids)
}

func TestInstancesByID(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)

	untagged := fake.AddInstance(types.InstanceStateNameRunning)
	terminated := fake.AddInstance(types.InstanceStateNameTerminated, ciborgTag())

	instances, err := s.Instances(t.Context(), InstanceIDs(untagged, terminated))
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, untagged, instances[0].InstanceID)

	instances, err = s.Instances(t.Context(), InstanceIDs("i-missing", untagged))
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, untagged, instances[0].InstanceID)

	instances, err = s.Instances(t.Context(), InstanceIDs("i-missing"))
	require.NoError(t, err)
	assert.Empty(t, instances)

	_, err = s.Instances(t.Context(), InstanceIDs())
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("all")
	require.NoError(t, err)
	assert.True(t, target.All())
	assert.Equal(t, "all", target.String())

	target, err = ParseTarget("i-1", "i-2")
	require.NoError(t, err)
	assert.False(t, target.All())
	assert.Equal(t, []string{"i-1", "i-2"}, target.IDs())
	assert.Equal(t, "i-1,i-2", target.String())

	_, err = ParseTarget()
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = ParseTarget("i-1", "all")
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = ParseTarget("")
	require.ErrorIs(t, err, ErrConfiguration)
}
