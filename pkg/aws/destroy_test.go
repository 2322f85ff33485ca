package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pivotal/ciborg/internal/awstest"
	"github.com/pivotal/ciborg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func always(answer bool) ConfirmFunc {
	return func(models.InstanceInfo) bool { return answer }
}

func TestDestroyEC2Declined(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)
	instance, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)

	report, err := s.DestroyEC2(t.Context(), always(false), AllInstances())
	require.NoError(t, err)

	assert.Equal(t, []string{instance.InstanceID}, report.Declined)
	assert.Empty(t, report.Destroyed)
	assert.Empty(t, report.Failed)
	assert.Equal(t, types.InstanceStateNameRunning, fake.State(instance.InstanceID))
	assert.Zero(t, fake.CallCount("TerminateInstances"))
}

func TestDestroyEC2Confirmed(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)
	instance, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)

	var asked []string
	confirm := func(candidate models.InstanceInfo) bool {
		asked = append(asked, candidate.InstanceID)
		return true
	}

	report, err := s.DestroyEC2(t.Context(), confirm, AllInstances())
	require.NoError(t, err)

	assert.Equal(t, []string{instance.InstanceID}, asked)
	assert.Equal(t, []string{instance.InstanceID}, report.Destroyed)
	assert.Equal(t, 1, report.Candidates())
	assert.Equal(t, types.InstanceStateNameShuttingDown, fake.State(instance.InstanceID))

	remaining, err := s.Instances(t.Context(), AllInstances())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDestroyEC2KeepsAddress(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)
	instance, err := s.LaunchServer(t.Context(), "ciborg", "ciborg", "")
	require.NoError(t, err)

	_, err = s.DestroyEC2(t.Context(), always(true), AllInstances())
	require.NoError(t, err)

	addresses, err := s.Addresses(t.Context())
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.Equal(t, instance.PublicIP, addresses[0].PublicIP)
	assert.Zero(t, fake.CallCount("ReleaseAddress"))
}

func TestDestroyEC2IgnoresForeignInstances(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)
	foreign := fake.AddInstance(types.InstanceStateNameRunning)
	ours := fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())

	report, err := s.DestroyEC2(t.Context(), always(true), AllInstances())
	require.NoError(t, err)

	assert.Equal(t, []string{ours}, report.Destroyed)
	assert.Equal(t, types.InstanceStateNameRunning, fake.State(foreign))
}

func TestDestroyEC2NamedInstances(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)
	first := fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())
	second := fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())

	report, err := s.DestroyEC2(t.Context(), always(true), InstanceIDs(second))
	require.NoError(t, err)

	assert.Equal(t, []string{second}, report.Destroyed)
	assert.Equal(t, types.InstanceStateNameRunning, fake.State(first))
	assert.Equal(t, types.InstanceStateNameShuttingDown, fake.State(second))
}

func TestDestroyEC2MissingID(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)
	live := fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())

	report, err := s.DestroyEC2(t.Context(), always(true), InstanceIDs(live, "i-gone"))
	require.ErrorIs(t, err, ErrNotFound)
	require.NotNil(t, report)

	assert.Equal(t, []string{live}, report.Destroyed)
	assert.Equal(t, []string{"i-gone"}, report.FailedIDs())
	assert.ErrorIs(t, report.Failed["i-gone"], ErrNotFound)
	assert.Equal(t, types.InstanceStateNameShuttingDown, fake.State(live))
	assert.Equal(t, 1, fake.CallCount("TerminateInstances"))
}

func TestDestroyEC2PartialFailure(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)
	failing := fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())
	healthy := fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())
	fake.TerminateErr[failing] = awstest.APIError("UnauthorizedOperation")

	report, err := s.DestroyEC2(t.Context(), always(true), AllInstances())
	require.ErrorIs(t, err, ErrProvider)
	require.NotNil(t, report)

	assert.Equal(t, []string{healthy}, report.Destroyed)
	assert.Equal(t, []string{failing}, report.FailedIDs())
	assert.ErrorIs(t, report.Failed[failing], ErrProvider)
	assert.Equal(t, types.InstanceStateNameShuttingDown, fake.State(healthy))
	assert.Equal(t, types.InstanceStateNameRunning, fake.State(failing))
}

func TestDestroyEC2NothingToDo(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)

	report, err := s.DestroyEC2(t.Context(), always(true), AllInstances())
	require.NoError(t, err)
	assert.Zero(t, report.Candidates())
}

func TestDestroyEC2RequiresConfirm(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)
	fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())

	_, err := s.DestroyEC2(t.Context(), nil, AllInstances())
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, fake.CallCount("TerminateInstances"))
}

func TestDestroyEC2Cancelled(t *testing.T) {
	fake := awstest.NewEC2()
	s := newTestSession(t, fake)
	fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())
	fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())

	ctx, cancel := context.WithCancel(t.Context())
	confirm := func(models.InstanceInfo) bool {
		cancel()
		return true
	}

	report, err := s.DestroyEC2(ctx, confirm, AllInstances())
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Destroyed, 1)
	assert.Equal(t, 1, fake.CallCount("TerminateInstances"))
}
