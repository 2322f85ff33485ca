package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pivotal/ciborg/internal/awstest"
	"github.com/pivotal/ciborg/internal/version"
	ciborgaws "github.com/pivotal/ciborg/pkg/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// fakeApp returns an app whose sessions talk to fake
func fakeApp(fake *awstest.EC2, input string) (*app, *bytes.Buffer) {
	a, out := testApp(input)
	a.sessionOptions = []ciborgaws.Option{
		ciborgaws.WithClient(fake),
		ciborgaws.WithPollInterval(time.Millisecond),
		ciborgaws.WithConsistencyRetry(3, time.Millisecond),
	}
	return a, out
}

// runFake runs one command against fake with an empty config file
func runFake(t *testing.T, fake *awstest.EC2, input string, args ...string) (string, error) {
	t.Helper()
	a, out := fakeApp(fake, input)
	args = append(args, "--config", writeConfig(t, ""), "--region", fake.Region)
	err := runCmd(t, a, args...)
	return out.String(), err
}

func writePublicKey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519.pub")
	require.NoError(t, os.WriteFile(path, ssh.MarshalAuthorizedKey(key), 0o600))
	return path
}

func ciborgTag() types.Tag {
	return types.Tag{Key: aws.String(ciborgaws.TagKeyVersion), Value: aws.String(version.Get().Version)}
}

func TestSetupCmd(t *testing.T) {
	fake := awstest.NewEC2()
	key := writePublicKey(t)

	out, err := runFake(t, fake, "", "setup", "--public-key", key)
	require.NoError(t, err)
	assert.Contains(t, out, "Security group ciborg")
	assert.Contains(t, out, "Key pair ciborg: ssh-ed25519")
	assert.Equal(t, 1, fake.GroupCount())
	assert.Equal(t, 2, fake.CallCount("AuthorizeSecurityGroupIngress"))
	assert.Equal(t, 1, fake.CallCount("ImportKeyPair"))

	_, err = runFake(t, fake, "", "setup", "--public-key", key)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.CallCount("CreateSecurityGroup"))
	assert.Equal(t, 1, fake.CallCount("ImportKeyPair"))

	out, err = runFake(t, fake, "", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "ciborg")

	out, err = runFake(t, fake, "", "teardown", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted key pair ciborg and security group ciborg.")
	assert.Zero(t, fake.GroupCount())
}

func TestLaunchAndListCmd(t *testing.T) {
	fake := awstest.NewEC2()

	out, err := runFake(t, fake, "", "launch", "--no-price", "--flavor", "c1.medium")
	require.NoError(t, err)
	assert.Contains(t, out, "Flavor:")
	assert.Contains(t, out, "c1.medium")
	assert.Contains(t, out, "Connect with: ssh ubuntu@203.0.113.")
	assert.Equal(t, 1, fake.CallCount("RunInstances"))
	assert.Equal(t, 1, fake.CallCount("AllocateAddress"))

	out, err = runFake(t, fake, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 1 instances (1 running)")
}

func TestLaunchCmdHaltedInstance(t *testing.T) {
	fake := awstest.NewEC2()
	fake.HaltTo = types.InstanceStateNameStopped

	_, err := runFake(t, fake, "", "launch", "--no-price")
	require.ErrorIs(t, err, ciborgaws.ErrProvider)
	assert.Contains(t, err.Error(), "ciborg destroy i-")
}

func TestDestroyAllCmd(t *testing.T) {
	fake := awstest.NewEC2()
	first := fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())
	second := fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())
	foreign := fake.AddInstance(types.InstanceStateNameRunning)

	out, err := runFake(t, fake, "y\nn\n", "destroy", "--all")
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "[y/N]"))
	assert.Contains(t, out, "Terminate i-")
	assert.Contains(t, out, "Total: 1 terminating, 1 kept, 0 failed")

	states := []types.InstanceStateName{fake.State(first), fake.State(second)}
	assert.ElementsMatch(t, []types.InstanceStateName{
		types.InstanceStateNameShuttingDown,
		types.InstanceStateNameRunning,
	}, states)
	assert.Equal(t, types.InstanceStateNameRunning, fake.State(foreign))
}

func TestDestroyCmdMissingInstance(t *testing.T) {
	fake := awstest.NewEC2()
	live := fake.AddInstance(types.InstanceStateNameRunning, ciborgTag())

	out, err := runFake(t, fake, "", "destroy", "--yes", live, "i-gone")
	require.ErrorIs(t, err, ciborgaws.ErrNotFound)

	assert.Contains(t, out, live)
	assert.Contains(t, out, "terminating")
	assert.Contains(t, out, "i-gone")
	assert.Contains(t, out, "Total: 1 terminating, 0 kept, 1 failed")
	assert.Equal(t, types.InstanceStateNameShuttingDown, fake.State(live))
}

func TestAddressCmd(t *testing.T) {
	fake := awstest.NewEC2()

	out, err := runFake(t, fake, "", "address")
	require.NoError(t, err)
	assert.Contains(t, out, "No Elastic IPs allocated.")

	out, err = runFake(t, fake, "", "address", "--allocate")
	require.NoError(t, err)
	assert.Contains(t, out, "Elastic IP 203.0.113.")
	assert.Contains(t, out, "Set elastic_ip:")
	assert.Equal(t, 1, fake.CallCount("AllocateAddress"))

	out, err = runFake(t, fake, "", "address")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 1 addresses (1 unattached)")
}

func TestReleaseCmd(t *testing.T) {
	fake := awstest.NewEC2()
	allocated, err := fake.AllocateAddress(t.Context(), &ec2.AllocateAddressInput{})
	require.NoError(t, err)
	ip := aws.ToString(allocated.PublicIp)

	out, err := runFake(t, fake, "n\n", "release", ip)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing released.")
	assert.Zero(t, fake.CallCount("ReleaseAddress"))

	out, err = runFake(t, fake, "y\n", "release", ip)
	require.NoError(t, err)
	assert.Contains(t, out, "Released "+ip+".")
	assert.Equal(t, 1, fake.CallCount("ReleaseAddress"))

	_, err = runFake(t, fake, "", "release", "--yes", ip)
	require.ErrorIs(t, err, ciborgaws.ErrNotFound)
}
