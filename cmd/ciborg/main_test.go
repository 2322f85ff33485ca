package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pivotal/ciborg/internal/models"
	ciborgaws "github.com/pivotal/ciborg/pkg/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(input string) (*app, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(input), &out, &errOut)
	a.metadata = nil
	return a, &out
}

func runCmd(t *testing.T, a *app, args ...string) error {
	t.Helper()
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(t.Context())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"sure\n", false},
	}
	for _, tt := range tests {
		a, out := testApp(tt.input)
		assert.Equal(t, tt.want, a.confirm("Proceed?"), "input %q", tt.input)
		assert.Contains(t, out.String(), "Proceed? [y/N]")
	}
}

func TestConfirmInstance(t *testing.T) {
	a, out := testApp("y\nn\n")
	instance := models.InstanceInfo{InstanceID: "i-1", Flavor: "t1.micro", State: "running", PublicIP: "203.0.113.10"}

	assert.True(t, a.confirmInstance(instance))
	assert.False(t, a.confirmInstance(instance))
	assert.Contains(t, out.String(), "Terminate i-1 (t1.micro, running, 203.0.113.10)?")
}

func TestDestroyTarget(t *testing.T) {
	target, err := destroyTarget(true, nil)
	require.NoError(t, err)
	assert.True(t, target.All())

	target, err = destroyTarget(false, []string{"all"})
	require.NoError(t, err)
	assert.True(t, target.All())

	target, err = destroyTarget(false, []string{"i-1", "i-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"i-1", "i-2"}, target.IDs())

	_, err = destroyTarget(true, []string{"i-1"})
	require.ErrorIs(t, err, ciborgaws.ErrConfiguration)

	_, err = destroyTarget(false, nil)
	require.ErrorIs(t, err, ciborgaws.ErrConfiguration)
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG"} {
		_, err := parseLogLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := parseLogLevel("loud")
	assert.Error(t, err)
}

func TestLaunchError(t *testing.T) {
	base := errors.New("boom")
	assert.Same(t, base, launchError(nil, base))

	err := launchError(&models.InstanceInfo{InstanceID: "i-1"}, base)
	require.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "ciborg destroy i-1")

	timeout := launchError(&models.InstanceInfo{InstanceID: "i-2"}, ciborgaws.ErrLaunchTimeout)
	require.ErrorIs(t, timeout, ciborgaws.ErrLaunchTimeout)
	assert.Contains(t, timeout.Error(), "may still start")
}

func TestVersionCmd(t *testing.T) {
	a, out := testApp("")
	require.NoError(t, runCmd(t, a, "version"))
	assert.Contains(t, out.String(), "ciborg version 0.1.0")
}

func TestRegionsCmd(t *testing.T) {
	a, out := testApp("")
	path := writeConfig(t, "images:\n  eu-central-1: ami-12345678\n")

	require.NoError(t, runCmd(t, a, "regions", "--config", path, "--region", "eu-central-1"))

	var marked string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "*") {
			marked = line
		}
	}
	assert.Contains(t, marked, "eu-central-1")
	assert.Contains(t, marked, "ami-12345678")
	assert.Contains(t, out.String(), "ami-a29943cb")
}

func TestInvalidConfigRejected(t *testing.T) {
	a, _ := testApp("")
	path := writeConfig(t, "ports: [0]\n")

	err := runCmd(t, a, "list", "--config", path, "--region", "us-east-1")
	require.ErrorIs(t, err, ciborgaws.ErrConfiguration)
}

func TestInvalidLogLevelRejected(t *testing.T) {
	a, _ := testApp("")
	err := runCmd(t, a, "regions", "--log-level", "loud", "--region", "us-east-1")
	require.Error(t, err)
}

func TestSetupRequiresPublicKey(t *testing.T) {
	a, _ := testApp("")
	path := writeConfig(t, "public_key: "+filepath.Join(t.TempDir(), "missing.pub")+"\n")

	err := runCmd(t, a, "setup", "--config", path, "--region", "us-east-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read public key")
}

func TestTeardownDeclined(t *testing.T) {
	a, out := testApp("n\n")
	path := writeConfig(t, "key_pair: ci\nsecurity_group: ci-group\n")

	require.NoError(t, runCmd(t, a, "teardown", "--config", path, "--region", "us-east-1"))
	assert.Contains(t, out.String(), "Delete key pair ci and security group ci-group?")
	assert.Contains(t, out.String(), "Nothing deleted.")
}

func TestSessionUsesResolvedRegion(t *testing.T) {
	a, _ := testApp("")
	a.region = "ap-southeast-2"
	a.cfg.ApplyDefaults()

	s := a.session(t.Context())
	assert.Equal(t, "ap-southeast-2", s.Region())
}
