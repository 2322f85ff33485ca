package models

import "time"

// InstanceInfo represents a CI instance as reported by EC2
type InstanceInfo struct {
	InstanceID       string
	Name             string
	ImageID          string
	Flavor           string
	KeyName          string
	SecurityGroups   []string
	Tags             map[string]string
	State            string // "pending", "running", "stopping", "stopped", "shutting-down" or "terminated"
	PublicIP         string
	Region           string
	AvailabilityZone string
	LaunchTime       time.Time
}

// Running reports whether EC2 has the instance in the running state
func (i InstanceInfo) Running() bool {
	return i.State == "running"
}

// Gone reports whether the instance is on its way out or already terminated
func (i InstanceInfo) Gone() bool {
	return i.State == "shutting-down" || i.State == "terminated"
}

// Halted reports whether the instance is stopping or stopped
func (i InstanceInfo) Halted() bool {
	return i.State == "stopping" || i.State == "stopped"
}
