package models

// PortRule is a single ingress permission of a security group
type PortRule struct {
	Protocol string
	FromPort int
	ToPort   int
	CIDR     string
}

// Covers reports whether the rule admits TCP traffic on port
func (r PortRule) Covers(port int) bool {
	if r.Protocol != "tcp" && r.Protocol != "-1" {
		return false
	}
	return r.FromPort <= port && port <= r.ToPort
}

// SecurityGroupInfo represents a security group and its ingress rules
type SecurityGroupInfo struct {
	GroupID     string
	Name        string
	Description string
	Rules       []PortRule
	Region      string
}

// OpenPorts returns the single ports opened by the group's rules, in rule order
func (g SecurityGroupInfo) OpenPorts() []int {
	var ports []int
	for _, rule := range g.Rules {
		if rule.FromPort == rule.ToPort {
			ports = append(ports, rule.FromPort)
		}
	}
	return ports
}

// Allows reports whether any rule admits TCP traffic on port
func (g SecurityGroupInfo) Allows(port int) bool {
	for _, rule := range g.Rules {
		if rule.Covers(port) {
			return true
		}
	}
	return false
}
