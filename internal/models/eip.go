package models

// EIPInfo represents Elastic IP address information
type EIPInfo struct {
	AllocationID       string
	PublicIP           string
	AssociationID      string
	InstanceID         string
	NetworkInterfaceID string
	Region             string
}

// Attached reports whether the address is associated with an instance or interface
func (e EIPInfo) Attached() bool {
	return e.AssociationID != ""
}
