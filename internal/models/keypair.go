package models

// KeyPairInfo represents an SSH key pair registered with EC2
type KeyPairInfo struct {
	KeyPairID   string
	Name        string
	Fingerprint string
	Region      string
}
