// Package sshkey reads OpenSSH public keys before they are imported into EC2.
package sshkey

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ErrUnsupportedKey is returned for key types EC2 cannot import
var ErrUnsupportedKey = errors.New("unsupported key type")

// supportedTypes are the key algorithms EC2 key pair import accepts
var supportedTypes = map[string]bool{
	ssh.KeyAlgoRSA:      true,
	ssh.KeyAlgoED25519:  true,
	ssh.KeyAlgoECDSA256: true,
	ssh.KeyAlgoECDSA384: true,
	ssh.KeyAlgoECDSA521: true,
}

// PublicKey is a parsed public key in authorized_keys format
type PublicKey struct {
	// Type is the key algorithm, e.g. ssh-ed25519
	Type string
	// Comment is the trailing comment of the authorized_keys line
	Comment string
	// Authorized is the key re-encoded as a single authorized_keys line
	Authorized string
	// Fingerprint is the SHA256 fingerprint as printed by ssh-keygen -l
	Fingerprint string
}

// Parse reads the first key of an authorized_keys formatted document
func Parse(data []byte) (*PublicKey, error) {
	key, comment, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	if !supportedTypes[key.Type()] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, key.Type())
	}

	authorized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
	if comment != "" {
		authorized += " " + comment
	}

	return &PublicKey{
		Type:        key.Type(),
		Comment:     comment,
		Authorized:  authorized,
		Fingerprint: ssh.FingerprintSHA256(key),
	}, nil
}

// ReadFile parses the public key stored at path
func ReadFile(path string) (*PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	key, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}
