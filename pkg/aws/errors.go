package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	// ErrAuthentication means the provider rejected the session's credentials
	ErrAuthentication = errors.New("authentication failed")

	// ErrConfiguration means the request can never succeed as configured,
	// e.g. a region with no image mapping
	ErrConfiguration = errors.New("invalid configuration")

	// ErrLaunchTimeout means an instance did not reach the running state in time.
	// The instance may still be pending on the provider side.
	ErrLaunchTimeout = errors.New("timed out waiting for instance to run")

	// ErrAlreadyExists is returned by the provider when creating a duplicate
	// group, key pair or ingress rule
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrNotFound is returned by the provider for a resource it does not know,
	// which includes resources created moments ago
	ErrNotFound = errors.New("resource not found")

	// ErrProvider covers every other failed provider call
	ErrProvider = errors.New("provider request failed")
)

var sentinels = []error{
	ErrAuthentication,
	ErrConfiguration,
	ErrLaunchTimeout,
	ErrAlreadyExists,
	ErrNotFound,
	ErrProvider,
}

var authErrorCodes = map[string]bool{
	"AuthFailure":                 true,
	"InvalidClientTokenId":        true,
	"SignatureDoesNotMatch":       true,
	"UnrecognizedClientException": true,
	"MissingAuthenticationToken":  true,
	"OptInRequired":               true,
}

var duplicateErrorCodes = map[string]bool{
	"InvalidGroup.Duplicate":      true,
	"InvalidKeyPair.Duplicate":    true,
	"InvalidPermission.Duplicate": true,
}

var notFoundErrorCodes = map[string]bool{
	"InvalidGroup.NotFound":        true,
	"InvalidKeyPair.NotFound":      true,
	"InvalidInstanceID.NotFound":   true,
	"InvalidAddress.NotFound":      true,
	"InvalidAllocationID.NotFound": true,
}

// classify tags a provider error with the matching sentinel so callers can
// use errors.Is. Context errors and already classified errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case authErrorCodes[code]:
			return fmt.Errorf("%w: %w", ErrAuthentication, err)
		case duplicateErrorCodes[code]:
			return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
		case notFoundErrorCodes[code]:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrProvider, err)
}
