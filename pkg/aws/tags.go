package aws

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pivotal/ciborg/internal/version"
	"github.com/pivotal/ciborg/pkg/utils"
)

const (
	// TagKeyVersion marks resources created by ciborg; its value is the ciborg version
	TagKeyVersion = "ciborg"

	// TagKeyName is the AWS console display name tag
	TagKeyName = "Name"

	// ProductName is the display name given to every launched instance
	ProductName = "Ciborg"
)

// ManagedTags returns the tags stamped on every resource ciborg creates
func ManagedTags() map[string]string {
	return map[string]string{
		TagKeyVersion: version.Get().Version,
		TagKeyName:    ProductName,
	}
}

func tagSpecification(rt types.ResourceType) []types.TagSpecification {
	return []types.TagSpecification{{
		ResourceType: rt,
		Tags:         utils.ConvertToEC2Tags(ManagedTags()),
	}}
}
