package config

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/chainguard-dev/clog"
	"github.com/pivotal/ciborg/pkg/utils"
)

// RegionSource reports the region of the EC2 instance ciborg runs on
type RegionSource interface {
	GetRegion(ctx context.Context, params *imds.GetRegionInput, optFns ...func(*imds.Options)) (*imds.GetRegionOutput, error)
}

const metadataTimeout = 2 * time.Second

// ResolveRegion picks the region from, in order: the flag, the config
// file, AWS_REGION, the instance metadata service when metadata is not
// nil, and finally us-east-1.
func ResolveRegion(ctx context.Context, flag string, cfg Config, metadata RegionSource) string {
	for _, candidate := range []string{flag, cfg.Region, os.Getenv("AWS_REGION")} {
		if candidate != "" {
			return candidate
		}
	}

	if metadata != nil {
		ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
		defer cancel()

		out, err := metadata.GetRegion(ctx, &imds.GetRegionInput{})
		if err == nil && out.Region != "" {
			return out.Region
		}
		clog.FromContext(ctx).Debug("instance metadata region unavailable", "error", err)
	}

	return utils.GetDefaultRegion()
}
