package aws

import (
	"fmt"
	"sort"
)

// ImageResolver maps a region to the image id instances are launched from
type ImageResolver func(region string) (string, error)

// defaultImages holds one Ubuntu 12.04 image per supported region
var defaultImages = map[string]string{
	"us-east-1":      "ami-a29943cb",
	"us-west-1":      "ami-87712ac2",
	"us-west-2":      "ami-20800c10",
	"eu-west-1":      "ami-e1e8d395",
	"ap-southeast-1": "ami-a4ca8df6",
	"ap-southeast-2": "ami-974ddead",
	"ap-northeast-1": "ami-60c77761",
	"sa-east-1":      "ami-8cd80691",
}

// DefaultImage resolves a region against the built-in image table
func DefaultImage(region string) (string, error) {
	return StaticImages(defaultImages)(region)
}

// DefaultImages returns a copy of the built-in region to image table
func DefaultImages() map[string]string {
	images := make(map[string]string, len(defaultImages))
	for region, ami := range defaultImages {
		images[region] = ami
	}
	return images
}

// StaticImages returns a resolver backed by a fixed table. Regions missing
// from the table fail with ErrConfiguration.
func StaticImages(table map[string]string) ImageResolver {
	return func(region string) (string, error) {
		ami, ok := table[region]
		if !ok || ami == "" {
			return "", fmt.Errorf("%w: no image configured for region %q", ErrConfiguration, region)
		}
		return ami, nil
	}
}

// SupportedRegions lists the regions of the built-in image table, sorted
func SupportedRegions() []string {
	regions := make([]string, 0, len(defaultImages))
	for region := range defaultImages {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}
