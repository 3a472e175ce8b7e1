package awscloud

import (
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/rayform/internal/util/labels"
)

// withName returns a copy of tags with the Name tag set.
func withName(tags map[string]string, name string) map[string]string {
	out := make(map[string]string, len(tags)+1)
	maps.Copy(out, tags)
	out[labels.KeyName] = name
	return out
}

// tagFilters converts tags into EC2 tag filters, sorted by key.
func tagFilters(tags map[string]string) []types.Filter {
	keys := slices.Sorted(maps.Keys(tags))
	filters := make([]types.Filter, 0, len(keys))
	for _, k := range keys {
		filters = append(filters, types.Filter{
			Name:   aws.String("tag:" + k),
			Values: []string{tags[k]},
		})
	}
	return filters
}

func nameFilters(name string) []types.Filter {
	return []types.Filter{labels.FilterName(name)}
}
