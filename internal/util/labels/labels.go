// Package labels provides consistent tagging utilities for AWS resources.
//
// Every resource created for a deployment carries the same tag set so it can be
// found again by tag lookup on the next apply and removed on destroy.
//
// Standard tag keys use the rayform.io domain prefix for namespacing.
package labels

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Standard tag keys.
const (
	// KeyName is the tag AWS consoles display as the resource name.
	KeyName = "Name"

	// KeyDeployment identifies which deployment a resource belongs to
	KeyDeployment = "rayform.io/deployment"

	// KeyRole identifies the role of an instance (head, worker)
	KeyRole = "rayform.io/role"

	// KeyIndex is the ordinal of a worker instance
	KeyIndex = "rayform.io/index"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "rayform.io/managed-by"
)

// Role values
const (
	RoleHead   = "head"
	RoleWorker = "worker"
)

// ManagedByRayform is the value of KeyManagedBy on every created resource.
const ManagedByRayform = "rayform"

// LabelBuilder provides a fluent interface for building resource tags.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new builder with the deployment name pre-set.
func NewLabelBuilder(deployment string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyDeployment: deployment,
			KeyManagedBy:  ManagedByRayform,
		},
	}
}

// WithName sets the Name tag.
func (lb *LabelBuilder) WithName(name string) *LabelBuilder {
	lb.labels[KeyName] = name
	return lb
}

// WithRole adds a role tag.
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithIndex adds the worker ordinal tag.
func (lb *LabelBuilder) WithIndex(index string) *LabelBuilder {
	lb.labels[KeyIndex] = index
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// ToEC2 converts a tag map into EC2 tags, sorted by key.
func ToEC2(tags map[string]string) []types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

// FromEC2 converts EC2 tags back into a map.
func FromEC2(tags []types.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}

// Specification wraps tags into a TagSpecification for a create call.
func Specification(resource types.ResourceType, tags map[string]string) []types.TagSpecification {
	return []types.TagSpecification{{
		ResourceType: resource,
		Tags:         ToEC2(tags),
	}}
}

// FilterDeployment returns the EC2 filter selecting every resource of a deployment.
func FilterDeployment(deployment string) types.Filter {
	return types.Filter{
		Name:   aws.String("tag:" + KeyDeployment),
		Values: []string{deployment},
	}
}

// FilterName returns the EC2 filter selecting resources by Name tag.
func FilterName(name string) types.Filter {
	return types.Filter{
		Name:   aws.String("tag:" + KeyName),
		Values: []string{name},
	}
}
