package labels

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()
	tags := NewLabelBuilder("ray-poc").Build()

	assert.Equal(t, "ray-poc", tags[KeyDeployment])
	assert.Equal(t, ManagedByRayform, tags[KeyManagedBy])
	assert.Len(t, tags, 2)
}

func TestLabelBuilder_Chaining(t *testing.T) {
	t.Parallel()
	tags := NewLabelBuilder("ray-poc").
		WithName("ray-poc-worker-2").
		WithRole(RoleWorker).
		WithIndex("2").
		Merge(map[string]string{"team": "ml"}).
		Build()

	assert.Equal(t, map[string]string{
		KeyDeployment: "ray-poc",
		KeyManagedBy:  ManagedByRayform,
		KeyName:       "ray-poc-worker-2",
		KeyRole:       RoleWorker,
		KeyIndex:      "2",
		"team":        "ml",
	}, tags)
}

func TestBuild_ReturnsCopy(t *testing.T) {
	t.Parallel()
	lb := NewLabelBuilder("ray-poc")
	first := lb.Build()
	first["mutated"] = "yes"

	assert.NotContains(t, lb.Build(), "mutated")
}

func TestToEC2_SortedAndRoundTrips(t *testing.T) {
	t.Parallel()
	in := map[string]string{"b": "2", "a": "1", KeyName: "n"}
	tags := ToEC2(in)

	require.Len(t, tags, 3)
	assert.Equal(t, KeyName, aws.ToString(tags[0].Key))
	assert.Equal(t, "a", aws.ToString(tags[1].Key))
	assert.Equal(t, in, FromEC2(tags))
}

func TestSpecification(t *testing.T) {
	t.Parallel()
	spec := Specification(types.ResourceTypeVpc, map[string]string{KeyName: "ray-poc-vpc"})

	require.Len(t, spec, 1)
	assert.Equal(t, types.ResourceTypeVpc, spec[0].ResourceType)
	assert.Equal(t, "ray-poc-vpc", aws.ToString(spec[0].Tags[0].Value))
}

func TestFilters(t *testing.T) {
	t.Parallel()
	f := FilterDeployment("ray-poc")
	assert.Equal(t, "tag:"+KeyDeployment, aws.ToString(f.Name))
	assert.Equal(t, []string{"ray-poc"}, f.Values)

	f = FilterName("ray-poc-head")
	assert.Equal(t, "tag:Name", aws.ToString(f.Name))
	assert.Equal(t, []string{"ray-poc-head"}, f.Values)
}
