package awscloud

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/rayform/pkg/cloud/fakes"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		err        error
		notFound   bool
		dependency bool
		rateLimit  bool
		duplicate  bool
		retryable  bool
	}{
		{name: "nil", err: nil},
		{name: "plain error", err: errors.New("boom")},
		{name: "vpc not found", err: fakes.APIError("InvalidVpcID.NotFound", "x"), notFound: true},
		{name: "wrapped not found", err: fmt.Errorf("get: %w", fakes.APIError("InvalidGroup.NotFound", "x")), notFound: true},
		{name: "dependency", err: fakes.APIError("DependencyViolation", "x"), dependency: true, retryable: true},
		{name: "throttled", err: fakes.APIError("RequestLimitExceeded", "x"), rateLimit: true, retryable: true},
		{name: "duplicate rule", err: fakes.APIError("InvalidPermission.Duplicate", "x"), duplicate: true},
		{name: "route exists", err: fakes.APIError("RouteAlreadyExists", "x"), duplicate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.dependency, IsDependencyViolation(tt.err))
			assert.Equal(t, tt.rateLimit, IsRateLimited(tt.err))
			assert.Equal(t, tt.duplicate, IsDuplicate(tt.err))
			assert.Equal(t, tt.retryable, isRetryable(tt.err))
		})
	}
}

func TestIsInvalidParameter(t *testing.T) {
	t.Parallel()
	assert.True(t, isInvalidParameter(fakes.APIError("InvalidParameterValue", "bad cidr")))
	assert.False(t, isInvalidParameter(fakes.APIError("DependencyViolation", "x")))
}
