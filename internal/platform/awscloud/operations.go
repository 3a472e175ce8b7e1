package awscloud

import (
	"context"
	"fmt"
	"reflect"

	"github.com/imamik/rayform/internal/util/retry"
)

// DeleteOperation encapsulates deletion logic for any EC2 resource.
// It provides consistent retry, timeout, and error handling across all resource types.
//
// Usage example:
//
//	func (c *RealClient) DeleteSubnet(ctx context.Context, name string) error {
//	    return (&DeleteOperation[*Subnet]{
//	        Name:         name,
//	        ResourceType: "subnet",
//	        Get:          c.GetSubnet,
//	        Delete: func(ctx context.Context, s *Subnet) error {
//	            _, err := c.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(s.ID)})
//	            return err
//	        },
//	    }).Execute(ctx, c)
//	}
type DeleteOperation[T any] struct {
	Name         string
	ResourceType string

	// Get retrieves the resource by name. A nil result means it is gone.
	Get func(ctx context.Context, name string) (T, error)

	// Delete removes the resource
	Delete func(ctx context.Context, resource T) error
}

// Execute performs the delete operation with retry logic and timeout handling.
// The operation is idempotent - it succeeds if the resource doesn't exist.
// Dependency violations and throttling are retried with exponential backoff.
func (op *DeleteOperation[T]) Execute(ctx context.Context, client *RealClient) error {
	ctx, cancel := context.WithTimeout(ctx, client.timeouts.Delete)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		resource, err := op.Get(ctx, op.Name)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return retry.Fatal(fmt.Errorf("failed to get %s: %w", op.ResourceType, err))
		}

		if isNil(resource) {
			return nil
		}

		err = op.Delete(ctx, resource)
		switch {
		case err == nil, IsNotFound(err):
			return nil
		case isRetryable(err):
			return err
		default:
			return retry.Fatal(fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.Name, err))
		}
	},
		retry.WithMaxRetries(client.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(client.timeouts.RetryInitialDelay))
}

// EnsureOperation encapsulates get-or-create logic for any EC2 resource.
// It supports optional update and validation logic for existing resources.
//
// Ensure with validation:
//
//	EnsureOperation[*Subnet]{
//	    // ... other fields
//	    Validate: func(s *Subnet) error {
//	        if s.CIDR != opts.CIDR {
//	            return fmt.Errorf("subnet exists with different CIDR")
//	        }
//	        return nil
//	    },
//	}
//
// Update receives the existing resource and must only issue calls for
// attributes that drifted, so that repeated ensures are free of mutations.
type EnsureOperation[T any] struct {
	Name         string
	ResourceType string

	// Get retrieves the resource by name. A nil result means it does not exist.
	Get func(ctx context.Context, name string) (T, error)

	// Create creates the resource
	Create func(ctx context.Context) (T, error)

	// Validate checks if existing resource matches desired state (optional)
	Validate func(resource T) error

	// Update reconciles an existing resource (optional). It returns the
	// resource as it is after the update.
	Update func(ctx context.Context, resource T) (T, error)
}

// Execute performs the ensure operation: get existing resource, update/validate if needed, or create new.
func (op *EnsureOperation[T]) Execute(ctx context.Context, _ *RealClient) (T, error) {
	var zero T

	resource, err := op.Get(ctx, op.Name)
	if err != nil {
		return zero, fmt.Errorf("failed to get %s: %w", op.ResourceType, err)
	}

	if !isNil(resource) {
		if op.Validate != nil {
			if err := op.Validate(resource); err != nil {
				return zero, err
			}
		}

		if op.Update != nil {
			updated, err := op.Update(ctx, resource)
			if err != nil {
				return zero, fmt.Errorf("failed to update %s: %w", op.ResourceType, err)
			}
			return updated, nil
		}

		return resource, nil
	}

	created, err := op.Create(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to create %s: %w", op.ResourceType, err)
	}
	return created, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
