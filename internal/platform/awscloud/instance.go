package awscloud

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/rayform/internal/util/labels"
	"github.com/imamik/rayform/internal/util/retry"
)

// liveStates are the instance states that still hold a name. Instances that
// are shutting down or terminated are invisible to lookups.
var liveStates = []string{
	string(types.InstanceStateNamePending),
	string(types.InstanceStateNameRunning),
	string(types.InstanceStateNameStopping),
	string(types.InstanceStateNameStopped),
}

func liveFilter() types.Filter {
	return types.Filter{Name: aws.String("instance-state-name"), Values: liveStates}
}

// EnsureInstance returns the live instance named opts.Name. If none exists one
// is launched, and the call blocks until it is running with a private address.
func (c *RealClient) EnsureInstance(ctx context.Context, opts InstanceCreateOpts) (*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.InstanceCreate)
	defer cancel()

	return (&EnsureOperation[*Instance]{
		Name:         opts.Name,
		ResourceType: "instance",
		Get:          c.GetInstance,
		Update: func(ctx context.Context, inst *Instance) (*Instance, error) {
			if inst.State == string(types.InstanceStateNameRunning) && inst.PrivateIP != "" {
				return inst, nil
			}
			return c.waitForInstance(ctx, inst.ID)
		},
		Create: func(ctx context.Context) (*Instance, error) {
			id, err := c.runInstanceWithRetry(ctx, opts)
			if err != nil {
				return nil, err
			}
			return c.waitForInstance(ctx, id)
		},
	}).Execute(ctx, c)
}

// runInstanceWithRetry launches a single instance and returns its id.
// Throttling and capacity errors are retried; malformed requests are not.
func (c *RealClient) runInstanceWithRetry(ctx context.Context, opts InstanceCreateOpts) (string, error) {
	in := &ec2.RunInstancesInput{
		ImageId:           aws.String(opts.ImageID),
		InstanceType:      types.InstanceType(opts.InstanceType),
		MinCount:          aws.Int32(1),
		MaxCount:          aws.Int32(1),
		SubnetId:          aws.String(opts.SubnetID),
		SecurityGroupIds:  opts.SecurityGroupIDs,
		TagSpecifications: labels.Specification(types.ResourceTypeInstance, withName(opts.Tags, opts.Name)),
	}
	if opts.KeyName != "" {
		in.KeyName = aws.String(opts.KeyName)
	}
	if opts.UserData != "" {
		in.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(opts.UserData)))
	}

	var id string
	err := retry.WithExponentialBackoff(ctx, func() error {
		out, err := c.ec2.RunInstances(ctx, in)
		if err != nil {
			if isInvalidParameter(err) || IsNotFound(err) {
				return retry.Fatal(err)
			}
			return err
		}
		if len(out.Instances) == 0 {
			return retry.Fatal(fmt.Errorf("no instance returned"))
		}
		id = aws.ToString(out.Instances[0].InstanceId)
		return nil
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		return "", fmt.Errorf("failed to run instance %s: %w", opts.Name, err)
	}
	return id, nil
}

// waitForInstance blocks until the instance is running and has been given a
// private address.
func (c *RealClient) waitForInstance(ctx context.Context, id string) (*Instance, error) {
	waiter := ec2.NewInstanceRunningWaiter(c.ec2, func(o *ec2.InstanceRunningWaiterOptions) {
		o.MinDelay = 2 * time.Second
		o.MaxDelay = 15 * time.Second
	})
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}}, c.timeouts.InstanceCreate); err != nil {
		return nil, fmt.Errorf("failed to wait for instance %s to run: %w", id, err)
	}
	return c.waitForAddress(ctx, id)
}

// waitForAddress polls until the instance reports a private address.
func (c *RealClient) waitForAddress(ctx context.Context, id string) (*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.InstanceIP)
	defer cancel()

	var inst *Instance
	err := retry.WithExponentialBackoff(ctx, func() error {
		out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
		if err != nil {
			return err
		}
		found := instancesFromEC2(out)
		if len(found) == 0 || found[0].PrivateIP == "" {
			return fmt.Errorf("instance %s has no private address yet", id)
		}
		inst = found[0]
		return nil
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// GetInstance returns the live instance with the given name, or nil.
func (c *RealClient) GetInstance(ctx context.Context, name string) (*Instance, error) {
	out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: append(nameFilters(name), liveFilter()),
	})
	if err != nil {
		return nil, err
	}
	found := instancesFromEC2(out)
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// GetInstanceUserData returns the decoded user data of the named instance.
func (c *RealClient) GetInstanceUserData(ctx context.Context, name string) (string, error) {
	inst, err := c.GetInstance(ctx, name)
	if err != nil || inst == nil {
		return "", err
	}
	out, err := c.ec2.DescribeInstanceAttribute(ctx, &ec2.DescribeInstanceAttributeInput{
		InstanceId: aws.String(inst.ID),
		Attribute:  types.InstanceAttributeNameUserData,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read user data of %s: %w", name, err)
	}
	if out.UserData == nil || out.UserData.Value == nil {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(aws.ToString(out.UserData.Value))
	if err != nil {
		return "", fmt.Errorf("failed to decode user data of %s: %w", name, err)
	}
	return string(raw), nil
}

// ListInstances returns live instances carrying all tags, sorted by name.
func (c *RealClient) ListInstances(ctx context.Context, tags map[string]string) ([]*Instance, error) {
	var found []*Instance
	p := ec2.NewDescribeInstancesPaginator(c.ec2, &ec2.DescribeInstancesInput{
		Filters: append(tagFilters(tags), liveFilter()),
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list instances: %w", err)
		}
		found = append(found, instancesFromEC2(out)...)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

// DeleteInstance terminates the instance with the given name and waits
// until it is gone.
func (c *RealClient) DeleteInstance(ctx context.Context, name string) error {
	inst, err := c.GetInstance(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get instance: %w", err)
	}
	if inst == nil {
		return nil
	}
	if err := c.terminateInstances(ctx, []string{inst.ID}); err != nil {
		return fmt.Errorf("failed to delete instance %s: %w", name, err)
	}
	return nil
}

// terminateInstances terminates ids and waits for all of them to reach the
// terminated state.
func (c *RealClient) terminateInstances(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := retry.WithExponentialBackoff(ctx, func() error {
		_, err := c.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids})
		switch {
		case err == nil, IsNotFound(err):
			return nil
		case IsRateLimited(err):
			return err
		default:
			return retry.Fatal(err)
		}
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		return err
	}

	waiter := ec2.NewInstanceTerminatedWaiter(c.ec2, func(o *ec2.InstanceTerminatedWaiterOptions) {
		o.MinDelay = 2 * time.Second
		o.MaxDelay = 15 * time.Second
	})
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids}, c.timeouts.InstanceTerminate); err != nil {
		return fmt.Errorf("failed to wait for termination: %w", err)
	}
	return nil
}

func instancesFromEC2(out *ec2.DescribeInstancesOutput) []*Instance {
	var found []*Instance
	for _, r := range out.Reservations {
		for _, i := range r.Instances {
			found = append(found, instanceFromEC2(i))
		}
	}
	return found
}

func instanceFromEC2(i types.Instance) *Instance {
	tags := labels.FromEC2(i.Tags)
	inst := &Instance{
		ID:           aws.ToString(i.InstanceId),
		Name:         tags[labels.KeyName],
		InstanceType: string(i.InstanceType),
		ImageID:      aws.ToString(i.ImageId),
		KeyName:      aws.ToString(i.KeyName),
		SubnetID:     aws.ToString(i.SubnetId),
		PrivateIP:    aws.ToString(i.PrivateIpAddress),
		PublicIP:     aws.ToString(i.PublicIpAddress),
		Tags:         tags,
	}
	if i.State != nil {
		inst.State = string(i.State.Name)
	}
	return inst
}
