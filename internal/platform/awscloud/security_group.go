package awscloud

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/rayform/internal/util/labels"
)

// ProtocolAll matches every protocol and port.
const ProtocolAll = "-1"

// EnsureSecurityGroup ensures a security group exists whose rules equal
// opts.Ingress and opts.Egress. Missing rules are authorized and extra rules
// revoked; nothing is called when the rules already match.
func (c *RealClient) EnsureSecurityGroup(ctx context.Context, opts SecurityGroupOpts) (*SecurityGroup, error) {
	return (&EnsureOperation[*SecurityGroup]{
		Name:         opts.Name,
		ResourceType: "security group",
		Get:          c.GetSecurityGroup,
		Validate: func(sg *SecurityGroup) error {
			if sg.VPCID != opts.VPCID {
				return fmt.Errorf("security group %s belongs to vpc %s, want %s", opts.Name, sg.VPCID, opts.VPCID)
			}
			return nil
		},
		Create: func(ctx context.Context) (*SecurityGroup, error) {
			description := opts.Description
			if description == "" {
				description = opts.Name
			}
			out, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
				GroupName:         aws.String(opts.Name),
				Description:       aws.String(description),
				VpcId:             aws.String(opts.VPCID),
				TagSpecifications: labels.Specification(types.ResourceTypeSecurityGroup, withName(opts.Tags, opts.Name)),
			})
			if err != nil {
				return nil, err
			}
			// New groups carry provider default rules; read them back before diffing.
			desc, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
				GroupIds: []string{aws.ToString(out.GroupId)},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to read new security group: %w", err)
			}
			if len(desc.SecurityGroups) == 0 {
				return nil, fmt.Errorf("security group %s vanished after creation", aws.ToString(out.GroupId))
			}
			sg := securityGroupFromEC2(desc.SecurityGroups[0])
			return sg, c.reconcileRules(ctx, sg, opts)
		},
		Update: func(ctx context.Context, sg *SecurityGroup) (*SecurityGroup, error) {
			return sg, c.reconcileRules(ctx, sg, opts)
		},
	}).Execute(ctx, c)
}

// reconcileRules brings both rule sets of sg to the desired state and
// updates sg to match.
func (c *RealClient) reconcileRules(ctx context.Context, sg *SecurityGroup, opts SecurityGroupOpts) error {
	addIn, delIn := DiffPermissions(sg.Ingress, opts.Ingress)
	addOut, delOut := DiffPermissions(sg.Egress, opts.Egress)

	if len(addIn) > 0 {
		if _, err := c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(sg.ID),
			IpPermissions: toIPPermissions(addIn),
		}); err != nil && !IsDuplicate(err) {
			return fmt.Errorf("failed to authorize ingress: %w", err)
		}
	}
	if len(delIn) > 0 {
		if _, err := c.ec2.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       aws.String(sg.ID),
			IpPermissions: toIPPermissions(delIn),
		}); err != nil && !isErrorCode(err, codeMissingPermission) {
			return fmt.Errorf("failed to revoke ingress: %w", err)
		}
	}
	if len(addOut) > 0 {
		if _, err := c.ec2.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       aws.String(sg.ID),
			IpPermissions: toIPPermissions(addOut),
		}); err != nil && !IsDuplicate(err) {
			return fmt.Errorf("failed to authorize egress: %w", err)
		}
	}
	if len(delOut) > 0 {
		if _, err := c.ec2.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
			GroupId:       aws.String(sg.ID),
			IpPermissions: toIPPermissions(delOut),
		}); err != nil && !isErrorCode(err, codeMissingPermission) {
			return fmt.Errorf("failed to revoke egress: %w", err)
		}
	}

	sg.Ingress = normalizePermissions(opts.Ingress)
	sg.Egress = normalizePermissions(opts.Egress)
	return nil
}

// GetSecurityGroup returns the security group with the given name, or nil.
func (c *RealClient) GetSecurityGroup(ctx context.Context, name string) (*SecurityGroup, error) {
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{Filters: nameFilters(name)})
	if err != nil {
		return nil, err
	}
	if len(out.SecurityGroups) == 0 {
		return nil, nil
	}
	return securityGroupFromEC2(out.SecurityGroups[0]), nil
}

// DeleteSecurityGroup deletes the security group with the given name.
// It retries while terminating instances still reference the group.
func (c *RealClient) DeleteSecurityGroup(ctx context.Context, name string) error {
	return (&DeleteOperation[*SecurityGroup]{
		Name:         name,
		ResourceType: "security group",
		Get:          c.GetSecurityGroup,
		Delete: func(ctx context.Context, sg *SecurityGroup) error {
			_, err := c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(sg.ID)})
			return err
		},
	}).Execute(ctx, c)
}

// DiffPermissions returns the rules in want missing from have, and the rules
// in have absent from want.
func DiffPermissions(have, want []Permission) (add, remove []Permission) {
	haveSet := make(map[Permission]bool, len(have))
	for _, p := range normalizePermissions(have) {
		haveSet[p] = true
	}
	wantSet := make(map[Permission]bool, len(want))
	for _, p := range normalizePermissions(want) {
		wantSet[p] = true
		if !haveSet[p] {
			add = append(add, p)
		}
	}
	for _, p := range normalizePermissions(have) {
		if !wantSet[p] {
			remove = append(remove, p)
		}
	}
	return add, remove
}

// normalizePermissions zeroes ports on all-traffic rules, drops duplicates
// and sorts the result.
func normalizePermissions(perms []Permission) []Permission {
	seen := make(map[Permission]bool, len(perms))
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if p.Protocol == ProtocolAll {
			p.FromPort, p.ToPort = 0, 0
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		if a.FromPort != b.FromPort {
			return a.FromPort < b.FromPort
		}
		if a.ToPort != b.ToPort {
			return a.ToPort < b.ToPort
		}
		return a.CIDR < b.CIDR
	})
	return out
}

func toIPPermissions(perms []Permission) []types.IpPermission {
	out := make([]types.IpPermission, 0, len(perms))
	for _, p := range perms {
		ip := types.IpPermission{
			IpProtocol: aws.String(p.Protocol),
			IpRanges:   []types.IpRange{{CidrIp: aws.String(p.CIDR)}},
		}
		if p.Protocol != ProtocolAll {
			ip.FromPort = aws.Int32(p.FromPort)
			ip.ToPort = aws.Int32(p.ToPort)
		}
		out = append(out, ip)
	}
	return out
}

// fromIPPermissions flattens EC2 permissions into one rule per IPv4 range.
// IPv6 ranges and group references are not managed and are skipped.
func fromIPPermissions(perms []types.IpPermission) []Permission {
	var out []Permission
	for _, p := range perms {
		for _, r := range p.IpRanges {
			out = append(out, Permission{
				Protocol: aws.ToString(p.IpProtocol),
				FromPort: aws.ToInt32(p.FromPort),
				ToPort:   aws.ToInt32(p.ToPort),
				CIDR:     aws.ToString(r.CidrIp),
			})
		}
	}
	return normalizePermissions(out)
}

func securityGroupFromEC2(sg types.SecurityGroup) *SecurityGroup {
	tags := labels.FromEC2(sg.Tags)
	return &SecurityGroup{
		ID:      aws.ToString(sg.GroupId),
		Name:    aws.ToString(sg.GroupName),
		VPCID:   aws.ToString(sg.VpcId),
		Ingress: fromIPPermissions(sg.IpPermissions),
		Egress:  fromIPPermissions(sg.IpPermissionsEgress),
		Tags:    tags,
	}
}
