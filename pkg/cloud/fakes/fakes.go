// Package fakes provides an in-memory EC2 that honours the subset of the API
// rayform calls: tag filters, dependency checks on delete, duplicate rule
// detection and instance state.
package fakes

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/imamik/rayform/pkg/cloud"
)

var _ cloud.EC2API = (*FakeEC2)(nil)

// FakeEC2 simulates the EC2 control plane in memory.
type FakeEC2 struct {
	mu sync.Mutex

	VPCs           map[string]*types.Vpc
	VPCAttributes  map[string]map[string]bool
	Gateways       map[string]*types.InternetGateway
	Subnets        map[string]*types.Subnet
	RouteTables    map[string]*types.RouteTable
	SecurityGroups map[string]*types.SecurityGroup
	Instances      map[string]*types.Instance
	KeyPairs       map[string]*types.KeyPairInfo
	Images         []types.Image

	// UserData holds the raw (base64) user data passed to RunInstances, by instance id.
	UserData map[string]string

	// Calls records every API call name in order.
	Calls []string

	failures map[string]error
	nextID   int
	nextHost map[string]int
}

// NewFakeEC2 returns an empty fake with one public image registered.
func NewFakeEC2() *FakeEC2 {
	return &FakeEC2{
		VPCs:           make(map[string]*types.Vpc),
		VPCAttributes:  make(map[string]map[string]bool),
		Gateways:       make(map[string]*types.InternetGateway),
		Subnets:        make(map[string]*types.Subnet),
		RouteTables:    make(map[string]*types.RouteTable),
		SecurityGroups: make(map[string]*types.SecurityGroup),
		Instances:      make(map[string]*types.Instance),
		KeyPairs:       make(map[string]*types.KeyPairInfo),
		UserData:       make(map[string]string),
		Images: []types.Image{{
			ImageId:      aws.String("ami-003c463c8207b4dfa"),
			Name:         aws.String("ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-20240101"),
			OwnerId:      aws.String("099720109477"),
			CreationDate: aws.String("2024-01-01T00:00:00.000Z"),
			State:        types.ImageStateAvailable,
		}},
		failures: make(map[string]error),
		nextHost: make(map[string]int),
	}
}

// FailOn makes every subsequent call of op return err. A nil err clears it.
func (f *FakeEC2) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// CallCount returns how many times op was called.
func (f *FakeEC2) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == op {
			n++
		}
	}
	return n
}

// CallsSnapshot returns a copy of the call log.
func (f *FakeEC2) CallsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

// APIError builds a smithy API error the way the SDK surfaces service faults.
func APIError(code, msg string) error {
	return &smithy.GenericAPIError{Code: code, Message: msg}
}

// call must be invoked with f.mu held.
func (f *FakeEC2) call(op string) error {
	f.Calls = append(f.Calls, op)
	return f.failures[op]
}

func (f *FakeEC2) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%017x", prefix, f.nextID)
}

func tagsFromSpecs(specs []types.TagSpecification) []types.Tag {
	var out []types.Tag
	for _, s := range specs {
		out = append(out, s.Tags...)
	}
	return out
}

// matches evaluates EC2 filters against a resource's tags and named fields.
// Values support shell-style wildcards.
func matches(filters []types.Filter, tags []types.Tag, fields map[string][]string) bool {
	for _, flt := range filters {
		name := aws.ToString(flt.Name)
		var have []string
		if key, ok := strings.CutPrefix(name, "tag:"); ok {
			for _, t := range tags {
				if aws.ToString(t.Key) == key {
					have = append(have, aws.ToString(t.Value))
				}
			}
		} else {
			have = fields[name]
		}
		if !anyMatch(flt.Values, have) {
			return false
		}
	}
	return true
}

func anyMatch(patterns, values []string) bool {
	for _, p := range patterns {
		for _, v := range values {
			if ok, _ := path.Match(p, v); ok {
				return true
			}
		}
	}
	return false
}

func inIDs(ids []string, id string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- VPC ---

func (f *FakeEC2) CreateVpc(_ context.Context, in *ec2.CreateVpcInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateVpc"); err != nil {
		return nil, err
	}
	vpc := &types.Vpc{
		VpcId:     aws.String(f.id("vpc")),
		CidrBlock: in.CidrBlock,
		State:     types.VpcStateAvailable,
		Tags:      tagsFromSpecs(in.TagSpecifications),
	}
	f.VPCs[*vpc.VpcId] = vpc
	f.VPCAttributes[*vpc.VpcId] = map[string]bool{"enableDnsSupport": true, "enableDnsHostnames": false}

	// Every VPC gets a main route table and a default security group.
	mainRT := f.id("rtb")
	f.RouteTables[mainRT] = &types.RouteTable{
		RouteTableId: aws.String(mainRT),
		VpcId:        vpc.VpcId,
		Routes:       []types.Route{{DestinationCidrBlock: in.CidrBlock, GatewayId: aws.String("local"), State: types.RouteStateActive}},
		Associations: []types.RouteTableAssociation{{RouteTableAssociationId: aws.String(f.id("rtbassoc")), RouteTableId: aws.String(mainRT), Main: aws.Bool(true)}},
	}
	defSG := f.id("sg")
	f.SecurityGroups[defSG] = &types.SecurityGroup{GroupId: aws.String(defSG), GroupName: aws.String("default"), VpcId: vpc.VpcId}

	out := *vpc
	return &ec2.CreateVpcOutput{Vpc: &out}, nil
}

func (f *FakeEC2) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeVpcs"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeVpcsOutput{}
	for _, id := range sortedKeys(f.VPCs) {
		v := f.VPCs[id]
		if !inIDs(in.VpcIds, id) {
			continue
		}
		if matches(in.Filters, v.Tags, map[string][]string{"vpc-id": {id}, "cidr": {aws.ToString(v.CidrBlock)}}) {
			out.Vpcs = append(out.Vpcs, *v)
		}
	}
	if len(in.VpcIds) > 0 && len(out.Vpcs) == 0 {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID does not exist")
	}
	return out, nil
}

func (f *FakeEC2) DescribeVpcAttribute(_ context.Context, in *ec2.DescribeVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeVpcAttribute"); err != nil {
		return nil, err
	}
	attrs, ok := f.VPCAttributes[aws.ToString(in.VpcId)]
	if !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID does not exist")
	}
	out := &ec2.DescribeVpcAttributeOutput{VpcId: in.VpcId}
	switch in.Attribute {
	case types.VpcAttributeNameEnableDnsSupport:
		out.EnableDnsSupport = &types.AttributeBooleanValue{Value: aws.Bool(attrs["enableDnsSupport"])}
	case types.VpcAttributeNameEnableDnsHostnames:
		out.EnableDnsHostnames = &types.AttributeBooleanValue{Value: aws.Bool(attrs["enableDnsHostnames"])}
	default:
		return nil, APIError("InvalidParameterValue", "unsupported attribute")
	}
	return out, nil
}

func (f *FakeEC2) ModifyVpcAttribute(_ context.Context, in *ec2.ModifyVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ModifyVpcAttribute"); err != nil {
		return nil, err
	}
	attrs, ok := f.VPCAttributes[aws.ToString(in.VpcId)]
	if !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID does not exist")
	}
	if in.EnableDnsSupport != nil {
		attrs["enableDnsSupport"] = aws.ToBool(in.EnableDnsSupport.Value)
	}
	if in.EnableDnsHostnames != nil {
		attrs["enableDnsHostnames"] = aws.ToBool(in.EnableDnsHostnames.Value)
	}
	return &ec2.ModifyVpcAttributeOutput{}, nil
}

func (f *FakeEC2) DeleteVpc(_ context.Context, in *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteVpc"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.VpcId)
	if _, ok := f.VPCs[id]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID does not exist")
	}
	for _, s := range f.Subnets {
		if aws.ToString(s.VpcId) == id {
			return nil, APIError("DependencyViolation", "The vpc has dependencies and cannot be deleted.")
		}
	}
	for _, g := range f.Gateways {
		for _, a := range g.Attachments {
			if aws.ToString(a.VpcId) == id {
				return nil, APIError("DependencyViolation", "The vpc has dependencies and cannot be deleted.")
			}
		}
	}
	for _, sg := range f.SecurityGroups {
		if aws.ToString(sg.VpcId) == id && aws.ToString(sg.GroupName) != "default" {
			return nil, APIError("DependencyViolation", "The vpc has dependencies and cannot be deleted.")
		}
	}
	for _, rt := range f.RouteTables {
		if aws.ToString(rt.VpcId) == id && !isMain(rt) {
			return nil, APIError("DependencyViolation", "The vpc has dependencies and cannot be deleted.")
		}
	}
	for sgID, sg := range f.SecurityGroups {
		if aws.ToString(sg.VpcId) == id {
			delete(f.SecurityGroups, sgID)
		}
	}
	for rtID, rt := range f.RouteTables {
		if aws.ToString(rt.VpcId) == id {
			delete(f.RouteTables, rtID)
		}
	}
	delete(f.VPCs, id)
	delete(f.VPCAttributes, id)
	return &ec2.DeleteVpcOutput{}, nil
}

// VPCAttribute reports a DNS attribute of a VPC.
func (f *FakeEC2) VPCAttribute(vpcID, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.VPCAttributes[vpcID][name]
}

// --- Internet gateway ---

func (f *FakeEC2) CreateInternetGateway(_ context.Context, in *ec2.CreateInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateInternetGateway"); err != nil {
		return nil, err
	}
	igw := &types.InternetGateway{
		InternetGatewayId: aws.String(f.id("igw")),
		Tags:              tagsFromSpecs(in.TagSpecifications),
	}
	f.Gateways[*igw.InternetGatewayId] = igw
	out := *igw
	return &ec2.CreateInternetGatewayOutput{InternetGateway: &out}, nil
}

func (f *FakeEC2) DescribeInternetGateways(_ context.Context, in *ec2.DescribeInternetGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeInternetGateways"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeInternetGatewaysOutput{}
	for _, id := range sortedKeys(f.Gateways) {
		g := f.Gateways[id]
		if !inIDs(in.InternetGatewayIds, id) {
			continue
		}
		var attached []string
		for _, a := range g.Attachments {
			attached = append(attached, aws.ToString(a.VpcId))
		}
		if matches(in.Filters, g.Tags, map[string][]string{"attachment.vpc-id": attached, "internet-gateway-id": {id}}) {
			cp := *g
			cp.Attachments = append([]types.InternetGatewayAttachment(nil), g.Attachments...)
			out.InternetGateways = append(out.InternetGateways, cp)
		}
	}
	return out, nil
}

func (f *FakeEC2) AttachInternetGateway(_ context.Context, in *ec2.AttachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("AttachInternetGateway"); err != nil {
		return nil, err
	}
	g, ok := f.Gateways[aws.ToString(in.InternetGatewayId)]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "gateway does not exist")
	}
	if _, ok := f.VPCs[aws.ToString(in.VpcId)]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID does not exist")
	}
	if len(g.Attachments) > 0 {
		return nil, APIError("Resource.AlreadyAssociated", "gateway is already attached")
	}
	g.Attachments = []types.InternetGatewayAttachment{{VpcId: in.VpcId, State: types.AttachmentStatusAttached}}
	return &ec2.AttachInternetGatewayOutput{}, nil
}

func (f *FakeEC2) DetachInternetGateway(_ context.Context, in *ec2.DetachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DetachInternetGateway"); err != nil {
		return nil, err
	}
	g, ok := f.Gateways[aws.ToString(in.InternetGatewayId)]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "gateway does not exist")
	}
	for _, inst := range f.Instances {
		if aws.ToString(inst.VpcId) == aws.ToString(in.VpcId) && inst.PublicIpAddress != nil &&
			inst.State.Name != types.InstanceStateNameTerminated {
			return nil, APIError("DependencyViolation", "Network has some mapped public address(es).")
		}
	}
	g.Attachments = nil
	return &ec2.DetachInternetGatewayOutput{}, nil
}

func (f *FakeEC2) DeleteInternetGateway(_ context.Context, in *ec2.DeleteInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteInternetGateway"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.InternetGatewayId)
	g, ok := f.Gateways[id]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "gateway does not exist")
	}
	if len(g.Attachments) > 0 {
		return nil, APIError("DependencyViolation", "The internetGateway has dependencies and cannot be deleted.")
	}
	delete(f.Gateways, id)
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

// --- Subnet ---

func (f *FakeEC2) CreateSubnet(_ context.Context, in *ec2.CreateSubnetInput, _ ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateSubnet"); err != nil {
		return nil, err
	}
	if _, ok := f.VPCs[aws.ToString(in.VpcId)]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID does not exist")
	}
	az := aws.ToString(in.AvailabilityZone)
	if az == "" {
		az = "us-east-1a"
	}
	s := &types.Subnet{
		SubnetId:            aws.String(f.id("subnet")),
		VpcId:               in.VpcId,
		CidrBlock:           in.CidrBlock,
		AvailabilityZone:    aws.String(az),
		MapPublicIpOnLaunch: aws.Bool(false),
		State:               types.SubnetStateAvailable,
		Tags:                tagsFromSpecs(in.TagSpecifications),
	}
	f.Subnets[*s.SubnetId] = s
	out := *s
	return &ec2.CreateSubnetOutput{Subnet: &out}, nil
}

func (f *FakeEC2) DescribeSubnets(_ context.Context, in *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeSubnets"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeSubnetsOutput{}
	for _, id := range sortedKeys(f.Subnets) {
		s := f.Subnets[id]
		if !inIDs(in.SubnetIds, id) {
			continue
		}
		if matches(in.Filters, s.Tags, map[string][]string{"vpc-id": {aws.ToString(s.VpcId)}, "subnet-id": {id}}) {
			out.Subnets = append(out.Subnets, *s)
		}
	}
	return out, nil
}

func (f *FakeEC2) ModifySubnetAttribute(_ context.Context, in *ec2.ModifySubnetAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifySubnetAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ModifySubnetAttribute"); err != nil {
		return nil, err
	}
	s, ok := f.Subnets[aws.ToString(in.SubnetId)]
	if !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID does not exist")
	}
	if in.MapPublicIpOnLaunch != nil {
		s.MapPublicIpOnLaunch = aws.Bool(aws.ToBool(in.MapPublicIpOnLaunch.Value))
	}
	return &ec2.ModifySubnetAttributeOutput{}, nil
}

func (f *FakeEC2) DeleteSubnet(_ context.Context, in *ec2.DeleteSubnetInput, _ ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteSubnet"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.SubnetId)
	if _, ok := f.Subnets[id]; !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID does not exist")
	}
	for _, inst := range f.Instances {
		if aws.ToString(inst.SubnetId) == id && inst.State.Name != types.InstanceStateNameTerminated {
			return nil, APIError("DependencyViolation", "The subnet has dependencies and cannot be deleted.")
		}
	}
	for _, rt := range f.RouteTables {
		kept := rt.Associations[:0]
		for _, a := range rt.Associations {
			if aws.ToString(a.SubnetId) != id {
				kept = append(kept, a)
			}
		}
		rt.Associations = kept
	}
	delete(f.Subnets, id)
	return &ec2.DeleteSubnetOutput{}, nil
}

// --- Route tables ---

func isMain(rt *types.RouteTable) bool {
	for _, a := range rt.Associations {
		if aws.ToBool(a.Main) {
			return true
		}
	}
	return false
}

func (f *FakeEC2) CreateRouteTable(_ context.Context, in *ec2.CreateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateRouteTable"); err != nil {
		return nil, err
	}
	vpc, ok := f.VPCs[aws.ToString(in.VpcId)]
	if !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID does not exist")
	}
	rt := &types.RouteTable{
		RouteTableId: aws.String(f.id("rtb")),
		VpcId:        in.VpcId,
		Routes:       []types.Route{{DestinationCidrBlock: vpc.CidrBlock, GatewayId: aws.String("local"), State: types.RouteStateActive}},
		Tags:         tagsFromSpecs(in.TagSpecifications),
	}
	f.RouteTables[*rt.RouteTableId] = rt
	return &ec2.CreateRouteTableOutput{RouteTable: copyRouteTable(rt)}, nil
}

func copyRouteTable(rt *types.RouteTable) *types.RouteTable {
	cp := *rt
	cp.Routes = append([]types.Route(nil), rt.Routes...)
	cp.Associations = append([]types.RouteTableAssociation(nil), rt.Associations...)
	return &cp
}

func (f *FakeEC2) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeRouteTables"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeRouteTablesOutput{}
	for _, id := range sortedKeys(f.RouteTables) {
		rt := f.RouteTables[id]
		if !inIDs(in.RouteTableIds, id) {
			continue
		}
		var subnets []string
		for _, a := range rt.Associations {
			if a.SubnetId != nil {
				subnets = append(subnets, *a.SubnetId)
			}
		}
		fields := map[string][]string{"vpc-id": {aws.ToString(rt.VpcId)}, "association.subnet-id": subnets, "route-table-id": {id}}
		if matches(in.Filters, rt.Tags, fields) {
			out.RouteTables = append(out.RouteTables, *copyRouteTable(rt))
		}
	}
	return out, nil
}

func (f *FakeEC2) CreateRoute(_ context.Context, in *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateRoute"); err != nil {
		return nil, err
	}
	rt, ok := f.RouteTables[aws.ToString(in.RouteTableId)]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "route table does not exist")
	}
	if _, ok := f.Gateways[aws.ToString(in.GatewayId)]; !ok {
		return nil, APIError("InvalidGatewayID.NotFound", "gateway does not exist")
	}
	for _, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == aws.ToString(in.DestinationCidrBlock) {
			return nil, APIError("RouteAlreadyExists", "route already exists")
		}
	}
	rt.Routes = append(rt.Routes, types.Route{DestinationCidrBlock: in.DestinationCidrBlock, GatewayId: in.GatewayId, State: types.RouteStateActive})
	return &ec2.CreateRouteOutput{Return: aws.Bool(true)}, nil
}

func (f *FakeEC2) ReplaceRoute(_ context.Context, in *ec2.ReplaceRouteInput, _ ...func(*ec2.Options)) (*ec2.ReplaceRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ReplaceRoute"); err != nil {
		return nil, err
	}
	rt, ok := f.RouteTables[aws.ToString(in.RouteTableId)]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "route table does not exist")
	}
	for i, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == aws.ToString(in.DestinationCidrBlock) {
			rt.Routes[i].GatewayId = in.GatewayId
			return &ec2.ReplaceRouteOutput{}, nil
		}
	}
	return nil, APIError("InvalidRoute.NotFound", "no route matches")
}

func (f *FakeEC2) AssociateRouteTable(_ context.Context, in *ec2.AssociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("AssociateRouteTable"); err != nil {
		return nil, err
	}
	rt, ok := f.RouteTables[aws.ToString(in.RouteTableId)]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "route table does not exist")
	}
	if _, ok := f.Subnets[aws.ToString(in.SubnetId)]; !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID does not exist")
	}
	for _, other := range f.RouteTables {
		for _, a := range other.Associations {
			if aws.ToString(a.SubnetId) == aws.ToString(in.SubnetId) {
				return nil, APIError("Resource.AlreadyAssociated", "subnet is already associated")
			}
		}
	}
	assoc := types.RouteTableAssociation{
		RouteTableAssociationId: aws.String(f.id("rtbassoc")),
		RouteTableId:            in.RouteTableId,
		SubnetId:                in.SubnetId,
		Main:                    aws.Bool(false),
	}
	rt.Associations = append(rt.Associations, assoc)
	return &ec2.AssociateRouteTableOutput{AssociationId: assoc.RouteTableAssociationId}, nil
}

func (f *FakeEC2) DisassociateRouteTable(_ context.Context, in *ec2.DisassociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DisassociateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DisassociateRouteTable"); err != nil {
		return nil, err
	}
	for _, rt := range f.RouteTables {
		for i, a := range rt.Associations {
			if aws.ToString(a.RouteTableAssociationId) == aws.ToString(in.AssociationId) {
				rt.Associations = append(rt.Associations[:i], rt.Associations[i+1:]...)
				return &ec2.DisassociateRouteTableOutput{}, nil
			}
		}
	}
	return nil, APIError("InvalidAssociationID.NotFound", "association does not exist")
}

func (f *FakeEC2) DeleteRouteTable(_ context.Context, in *ec2.DeleteRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteRouteTable"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.RouteTableId)
	rt, ok := f.RouteTables[id]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "route table does not exist")
	}
	if len(rt.Associations) > 0 {
		return nil, APIError("DependencyViolation", "The routeTable has dependencies and cannot be deleted.")
	}
	delete(f.RouteTables, id)
	return &ec2.DeleteRouteTableOutput{}, nil
}

// --- Security groups ---

func (f *FakeEC2) CreateSecurityGroup(_ context.Context, in *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateSecurityGroup"); err != nil {
		return nil, err
	}
	for _, sg := range f.SecurityGroups {
		if aws.ToString(sg.VpcId) == aws.ToString(in.VpcId) && aws.ToString(sg.GroupName) == aws.ToString(in.GroupName) {
			return nil, APIError("InvalidGroup.Duplicate", "security group already exists")
		}
	}
	sg := &types.SecurityGroup{
		GroupId:     aws.String(f.id("sg")),
		GroupName:   in.GroupName,
		Description: in.Description,
		VpcId:       in.VpcId,
		Tags:        tagsFromSpecs(in.TagSpecifications),
		// New groups allow all outbound traffic.
		IpPermissionsEgress: []types.IpPermission{{
			IpProtocol: aws.String("-1"),
			IpRanges:   []types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		}},
	}
	f.SecurityGroups[*sg.GroupId] = sg
	return &ec2.CreateSecurityGroupOutput{GroupId: sg.GroupId}, nil
}

func (f *FakeEC2) DescribeSecurityGroups(_ context.Context, in *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeSecurityGroups"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeSecurityGroupsOutput{}
	for _, id := range sortedKeys(f.SecurityGroups) {
		sg := f.SecurityGroups[id]
		if !inIDs(in.GroupIds, id) {
			continue
		}
		fields := map[string][]string{"vpc-id": {aws.ToString(sg.VpcId)}, "group-name": {aws.ToString(sg.GroupName)}, "group-id": {id}}
		if matches(in.Filters, sg.Tags, fields) {
			cp := *sg
			cp.IpPermissions = append([]types.IpPermission(nil), sg.IpPermissions...)
			cp.IpPermissionsEgress = append([]types.IpPermission(nil), sg.IpPermissionsEgress...)
			out.SecurityGroups = append(out.SecurityGroups, cp)
		}
	}
	return out, nil
}

func permissionKey(p types.IpPermission, r types.IpRange) string {
	return fmt.Sprintf("%s/%d/%d/%s", aws.ToString(p.IpProtocol), aws.ToInt32(p.FromPort), aws.ToInt32(p.ToPort), aws.ToString(r.CidrIp))
}

// flatten splits permissions into one entry per CIDR range.
func flatten(perms []types.IpPermission) map[string]types.IpPermission {
	out := make(map[string]types.IpPermission)
	for _, p := range perms {
		for _, r := range p.IpRanges {
			single := p
			single.IpRanges = []types.IpRange{r}
			out[permissionKey(p, r)] = single
		}
	}
	return out
}

func unflatten(m map[string]types.IpPermission) []types.IpPermission {
	out := make([]types.IpPermission, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}

func (f *FakeEC2) authorize(groupID *string, perms []types.IpPermission, egress bool) error {
	sg, ok := f.SecurityGroups[aws.ToString(groupID)]
	if !ok {
		return APIError("InvalidGroup.NotFound", "security group does not exist")
	}
	target := &sg.IpPermissions
	if egress {
		target = &sg.IpPermissionsEgress
	}
	existing := flatten(*target)
	for k, p := range flatten(perms) {
		if _, dup := existing[k]; dup {
			return APIError("InvalidPermission.Duplicate", "the specified rule already exists")
		}
		existing[k] = p
	}
	*target = unflatten(existing)
	return nil
}

func (f *FakeEC2) revoke(groupID *string, perms []types.IpPermission, egress bool) error {
	sg, ok := f.SecurityGroups[aws.ToString(groupID)]
	if !ok {
		return APIError("InvalidGroup.NotFound", "security group does not exist")
	}
	target := &sg.IpPermissions
	if egress {
		target = &sg.IpPermissionsEgress
	}
	existing := flatten(*target)
	for k := range flatten(perms) {
		if _, ok := existing[k]; !ok {
			return APIError("InvalidPermission.NotFound", "the specified rule does not exist")
		}
		delete(existing, k)
	}
	*target = unflatten(existing)
	return nil
}

func (f *FakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("AuthorizeSecurityGroupIngress"); err != nil {
		return nil, err
	}
	if err := f.authorize(in.GroupId, in.IpPermissions, false); err != nil {
		return nil, err
	}
	return &ec2.AuthorizeSecurityGroupIngressOutput{Return: aws.Bool(true)}, nil
}

func (f *FakeEC2) AuthorizeSecurityGroupEgress(_ context.Context, in *ec2.AuthorizeSecurityGroupEgressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("AuthorizeSecurityGroupEgress"); err != nil {
		return nil, err
	}
	if err := f.authorize(in.GroupId, in.IpPermissions, true); err != nil {
		return nil, err
	}
	return &ec2.AuthorizeSecurityGroupEgressOutput{Return: aws.Bool(true)}, nil
}

func (f *FakeEC2) RevokeSecurityGroupIngress(_ context.Context, in *ec2.RevokeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("RevokeSecurityGroupIngress"); err != nil {
		return nil, err
	}
	if err := f.revoke(in.GroupId, in.IpPermissions, false); err != nil {
		return nil, err
	}
	return &ec2.RevokeSecurityGroupIngressOutput{Return: aws.Bool(true)}, nil
}

func (f *FakeEC2) RevokeSecurityGroupEgress(_ context.Context, in *ec2.RevokeSecurityGroupEgressInput, _ ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupEgressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("RevokeSecurityGroupEgress"); err != nil {
		return nil, err
	}
	if err := f.revoke(in.GroupId, in.IpPermissions, true); err != nil {
		return nil, err
	}
	return &ec2.RevokeSecurityGroupEgressOutput{Return: aws.Bool(true)}, nil
}

func (f *FakeEC2) DeleteSecurityGroup(_ context.Context, in *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteSecurityGroup"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.GroupId)
	if _, ok := f.SecurityGroups[id]; !ok {
		return nil, APIError("InvalidGroup.NotFound", "security group does not exist")
	}
	for _, inst := range f.Instances {
		if inst.State.Name == types.InstanceStateNameTerminated {
			continue
		}
		for _, g := range inst.SecurityGroups {
			if aws.ToString(g.GroupId) == id {
				return nil, APIError("DependencyViolation", "resource has a dependent object")
			}
		}
	}
	delete(f.SecurityGroups, id)
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

// --- Instances ---

func (f *FakeEC2) allocateHost(subnet *types.Subnet) string {
	id := aws.ToString(subnet.SubnetId)
	f.nextHost[id]++
	base := strings.TrimSuffix(aws.ToString(subnet.CidrBlock), "/24")
	base = strings.TrimSuffix(base, ".0")
	return fmt.Sprintf("%s.%d", base, 9+f.nextHost[id])
}

func (f *FakeEC2) RunInstances(_ context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("RunInstances"); err != nil {
		return nil, err
	}
	subnet, ok := f.Subnets[aws.ToString(in.SubnetId)]
	if !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID does not exist")
	}
	if in.KeyName != nil {
		if _, ok := f.KeyPairs[*in.KeyName]; !ok {
			return nil, APIError("InvalidKeyPair.NotFound", "The key pair does not exist")
		}
	}
	var groups []types.GroupIdentifier
	for _, g := range in.SecurityGroupIds {
		if _, ok := f.SecurityGroups[g]; !ok {
			return nil, APIError("InvalidGroup.NotFound", "security group does not exist")
		}
		groups = append(groups, types.GroupIdentifier{GroupId: aws.String(g)})
	}

	out := &ec2.RunInstancesOutput{}
	for range aws.ToInt32(in.MinCount) {
		inst := &types.Instance{
			InstanceId:       aws.String(f.id("i")),
			ImageId:          in.ImageId,
			InstanceType:     in.InstanceType,
			KeyName:          in.KeyName,
			SubnetId:         subnet.SubnetId,
			VpcId:            subnet.VpcId,
			PrivateIpAddress: aws.String(f.allocateHost(subnet)),
			SecurityGroups:   groups,
			State:            &types.InstanceState{Name: types.InstanceStateNameRunning, Code: aws.Int32(16)},
			Tags:             tagsFromSpecs(in.TagSpecifications),
		}
		if aws.ToBool(subnet.MapPublicIpOnLaunch) {
			inst.PublicIpAddress = aws.String(fmt.Sprintf("203.0.113.%d", f.nextID%250+1))
		}
		f.Instances[*inst.InstanceId] = inst
		f.UserData[*inst.InstanceId] = aws.ToString(in.UserData)
		out.Instances = append(out.Instances, *inst)
	}
	return out, nil
}

func (f *FakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeInstances"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeInstancesOutput{}
	for _, id := range sortedKeys(f.Instances) {
		inst := f.Instances[id]
		if !inIDs(in.InstanceIds, id) {
			continue
		}
		fields := map[string][]string{
			"instance-state-name": {string(inst.State.Name)},
			"subnet-id":           {aws.ToString(inst.SubnetId)},
			"vpc-id":              {aws.ToString(inst.VpcId)},
			"instance-id":         {id},
		}
		if matches(in.Filters, inst.Tags, fields) {
			cp := *inst
			state := *inst.State
			cp.State = &state
			out.Reservations = append(out.Reservations, types.Reservation{Instances: []types.Instance{cp}})
		}
	}
	if len(in.InstanceIds) > 0 && len(out.Reservations) == 0 {
		return nil, APIError("InvalidInstanceID.NotFound", "The instance ID does not exist")
	}
	return out, nil
}

// DescribeInstanceAttribute supports the userData attribute only.
func (f *FakeEC2) DescribeInstanceAttribute(_ context.Context, in *ec2.DescribeInstanceAttributeInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstanceAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeInstanceAttribute"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.InstanceId)
	if _, ok := f.Instances[id]; !ok {
		return nil, APIError("InvalidInstanceID.NotFound", "The instance ID does not exist")
	}
	if in.Attribute != types.InstanceAttributeNameUserData {
		return nil, APIError("InvalidParameterValue", "unsupported attribute "+string(in.Attribute))
	}
	out := &ec2.DescribeInstanceAttributeOutput{InstanceId: aws.String(id)}
	if data, ok := f.UserData[id]; ok && data != "" {
		out.UserData = &types.AttributeValue{Value: aws.String(data)}
	}
	return out, nil
}

func (f *FakeEC2) TerminateInstances(_ context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("TerminateInstances"); err != nil {
		return nil, err
	}
	out := &ec2.TerminateInstancesOutput{}
	for _, id := range in.InstanceIds {
		inst, ok := f.Instances[id]
		if !ok {
			return nil, APIError("InvalidInstanceID.NotFound", "The instance ID does not exist")
		}
		prev := *inst.State
		inst.State = &types.InstanceState{Name: types.InstanceStateNameTerminated, Code: aws.Int32(48)}
		out.TerminatingInstances = append(out.TerminatingInstances, types.InstanceStateChange{
			InstanceId:    aws.String(id),
			PreviousState: &prev,
			CurrentState:  inst.State,
		})
	}
	return out, nil
}

// --- Key pairs ---

func (f *FakeEC2) ImportKeyPair(_ context.Context, in *ec2.ImportKeyPairInput, _ ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ImportKeyPair"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.KeyName)
	if _, ok := f.KeyPairs[name]; ok {
		return nil, APIError("InvalidKeyPair.Duplicate", "The keypair already exists")
	}
	kp := &types.KeyPairInfo{
		KeyName:        in.KeyName,
		KeyPairId:      aws.String(f.id("key")),
		KeyFingerprint: aws.String(fmt.Sprintf("fp-%d", len(in.PublicKeyMaterial))),
		Tags:           tagsFromSpecs(in.TagSpecifications),
	}
	f.KeyPairs[name] = kp
	return &ec2.ImportKeyPairOutput{KeyName: kp.KeyName, KeyPairId: kp.KeyPairId, KeyFingerprint: kp.KeyFingerprint}, nil
}

func (f *FakeEC2) DescribeKeyPairs(_ context.Context, in *ec2.DescribeKeyPairsInput, _ ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeKeyPairs"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeKeyPairsOutput{}
	for _, name := range sortedKeys(f.KeyPairs) {
		kp := f.KeyPairs[name]
		if !inIDs(in.KeyNames, name) {
			continue
		}
		if matches(in.Filters, kp.Tags, map[string][]string{"key-name": {name}}) {
			out.KeyPairs = append(out.KeyPairs, *kp)
		}
	}
	if len(in.KeyNames) > 0 && len(out.KeyPairs) == 0 {
		return nil, APIError("InvalidKeyPair.NotFound", "The key pair does not exist")
	}
	return out, nil
}

func (f *FakeEC2) DeleteKeyPair(_ context.Context, in *ec2.DeleteKeyPairInput, _ ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteKeyPair"); err != nil {
		return nil, err
	}
	// EC2 reports success for unknown key names.
	delete(f.KeyPairs, aws.ToString(in.KeyName))
	return &ec2.DeleteKeyPairOutput{}, nil
}

// --- Images ---

func (f *FakeEC2) DescribeImages(_ context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeImages"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeImagesOutput{}
	for _, img := range f.Images {
		if !inIDs(in.ImageIds, aws.ToString(img.ImageId)) || !inIDs(in.Owners, aws.ToString(img.OwnerId)) {
			continue
		}
		fields := map[string][]string{"name": {aws.ToString(img.Name)}, "state": {string(img.State)}, "image-id": {aws.ToString(img.ImageId)}}
		if matches(in.Filters, img.Tags, fields) {
			out.Images = append(out.Images, img)
		}
	}
	return out, nil
}
