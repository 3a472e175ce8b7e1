package naming

import "fmt"

// Naming functions for deployment resources.
// Every AWS resource is named {deployment}-{kind} so a second apply finds it
// again by Name tag.

func VPC(deployment string) string {
	return fmt.Sprintf("%s-vpc", deployment)
}

func InternetGateway(deployment string) string {
	return fmt.Sprintf("%s-igw", deployment)
}

func Subnet(deployment string) string {
	return fmt.Sprintf("%s-subnet", deployment)
}

func RouteTable(deployment string) string {
	return fmt.Sprintf("%s-rt", deployment)
}

func SecurityGroup(deployment string) string {
	return fmt.Sprintf("%s-sg", deployment)
}

func KeyPair(deployment string) string {
	return fmt.Sprintf("%s-key", deployment)
}

func Head(deployment string) string {
	return fmt.Sprintf("%s-head", deployment)
}

// Worker names are 1-based.
func Worker(deployment string, index int) string {
	return fmt.Sprintf("%s-worker-%d", deployment, index)
}

// Output keys published after apply. Worker output keys are 0-based, so
// demo-worker-1 publishes worker_node_0_private_ip.

const (
	HeadPrivateIPOutput = "head_node_private_ip"
	HeadPublicIPOutput  = "head_node_public_ip"
)

func WorkerPrivateIPOutput(index int) string {
	return fmt.Sprintf("worker_node_%d_private_ip", index)
}

func WorkerPublicIPOutput(index int) string {
	return fmt.Sprintf("worker_node_%d_public_ip", index)
}
