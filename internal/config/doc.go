// Package config defines the deployment configuration read from rayform.yaml.
//
// The [Config] struct is the single input to topology building and
// provisioning: network CIDRs, the inbound allow-list, instance shape, worker
// count and the Ray bootstrap parameters. [Load] applies defaults and
// validates; [LoadTimeouts] reads operational timeouts from the environment.
package config
