// Package awscloud provides the EC2 operations rayform provisions through.
//
// Every resource is looked up by its Name tag before being created, so each
// Ensure* call is safe to repeat. [RealClient] talks to the AWS SDK (or any
// [cloud.EC2API]); [MockClient] is a function-field double for phase tests.
//
// [cloud.EC2API]: github.com/imamik/rayform/pkg/cloud.EC2API
package awscloud
