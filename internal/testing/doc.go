// Package testing provides test utilities, builders, and fixtures for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating test configurations
//   - InfraFixture: Pre-configured mock infrastructure for common scenarios
//   - RecordingObserver: Observer that keeps every event for assertions
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithName("test").
//	    WithWorkers(2).
//	    Build()
//
//	fixture := testing.NewInfraFixture()
//	mockInfra := fixture.SuccessfulProvisioning()
package testing
