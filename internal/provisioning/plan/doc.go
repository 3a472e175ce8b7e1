// Package plan reports what apply would change without changing anything.
//
// Diff looks up every resource of the topology by name and compares it with
// the desired state. Lookups only: no Ensure call is ever made, so plan is
// safe to run against a live deployment.
package plan
