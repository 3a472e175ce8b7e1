// Package labels builds the tag set attached to every AWS resource of a
// deployment and converts it to and from EC2 tag and filter types.
package labels
