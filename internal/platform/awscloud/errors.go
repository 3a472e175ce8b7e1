package awscloud

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// Error codes returned by EC2.
const (
	codeDependencyViolation = "DependencyViolation"
	codeDuplicatePermission = "InvalidPermission.Duplicate"
	codeMissingPermission   = "InvalidPermission.NotFound"
	codeRequestLimit        = "RequestLimitExceeded"
	codeThrottling          = "Throttling"
	codeInvalidParameter    = "InvalidParameterValue"
	codeAlreadyAssociated   = "Resource.AlreadyAssociated"
	codeRouteExists         = "RouteAlreadyExists"
)

// errorCode returns the API error code, or "" for non-API errors.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isErrorCode(err error, codes ...string) bool {
	code := errorCode(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
// EC2 encodes these as "<Resource>.NotFound" (for example InvalidVpcID.NotFound).
func IsNotFound(err error) bool {
	return strings.HasSuffix(errorCode(err), ".NotFound")
}

// IsDependencyViolation checks if a delete was refused because something
// still references the resource. These errors clear once dependents are gone.
func IsDependencyViolation(err error) bool {
	return isErrorCode(err, codeDependencyViolation)
}

// IsRateLimited checks if an error indicates request throttling.
func IsRateLimited(err error) bool {
	return isErrorCode(err, codeRequestLimit, codeThrottling)
}

// IsDuplicate checks if an error reports that the resource or rule exists.
func IsDuplicate(err error) bool {
	return strings.HasSuffix(errorCode(err), ".Duplicate") || isErrorCode(err, codeRouteExists, codeAlreadyAssociated)
}

// isInvalidParameter checks if an error indicates invalid parameters.
// These errors are fatal and should not be retried.
func isInvalidParameter(err error) bool {
	return isErrorCode(err, codeInvalidParameter, "InvalidParameterCombination", "InvalidAMIID.Malformed")
}

// isRetryable reports whether an error should be retried during deletes.
func isRetryable(err error) bool {
	return IsDependencyViolation(err) || IsRateLimited(err)
}
