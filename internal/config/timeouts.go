package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	InstanceCreate    time.Duration // Timeout for an instance to reach running
	InstanceIP        time.Duration // Timeout for a private address to be assigned
	InstanceTerminate time.Duration // Timeout for an instance to terminate on destroy
	Delete            time.Duration // Timeout for network resource deletion
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - RAYFORM_TIMEOUT_INSTANCE_CREATE (default: 10m)
//   - RAYFORM_TIMEOUT_INSTANCE_IP (default: 2m)
//   - RAYFORM_TIMEOUT_INSTANCE_TERMINATE (default: 10m)
//   - RAYFORM_TIMEOUT_DELETE (default: 5m)
//   - RAYFORM_RETRY_MAX_ATTEMPTS (default: 5)
//   - RAYFORM_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		InstanceCreate:    parseDuration("RAYFORM_TIMEOUT_INSTANCE_CREATE", 10*time.Minute),
		InstanceIP:        parseDuration("RAYFORM_TIMEOUT_INSTANCE_IP", 2*time.Minute),
		InstanceTerminate: parseDuration("RAYFORM_TIMEOUT_INSTANCE_TERMINATE", 10*time.Minute),
		Delete:            parseDuration("RAYFORM_TIMEOUT_DELETE", 5*time.Minute),
		RetryMaxAttempts:  parseInt("RAYFORM_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("RAYFORM_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// TestTimeouts returns short timeouts for unit tests.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		InstanceCreate:    2 * time.Second,
		InstanceIP:        2 * time.Second,
		InstanceTerminate: 2 * time.Second,
		Delete:            2 * time.Second,
		RetryMaxAttempts:  2,
		RetryInitialDelay: 5 * time.Millisecond,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
