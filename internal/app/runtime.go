package app

import "os"

// InTestMode reports whether the process runs under the test harness.
// Binaries skip runtime startup when set so importing them in tests is safe.
func InTestMode() bool {
	return os.Getenv("GRANITE_TEST_MODE") != ""
}
