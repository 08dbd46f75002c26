// Package guard forces test mode for any package that imports it, keeping
// runtime side effects such as rate limiting out of test runs.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("UPKEEP_TEST_MODE") == "" {
			_ = os.Setenv("UPKEEP_TEST_MODE", "1")
		}
	})
}
