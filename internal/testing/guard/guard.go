// Package guard forces test mode for packages whose tests would otherwise
// trigger runtime side effects at import time.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PROFITCAST_TEST_MODE") == "" {
			_ = os.Setenv("PROFITCAST_TEST_MODE", "1")
		}
	})
}
