package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SFA_TEST_MODE") == "" {
			_ = os.Setenv("SFA_TEST_MODE", "1")
		}
	})
}
