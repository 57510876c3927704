// Package ids issues ULIDs for workflow events and audit entries. The ids
// sort by creation time, so event listings stay chronological without a
// separate sequence column.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// source is guarded by mu: ulid.Monotonic readers are not safe for
// concurrent use.
var (
	mu     sync.Mutex
	source = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a fresh time-ordered identifier.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Now(), source).String()
}
