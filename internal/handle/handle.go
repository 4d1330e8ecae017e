package handle

import (
	"github.com/muurk/devtree/internal/subsys"
)

// Handle is implemented by every wrapper value that owns a raw
// subsystem handle. The returned handle is non-owning: it stays valid
// only while the wrapper value is alive and unclosed, and must not be
// stored beyond the duration of one subsystem call.
type Handle interface {
	RawHandle() subsys.Raw
}
