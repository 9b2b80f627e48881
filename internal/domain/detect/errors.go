package detect

import (
	"fmt"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
)

// faultError wraps a recovered detector panic so the set can report it
// without letting one defective detector take the evaluation cycle down.
type faultError struct {
	kind     model.SignalKind
	panicked any
}

func (e *faultError) Error() string {
	return fmt.Sprintf("detector %s panicked: %v", e.kind, e.panicked)
}
