package conveyor

import (
	"sync"

	"github.com/rs/xid"

	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/unit"
)

type delivery struct {
	tc  *unit.TransferingContext
	err error
}

// waitBoxes correlates synchronous callers with the line that finishes
// their package. Each box is a one-slot channel keyed by delivery id.
type waitBoxes struct {
	boxes sync.Map
}

func (w *waitBoxes) open(id string) (string, <-chan delivery, error) {
	if id == "" {
		id = xid.New().String()
	}
	ch := make(chan delivery, 1)
	if _, loaded := w.boxes.LoadOrStore(id, ch); loaded {
		return "", nil, errors.UnableToPostPackage(id)
	}
	return id, ch, nil
}

func (w *waitBoxes) close(id string) {
	w.boxes.Delete(id)
}

// deliver reports whether a caller was waiting on id.
func (w *waitBoxes) deliver(id string, d delivery) bool {
	v, ok := w.boxes.Load(id)
	if !ok {
		return false
	}
	select {
	case v.(chan delivery) <- d:
		return true
	default:
		return false
	}
}
