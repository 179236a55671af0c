package state

import (
	"fmt"

	"github.com/bangle-io/nalanda-sub001/internal/ident"
)

// Registry is the construction context slices and actions are built
// against. It owns id uniqueness for both and numbers transactions.
//
// Applications create one Registry at start-up and build every slice from
// it. There is deliberately no package-level default.
type Registry struct {
	ids  *ident.Registry
	txns *ident.Clock
}

// NewRegistry creates an empty construction context.
func NewRegistry() *Registry {
	return &Registry{
		ids:  ident.NewRegistry(),
		txns: ident.NewClock(),
	}
}

// Reset forgets every slice and action id and restarts transaction
// numbering. Test harnesses only.
func (r *Registry) Reset() {
	r.ids.Reset()
	r.txns.Reset()
}

func (r *Registry) newSliceID(name string) SliceID {
	return SliceID(r.ids.Unique(name, func(hint string) string {
		return fmt.Sprintf("sl_%s$", hint)
	}))
}

func (r *Registry) newActionID(sliceID SliceID, hint string) ActionID {
	return ActionID(r.ids.Unique(hint, func(hint string) string {
		return fmt.Sprintf("a_%s[%s]", hint, sliceID)
	}))
}

func (r *Registry) registerActionID(id ActionID) error {
	if err := r.ids.Register(string(id)); err != nil {
		return &ConstructionError{
			Code:    CodeDuplicateActionID,
			Message: "action id already registered",
			ID:      string(id),
			Err:     ErrDuplicateActionID,
		}
	}
	return nil
}

func (r *Registry) nextTxnID() string {
	return fmt.Sprintf("txn_%d", r.txns.Next())
}
