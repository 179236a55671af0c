package state

import "fmt"

// ActionID identifies an action. Ids combine a hint and the owning slice's
// id: a_increment[sl_counter$].
type ActionID string

// Action is a registered capability bound to one slice that turns call
// parameters into a transaction.
type Action[P any] struct {
	id       ActionID
	slice    AnySlice
	registry *Registry
	build    func(params P) *Transaction
}

// NewAction registers an action on s. hint names the action in its id
// (usually the declaring function's name); repeated hints on the same slice
// get a counter appended.
func NewAction[T, P any](s *Slice[T], hint string, build func(params P) *Transaction) *Action[P] {
	return &Action[P]{
		id:       s.registry.newActionID(s.id, hint),
		slice:    s,
		registry: s.registry,
		build:    build,
	}
}

// RegisterAction registers an action on s under an explicit id. Returns a
// *ConstructionError with CodeDuplicateActionID if the id is taken.
func RegisterAction[T, P any](s *Slice[T], id ActionID, build func(params P) *Transaction) (*Action[P], error) {
	if err := s.registry.registerActionID(id); err != nil {
		return nil, err
	}
	return &Action[P]{id: id, slice: s, registry: s.registry, build: build}, nil
}

// MustRegisterAction is RegisterAction that panics on error, for package
// level declarations.
func MustRegisterAction[T, P any](s *Slice[T], id ActionID, build func(params P) *Transaction) *Action[P] {
	a, err := RegisterAction(s, id, build)
	if err != nil {
		panic(fmt.Sprintf("register action: %v", err))
	}
	return a
}

// ID returns the action id.
func (a *Action[P]) ID() ActionID { return a.id }

// Slice returns the slice the action is bound to.
func (a *Action[P]) Slice() AnySlice { return a.slice }

// Call builds the transaction for params and tags it with the action's id,
// the owning slice and params.
func (a *Action[P]) Call(params P) *Transaction {
	tx := a.build(params)
	if tx == nil {
		tx = a.registry.newTransaction(nil)
	}
	tx.actionID = a.id
	tx.sliceID = a.slice.ID()
	tx.sliceName = a.slice.Name()
	tx.params = []any{params}
	tx.meta.Set(MetaActionID, string(a.id))
	return tx
}

// Callable returns Call as a plain function value.
func (a *Action[P]) Callable() func(params P) *Transaction {
	return a.Call
}
