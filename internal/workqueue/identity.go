package workqueue

import (
	"fmt"
	"reflect"
	"sync"
)

// Identifier is implemented by items that know their own identity key.
type Identifier interface {
	Identity() string
}

// Converter turns an item into its identity key.
type Converter func(item any) (string, error)

// identities resolves identity keys: a converter registered for the item's
// concrete type wins, then strings, then Identifier, then fmt.Sprint.
type identities struct {
	mu         sync.RWMutex
	converters map[reflect.Type]Converter
}

func newIdentities() *identities {
	return &identities{converters: make(map[reflect.Type]Converter)}
}

func (i *identities) register(sample any, converter Converter) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.converters[reflect.TypeOf(sample)] = converter
}

func (i *identities) of(item any) (string, error) {
	if item == nil {
		return "", &IdentityError{Message: "cannot identify nil", Cause: ErrCauseNilItem}
	}

	i.mu.RLock()
	converter, ok := i.converters[reflect.TypeOf(item)]
	i.mu.RUnlock()

	var id string
	switch {
	case ok:
		converted, err := converter(item)
		if err != nil {
			return "", &IdentityError{
				Message: fmt.Sprintf("%T: %v", item, err),
				Cause:   ErrCauseConverterFailed,
				Err:     err,
			}
		}
		id = converted
	default:
		switch v := item.(type) {
		case string:
			id = v
		case Identifier:
			id = v.Identity()
		default:
			id = fmt.Sprint(item)
		}
	}

	if id == "" {
		return "", &IdentityError{Message: fmt.Sprintf("%T has an empty identity", item), Cause: ErrCauseEmptyIdentity}
	}
	return id, nil
}
