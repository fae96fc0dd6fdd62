package permission

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName      = errors.New("permission: empty name")
	ErrTooMany        = fmt.Errorf("permission: more than %d permissions", maskBits)
	ErrUnknownPerm    = errors.New("permission: unknown permission")
	ErrDuplicateName  = errors.New("permission: duplicate name")
	ErrUnknownRoleRef = errors.New("permission: role table references unknown role")
)

// Registry assigns each permission the bit of its position in the list it was built
// from. It is immutable and safe for concurrent use.
type Registry struct {
	names []string
	bits  map[string]int
}

func NewRegistry(names ...string) (*Registry, error) {
	if len(names) > maskBits {
		return nil, ErrTooMany
	}
	r := &Registry{
		names: make([]string, 0, len(names)),
		bits:  make(map[string]int, len(names)),
	}
	for _, name := range names {
		if name == "" {
			return nil, ErrEmptyName
		}
		if _, dup := r.bits[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		r.bits[name] = len(r.names)
		r.names = append(r.names, name)
	}
	return r, nil
}

func (r *Registry) Bit(name string) (int, bool) {
	bit, ok := r.bits[name]
	return bit, ok
}

func (r *Registry) Name(bit int) (string, bool) {
	if bit < 0 || bit >= len(r.names) {
		return "", false
	}
	return r.names[bit], true
}

func (r *Registry) Count() int { return len(r.names) }

// MaskOf composes a mask from names. Any unknown name fails the whole call.
func (r *Registry) MaskOf(names ...string) (Mask, error) {
	var m Mask
	for _, name := range names {
		bit, ok := r.bits[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownPerm, name)
		}
		m.Set(bit)
	}
	return m, nil
}

// Names expands mask into permission names in registration order.
func (r *Registry) Names(mask Mask) []string {
	var out []string
	for bit, name := range r.names {
		if mask.Has(bit) {
			out = append(out, name)
		}
	}
	return out
}
