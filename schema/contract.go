package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Slot names a configurable endpoint shape.
type Slot string

const (
	SlotObtainPair     Slot = "TOKEN_OBTAIN_PAIR_INPUT_SCHEMA"
	SlotRefreshPair    Slot = "TOKEN_OBTAIN_PAIR_REFRESH_INPUT_SCHEMA"
	SlotObtainSliding  Slot = "TOKEN_OBTAIN_SLIDING_INPUT_SCHEMA"
	SlotRefreshSliding Slot = "TOKEN_OBTAIN_SLIDING_REFRESH_INPUT_SCHEMA"
	SlotVerify         Slot = "TOKEN_VERIFY_INPUT_SCHEMA"
	SlotBlacklist      Slot = "TOKEN_BLACKLIST_INPUT_SCHEMA"
)

// Contract names the capability a slot requires.
const (
	ContractObtain = "schema.ObtainSchema"
	ContractToken  = "schema.InputSchema[schema.TokenInput]"
)

// Slots lists every slot in a stable order.
func Slots() []Slot {
	return []Slot{SlotObtainPair, SlotRefreshPair, SlotObtainSliding, SlotRefreshSliding, SlotVerify, SlotBlacklist}
}

// Contract returns the capability required by slot.
func (s Slot) Contract() string {
	switch s {
	case SlotObtainPair, SlotObtainSliding:
		return ContractObtain
	default:
		return ContractToken
	}
}

// Input is one decoded request body.
type Input interface {
	Validate() error
}

// InputSchema creates empty inputs for a request body to be decoded into.
// NewInput must return a pointer so that JSON decoding can fill it.
type InputSchema interface {
	NewInput() Input
}

// TokenInput is an input carrying exactly one raw token.
type TokenInput interface {
	Input
	RawToken() string
}

// Credentials are the caller supplied values exchanged for tokens.
type Credentials struct {
	Identifier string
	Secret     string
}

// ObtainInput is an input carrying credentials.
type ObtainInput interface {
	Input
	Credentials() Credentials
}

// Identity is the authenticated user handed to ToResponse.
type Identity struct {
	UserID     string
	Attributes map[string]any
}

// Tokens holds the freshly issued tokens; unused fields are empty.
type Tokens struct {
	Access  string
	Refresh string
	Token   string
}

// ObtainSchema shapes a credential exchange: it builds inputs, describes the
// response shape, and renders the response.
type ObtainSchema interface {
	InputSchema
	ResponseSchema() any
	ToResponse(in Input, id Identity, tokens Tokens) (any, error)
}

// ErrContractMismatch matches every *ContractError.
var ErrContractMismatch = errors.New("schema contract mismatch")

// ContractError reports a slot whose component does not satisfy its contract.
type ContractError struct {
	Slot      Slot
	Contract  string
	Component string
	Reason    string
}

func (e *ContractError) Error() string {
	msg := fmt.Sprintf("%s type must implement %s", e.Slot, e.Contract)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *ContractError) Unwrap() error {
	return ErrContractMismatch
}

// Registry maps component names to schema components. The zero value is not
// usable; call [NewRegistry].
type Registry struct {
	mu         sync.RWMutex
	components map[string]any
}

// NewRegistry returns a registry holding the default component of every slot.
func NewRegistry() *Registry {
	r := &Registry{components: make(map[string]any, 8)}
	for slot, name := range DefaultNames() {
		r.components[name] = defaultComponents[slot]
	}
	return r
}

// Register stores component under name, replacing any previous entry.
func (r *Registry) Register(name string, component any) error {
	if name == "" {
		return errors.New("schema component name must not be empty")
	}
	if component == nil {
		return fmt.Errorf("schema component %q is nil", name)
	}
	r.mu.Lock()
	r.components[name] = component
	r.mu.Unlock()
	return nil
}

// Lookup returns the component registered under name.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c, ok
}

// Names returns the registered component names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.components))
	for name := range r.components {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Set is the resolved component of every slot.
type Set struct {
	obtain map[Slot]ObtainSchema
	input  map[Slot]InputSchema
}

// Obtain returns the component of an obtain slot.
func (s *Set) Obtain(slot Slot) ObtainSchema {
	return s.obtain[slot]
}

// Input returns the component of a slot; obtain slots are included.
func (s *Set) Input(slot Slot) InputSchema {
	return s.input[slot]
}

// Check resolves the component configured for each slot and asserts its
// contract. Slots missing from configured use their default name.
func Check(r *Registry, configured map[Slot]string) (*Set, error) {
	if r == nil {
		return nil, errors.New("schema registry is nil")
	}
	for slot := range configured {
		if !knownSlot(slot) {
			return nil, fmt.Errorf("unknown schema slot %q", slot)
		}
	}

	defaults := DefaultNames()
	set := &Set{
		obtain: make(map[Slot]ObtainSchema, 2),
		input:  make(map[Slot]InputSchema, 6),
	}

	for _, slot := range Slots() {
		name := configured[slot]
		if name == "" {
			name = defaults[slot]
		}
		mismatch := func(reason string) error {
			return &ContractError{Slot: slot, Contract: slot.Contract(), Component: name, Reason: reason}
		}

		component, ok := r.Lookup(name)
		if !ok {
			return nil, mismatch(fmt.Sprintf("component %q is not registered", name))
		}

		switch slot.Contract() {
		case ContractObtain:
			obtain, ok := component.(ObtainSchema)
			if !ok {
				return nil, mismatch("")
			}
			in := safeNewInput(obtain)
			if _, ok := in.(ObtainInput); !ok {
				return nil, mismatch("inputs must carry credentials")
			}
			set.obtain[slot] = obtain
			set.input[slot] = obtain
		default:
			schema, ok := component.(InputSchema)
			if !ok {
				return nil, mismatch("")
			}
			if _, ok := safeNewInput(schema).(TokenInput); !ok {
				return nil, mismatch("inputs must carry a raw token")
			}
			set.input[slot] = schema
		}
	}
	return set, nil
}

// safeNewInput calls NewInput, treating a panic as an unusable component.
func safeNewInput(s InputSchema) (in Input) {
	defer func() {
		if recover() != nil {
			in = nil
		}
	}()
	return s.NewInput()
}

func knownSlot(slot Slot) bool {
	for _, s := range Slots() {
		if s == slot {
			return true
		}
	}
	return false
}
