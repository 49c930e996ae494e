package hxbus

import (
	"errors"

	"github.com/pthm/hxbus/lib/viewstate"
)

// Codec is an alias for viewstate.Codec for convenience.
type Codec = viewstate.Codec

// NewCodec creates a view state codec with the given key.
func NewCodec(key []byte) (*Codec, error) {
	return viewstate.NewCodec(key)
}

// wrapStateError maps viewstate errors to hxbus sentinel errors.
func wrapStateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, viewstate.ErrSignatureInvalid) {
		return ErrSignatureInvalid
	}
	if errors.Is(err, viewstate.ErrDecryptFailed) {
		return ErrDecryptFailed
	}
	return ErrInvalidState
}

// pageState adapts a tree to the codec's Encodable and Decodable.
type pageState struct {
	root *Element
}

func (s pageState) HXEncode() map[string]any {
	return snapshot(s.root)
}

func (s pageState) HXDecode(m map[string]any) error {
	return restore(s.root, m)
}

// snapshot collects the durable state of every observer and producer host
// in the tree, keyed by client id.
func snapshot(root *Element) map[string]any {
	state := make(map[string]any)
	root.Walk(func(e *Element) bool {
		entry := map[string]any{}
		if e.Observer != nil {
			entry["o"] = e.Observer.HXEncode()
		}
		if len(e.Producers) > 0 {
			ps := make([]any, 0, len(e.Producers))
			for _, p := range e.Producers {
				ps = append(ps, p.HXEncode())
			}
			entry["p"] = ps
		}
		if len(entry) > 0 {
			state[e.ClientID()] = entry
		}
		return true
	})
	return state
}

// restore applies a snapshot to the tree. Entries for unknown client ids
// are ignored.
func restore(root *Element, state map[string]any) error {
	for cid, raw := range state {
		entry, ok := raw.(map[string]any)
		if !ok {
			return ErrInvalidState
		}
		e := root.Lookup(cid)
		if e == nil {
			continue
		}
		if o, ok := entry["o"].(map[string]any); ok && e.Observer != nil {
			if err := e.Observer.HXDecode(o); err != nil {
				return err
			}
		}
		if ps, ok := entry["p"].([]any); ok {
			producers := make([]Producer, 0, len(ps))
			for _, item := range ps {
				m, ok := item.(map[string]any)
				if !ok {
					return ErrInvalidState
				}
				var p Producer
				if err := p.HXDecode(m); err != nil {
					return err
				}
				producers = append(producers, p)
			}
			e.Producers = producers
		}
	}
	return nil
}
