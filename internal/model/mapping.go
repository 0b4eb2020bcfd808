package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MappingSlots lists the button slots of romMapping in device order.
var MappingSlots = []string{"a", "b", "x", "y", "dpad", "select", "start", "l1", "l2", "r1", "r2"}

// Mapping is the romMapping sub document. Unused slots hold NullValue.
type Mapping map[string]string

// DefaultMapping returns a mapping with every slot unset.
func DefaultMapping() Mapping {
	m := make(Mapping, len(MappingSlots))
	for _, slot := range MappingSlots {
		m[slot] = NullValue
	}
	return m
}

// IsMappingSlot reports whether slot is a known button slot.
func IsMappingSlot(slot string) bool {
	for _, s := range MappingSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// Set assigns value to slot. An empty value resets the slot.
func (m Mapping) Set(slot, value string) error {
	slot = strings.ToLower(strings.TrimSpace(slot))
	if !IsMappingSlot(slot) {
		return fmt.Errorf("unknown mapping slot %q", slot)
	}
	m[slot] = orNull(value)
	return nil
}

// Clone returns an independent copy.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m Mapping) normalized() map[string]string {
	out := make(map[string]string, len(MappingSlots))
	for k, v := range m {
		out[k] = v
	}
	for _, slot := range MappingSlots {
		out[slot] = orNull(out[slot])
	}
	return out
}

func (m Mapping) decode(raw json.RawMessage) error {
	var values map[string]interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return err
	}
	for k, v := range values {
		switch val := v.(type) {
		case nil:
			m[k] = NullValue
		case string:
			m[k] = val
		default:
			m[k] = fmt.Sprint(val)
		}
	}
	return nil
}
