// Package platform maps free-text publishing platform names onto the fixed
// eight-slot layout the content workflows expect.
package platform

import "strings"

// SlotCount is the number of platform slots in every normalized payload.
const SlotCount = 8

// Order is the canonical slot order. The index of a name is its slot.
var Order = [SlotCount]string{
	"twitter",
	"linkedin",
	"newsletter",
	"facebook",
	"instagram",
	"youtube",
	"tiktok",
	"blog",
}

var slotIndex = func() map[string]int {
	out := make(map[string]int, SlotCount)
	for i, name := range Order {
		out[name] = i
	}
	return out
}()

// Slots is a normalized platform selection. Empty strings mark unused slots.
type Slots [SlotCount]string

// Normalize places every recognised name at its canonical index.
// Unknown names are dropped and duplicates land on the same slot.
func Normalize(raw []string) Slots {
	var out Slots
	for _, item := range raw {
		name := strings.ToLower(strings.TrimSpace(item))
		if idx, ok := slotIndex[name]; ok {
			out[idx] = name
		}
	}
	return out
}

// Index returns the canonical slot of name, or -1.
func Index(name string) int {
	if idx, ok := slotIndex[strings.ToLower(strings.TrimSpace(name))]; ok {
		return idx
	}
	return -1
}

// Names returns the selected platforms in canonical order.
func (s Slots) Names() []string {
	out := make([]string, 0, SlotCount)
	for _, name := range s {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Slice returns all eight slots, empty ones included.
func (s Slots) Slice() []string {
	out := make([]string, SlotCount)
	copy(out, s[:])
	return out
}

// IsCanonical reports whether v, typically a decoded JSON value, is already
// an eight-slot string array in canonical order.
func IsCanonical(v any) bool {
	var items []string
	switch typed := v.(type) {
	case Slots:
		return typed == Normalize(typed.Names())
	case []string:
		items = typed
	case []any:
		items = make([]string, 0, len(typed))
		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return false
			}
			items = append(items, s)
		}
	default:
		return false
	}
	if len(items) != SlotCount {
		return false
	}
	for i, item := range items {
		if item != "" && item != Order[i] {
			return false
		}
	}
	return true
}

// FromAny extracts a free-text platform list from a loosely typed value.
// Non-string entries are ignored.
func FromAny(v any) []string {
	switch typed := v.(type) {
	case nil:
		return nil
	case Slots:
		return typed.Names()
	case string:
		return strings.Split(typed, ",")
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
