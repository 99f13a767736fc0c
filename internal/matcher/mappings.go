package matcher

import "strings"

// GlobalContext is the mapping context that applies on every site.
const GlobalContext = "global"

// IgnoreSentinel is the reserved mapping value meaning "never
// auto-fill this field".
const IgnoreSentinel = "-"

// Mappings are manually confirmed field -> profile-key overrides,
// keyed by context ("global" or a hostname) and then by field
// identifier (name, id or label text). A field identifier lives in at
// most one context at a time: saving site-specific removes the global
// entry for the same identifier, and vice versa.
type Mappings map[string]map[string]string

// Lookup finds an override for a field identifier, site context
// winning over global. Identifiers compare case-insensitively.
func (m Mappings) Lookup(context string, identifiers ...string) (string, bool) {
	for _, ctx := range []string{context, GlobalContext} {
		if ctx == "" {
			continue
		}
		bucket, ok := m[ctx]
		if !ok {
			continue
		}
		for _, id := range identifiers {
			if id == "" {
				continue
			}
			for k, v := range bucket {
				if strings.EqualFold(k, id) {
					return v, true
				}
			}
		}
		if ctx == GlobalContext {
			break
		}
	}
	return "", false
}

// Set writes an override, removing any entry for the same identifier
// in the opposite scope. An empty key deletes the entry entirely.
func (m Mappings) Set(context, fieldID, key string, global bool) {
	target := context
	other := GlobalContext
	if global {
		target = GlobalContext
		other = context
	}
	if other != "" && other != target {
		m.deleteFrom(other, fieldID)
	}
	if key == "" {
		m.deleteFrom(target, fieldID)
		return
	}
	if m[target] == nil {
		m[target] = make(map[string]string)
	}
	m[target][fieldID] = key
}

// Clone returns a deep copy.
func (m Mappings) Clone() Mappings {
	out := Mappings{}
	for ctx, bucket := range m {
		copied := make(map[string]string, len(bucket))
		for k, v := range bucket {
			copied[k] = v
		}
		out[ctx] = copied
	}
	return out
}

// Delete removes a field identifier from a context.
func (m Mappings) Delete(context, fieldID string) {
	m.deleteFrom(context, fieldID)
}

func (m Mappings) deleteFrom(context, fieldID string) {
	bucket, ok := m[context]
	if !ok {
		return
	}
	for k := range bucket {
		if strings.EqualFold(k, fieldID) {
			delete(bucket, k)
		}
	}
	if len(bucket) == 0 {
		delete(m, context)
	}
}
