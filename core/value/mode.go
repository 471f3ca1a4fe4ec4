package value

// Reserved keys of the Mode value convention: {"mode": <variant>, "value": {...}}.
const (
	ModeKey      = "mode"
	ModeValueKey = "value"
)

// Mode builds the convention Object selecting variant with the given
// variant-relative field values. A nil fields map yields an empty value map.
func Mode(variant string, fields map[string]Value) Value {
	return Object(map[string]Value{
		ModeKey:      Text(variant),
		ModeValueKey: Object(fields),
	})
}

// AsMode decodes the Mode convention. It accepts a bare Text variant key
// or an Object with a Text "mode" entry and an optional Object "value"
// entry; any other key makes the Object a plain value.
func (v Value) AsMode() (variant string, fields Value, ok bool) {
	switch v.kind {
	case KindText:
		return v.s, Object(nil), true
	case KindObject:
		m, found := v.obj[ModeKey]
		if !found || m.kind != KindText {
			return "", Value{}, false
		}
		for k := range v.obj {
			if k != ModeKey && k != ModeValueKey {
				return "", Value{}, false
			}
		}
		inner, found := v.obj[ModeValueKey]
		switch {
		case !found || inner.kind == KindNull:
			inner = Object(nil)
		case inner.kind != KindObject:
			return "", Value{}, false
		}
		return m.s, inner, true
	}
	return "", Value{}, false
}
