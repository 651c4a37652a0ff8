package mapping

import "maps"

// FieldMapping maps a destination field name to the part written into it.
type FieldMapping map[string]Part

// Clone returns an independent copy of m.
func (m FieldMapping) Clone() FieldMapping {
	if m == nil {
		return FieldMapping{}
	}
	return maps.Clone(m)
}

// Destination holds the values of the destination form fields.
type Destination map[string]string

// Clone returns an independent copy of d.
func (d Destination) Clone() Destination {
	if d == nil {
		return Destination{}
	}
	return maps.Clone(d)
}

// Apply writes the resolved parts of addr into a copy of current.
//
// Fields mapped to Unmapped are skipped. A part whose value is empty leaves
// the field as it was: Apply never clears anything, see Clear for that.
// Neither input is modified.
func Apply(addr PartSource, current Destination, m FieldMapping) Destination {
	next := current.Clone()
	if addr == nil {
		return next
	}

	for field, part := range m {
		if part == Unmapped {
			continue
		}
		if value := addr.Part(part); value != "" {
			next[field] = value
		}
	}
	return next
}

// Clear returns a copy of current with every address-mapped field emptied.
// Fields the mapping does not touch keep their value.
func Clear(current Destination, m FieldMapping) Destination {
	next := current.Clone()
	for field, part := range m {
		if part != Unmapped {
			next[field] = ""
		}
	}
	return next
}
