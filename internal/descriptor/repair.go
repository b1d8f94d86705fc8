package descriptor

import (
	"cmp"
	"slices"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"
)

// applyRepairs fixes descriptor quirks produced by non-protoc generators that
// protodesc would otherwise reject. It reports whether anything changed.
func applyRepairs(fd *descriptorpb.FileDescriptorProto) bool {
	ranges := fixReservedRanges(fd)
	entries := fixMapEntryNames(fd)
	return ranges || entries
}

// fixReservedRanges makes message reserved ranges acceptable to protodesc.
// Inverted bounds are swapped, empty ranges [n, n) are widened to cover n and
// overlapping ranges are merged. Message reserved range ends are exclusive.
func fixReservedRanges(fd *descriptorpb.FileDescriptorProto) bool {
	fixed := false
	var walk func(msgs []*descriptorpb.DescriptorProto)
	walk = func(msgs []*descriptorpb.DescriptorProto) {
		for _, msg := range msgs {
			for _, rr := range msg.GetReservedRange() {
				start, end := rr.GetStart(), rr.GetEnd()
				switch {
				case end < start:
					rr.Start, rr.End = &end, &start
					fixed = true
				case end == start:
					end++
					rr.End = &end
					fixed = true
				}
			}
			if merged, ok := mergeReservedRanges(msg.GetReservedRange()); ok {
				msg.ReservedRange = merged
				fixed = true
			}
			walk(msg.GetNestedType())
		}
	}
	walk(fd.GetMessageType())
	return fixed
}

// mergeReservedRanges folds overlapping ranges together. It reports false and
// leaves the slice untouched when no two ranges overlap.
func mergeReservedRanges(ranges []*descriptorpb.DescriptorProto_ReservedRange) ([]*descriptorpb.DescriptorProto_ReservedRange, bool) {
	if len(ranges) < 2 {
		return ranges, false
	}
	sorted := slices.Clone(ranges)
	slices.SortStableFunc(sorted, func(a, b *descriptorpb.DescriptorProto_ReservedRange) int {
		return cmp.Compare(a.GetStart(), b.GetStart())
	})

	merged := []*descriptorpb.DescriptorProto_ReservedRange{sorted[0]}
	changed := false
	for _, rr := range sorted[1:] {
		last := merged[len(merged)-1]
		if rr.GetStart() >= last.GetEnd() {
			merged = append(merged, rr)
			continue
		}
		if rr.GetEnd() > last.GetEnd() {
			end := rr.GetEnd()
			last.End = &end
		}
		changed = true
	}
	if !changed {
		return ranges, false
	}
	return merged, true
}

// fixMapEntryNames renames map entry types to <FieldName>Entry, the name
// protodesc requires, and rewrites the referencing field's type name.
func fixMapEntryNames(fd *descriptorpb.FileDescriptorProto) bool {
	fixed := false
	var walk func(prefix string, msgs []*descriptorpb.DescriptorProto)
	walk = func(prefix string, msgs []*descriptorpb.DescriptorProto) {
		for _, msg := range msgs {
			full := joinName(prefix, msg.GetName())
			for _, nested := range msg.GetNestedType() {
				if !nested.GetOptions().GetMapEntry() {
					continue
				}
				nestedFull := joinName(full, nested.GetName())
				for _, field := range msg.GetField() {
					if !refersTo(field.GetTypeName(), nestedFull) {
						continue
					}
					want := mapEntryName(field.GetName())
					if nested.GetName() == want {
						break
					}
					typeName := field.GetTypeName()
					typeName = typeName[:len(typeName)-len(nested.GetName())] + want
					field.TypeName = &typeName
					nested.Name = &want
					fixed = true
					break
				}
			}
			walk(full, msg.GetNestedType())
		}
	}
	walk(fd.GetPackage(), fd.GetMessageType())
	return fixed
}

// refersTo reports whether typeName, absolute (".a.b.C") or relative
// ("C", "b.C"), names the message fullName.
func refersTo(typeName, fullName string) bool {
	if typeName == "" {
		return false
	}
	if strings.HasPrefix(typeName, ".") {
		return typeName[1:] == fullName
	}
	return fullName == typeName || strings.HasSuffix(fullName, "."+typeName)
}

// mapEntryName converts a snake_case field name to the CamelCase map entry
// type name protoc generates.
func mapEntryName(fieldName string) string {
	var b strings.Builder
	upper := true
	for _, r := range fieldName {
		if r == '_' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	b.WriteString("Entry")
	return b.String()
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
