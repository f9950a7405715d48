// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ir

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

// FastTableSlot is one entry of the fast-decode dispatch table: a handler
// name and a 64-bit packed data word, one pair per ABI.
type FastTableSlot struct {
	Handler   string
	Data32    uint64
	Data64    uint64
	Populated bool // false means this slot is the generic fallback.
}

const fallbackHandler = "upb_pfallback"

// BuildFastTable implements the Fast-Decode Table Builder from spec.md
// section 4.3. Grounded on the dispatch-table construction in the teacher's
// internal/tdp/compiler.compiler.codegen (there: a swiss-hashed table of
// tag -> parser offset consumed by a runtime VM; here: a fixed power-of-two
// array of textual handler names and packed data words, since the output is
// C source instead of an in-memory jump table).
func BuildFastTable(md protoreflect.MessageDescriptor, l *Layout, subs *SubmsgIndex, sizes map[protoreflect.FullName]DualSize) []FastTableSlot {
	tableSize := 1
	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		n := int(fields.Get(i).Number())
		if n >= 32 {
			continue
		}
		for n >= tableSize {
			tableSize *= 2
		}
	}

	slots := make([]FastTableSlot, tableSize)
	for i := range slots {
		slots[i] = FastTableSlot{Handler: fallbackHandler}
	}

	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		n := int(fd.Number())
		if n > 0xFFFF {
			continue // exceeds the two-byte tag limit.
		}

		typeCode, wireType, ok := fastTypeCode(fd)
		if !ok {
			continue
		}
		cardCode, ok := fastCardinalityCode(fd)
		if !ok {
			continue
		}
		if n >= tableSize {
			// Mirrors the original's FindFieldByNumber(i) loop, which only
			// ever looks up field numbers below table_size: a field past
			// the end of the table has no slot and falls back, rather than
			// wrapping around into another field's slot.
			continue
		}

		tag := uint64(n)<<3 | uint64(wireType)
		tagSizeBytes := 1
		if n > 15 {
			tag |= 0x100
			tagSizeBytes = 2
		}

		hbSlot := uint64(0)
		if idx, ok := l.HasBitIndex(fd); ok && idx <= 31 {
			hbSlot = uint64(idx) + 16
		}

		handler := formatHandlerName(cardCode, typeCode, tagSizeBytes, fd, sizes)

		slots[n] = FastTableSlot{
			Handler:   handler,
			Data32:    packData(tag, hbSlot, fd, l.FieldOffset(fd).S32, subs, typeCode == "m"),
			Data64:    packData(tag, hbSlot, fd, l.FieldOffset(fd).S64, subs, typeCode == "m"),
			Populated: true,
		}
	}

	return slots
}

// packData packs the 64-bit fast-decode data word described in spec.md
// section 4.3:
//
//	bits 0-15:  expected tag
//	bits 16-31: (message) submsg index, or (scalar) hasbit mask high bits
//	bits 32-47: (message) hasbit-slot number, or (scalar) more of the mask
//	bits 48-63: field offset
func packData(tag, hbSlot uint64, fd protoreflect.FieldDescriptor, offset int32, subs *SubmsgIndex, isMessage bool) uint64 {
	data := uint64(uint32(offset))<<48 | tag

	if isMessage {
		idx, _ := subs.IndexOf(fd)
		data |= uint64(uint32(idx))<<16 | hbSlot<<32
		return data
	}

	mask := (uint64(1) << hbSlot) &^ 0xFFFF
	return data | mask
}

// fastTypeCode returns the type code and protobuf wire type for fd's fast
// table entry, or ok=false if the kind is not supported by the fast path
// (map, group, and the fixed-width integer kinds).
func fastTypeCode(fd protoreflect.FieldDescriptor) (code string, wireType int, ok bool) {
	if fd.IsMap() {
		return "", 0, false
	}
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return "b1", 0, true
	case protoreflect.Int32Kind, protoreflect.Uint32Kind, protoreflect.EnumKind:
		return "v4", 0, true
	case protoreflect.Int64Kind, protoreflect.Uint64Kind:
		return "v8", 0, true
	case protoreflect.Sint32Kind:
		return "z4", 0, true
	case protoreflect.Sint64Kind:
		return "z8", 0, true
	case protoreflect.StringKind, protoreflect.BytesKind:
		return "s", 2, true
	case protoreflect.MessageKind:
		return "m", 2, true
	default:
		// Group, fixed32, fixed64, sfixed32, sfixed64: not supported.
		return "", 0, false
	}
}

// fastCardinalityCode returns the cardinality code for fd, or ok=false for
// the unsupported combinations spec.md section 4.3 lists: repeated
// non-message fields, and any field inside a oneof.
func fastCardinalityCode(fd protoreflect.FieldDescriptor) (code string, ok bool) {
	if isRealOneofMember(fd) {
		return "", false
	}
	if fd.IsList() {
		if fd.Kind() == protoreflect.MessageKind {
			return "r", true
		}
		return "", false
	}
	return "s", true
}

// formatHandlerName builds the upb_p{c}{t}_{1,2}bt[_max{N}b] handler name
// from spec.md section 4.3.
func formatHandlerName(cardCode, typeCode string, tagSizeBytes int, fd protoreflect.FieldDescriptor, sizes map[protoreflect.FullName]DualSize) string {
	name := "upb_p" + cardCode + typeCode + "_"
	if tagSizeBytes == 2 {
		name += "2bt"
	} else {
		name += "1bt"
	}

	if typeCode != "m" {
		return name
	}

	target := fd.Message()
	if target == nil {
		return name + "_maxmaxb"
	}

	// The submessage's own size is only known if it was laid out as part of
	// this same generation pass. Descriptor cycles and cross-file
	// submessages never get recursed into for layout (spec.md section 9),
	// so their size is unknown here.
	size, known := sizes[target.FullName()]
	if !known {
		return name + "_maxmaxb"
	}

	// The "+8" is verbatim from the source this system is modeled on; its
	// rationale (likely an arena allocation header) is not documented.
	threshold := size.S64 + 8
	for _, n := range []int32{64, 128, 192, 256} {
		if threshold <= n {
			return name + "_max" + itoa(n) + "b"
		}
	}
	return name + "_maxmaxb"
}

func itoa(n int32) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
