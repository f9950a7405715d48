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
	"fmt"
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"

	"buf.build/go/upbgen/internal/debug"
)

// Layout answers layout queries for a single message, computed once and
// never recomputed: has-bit indices, field offsets, oneof case offsets, and
// total message size, each dual (32-bit ABI, 64-bit ABI).
//
// Grounded on internal/tdp/compiler.ir.doLayout in the teacher, simplified
// to the non-hot/cold algorithm spec.md section 4.1 describes (the teacher
// additionally splits storage into a hot/cold region driven by a decode
// profile; that is a runtime parsing optimization out of scope here, see
// DESIGN.md).
type Layout struct {
	md protoreflect.MessageDescriptor

	hasBit    map[protoreflect.FieldDescriptor]uint32
	fieldOff  map[protoreflect.FieldDescriptor]DualSize
	oneofOff  map[protoreflect.FullName]DualSize
	size      DualSize
	dataStart DualSize
	maxHasBit uint32
}

// HasBitIndex returns the has-bit index assigned to fd and true, or
// (0, false) if fd does not carry a has-bit. When present, the index is
// always >= 1.
func (l *Layout) HasBitIndex(fd protoreflect.FieldDescriptor) (uint32, bool) {
	idx, ok := l.hasBit[fd]
	return idx, ok
}

// FieldOffset returns the dual byte offset of fd's storage. For a field
// that belongs to a oneof, this is the shared slot offset (see
// OneofCaseOffset for the tag that records which alternative is live).
func (l *Layout) FieldOffset(fd protoreflect.FieldDescriptor) DualSize {
	return l.fieldOff[fd]
}

// OneofCaseOffset returns the dual byte offset of the 4-byte case tag for
// the given oneof.
func (l *Layout) OneofCaseOffset(od protoreflect.OneofDescriptor) DualSize {
	return l.oneofOff[od.FullName()]
}

// MessageSize returns the total dual size of the generated struct, rounded
// up to 8 bytes under both ABIs.
func (l *Layout) MessageSize() DualSize { return l.size }

// DataStart returns the byte offset at which non-hasbit field storage
// begins; identical under both ABIs since has-bits are byte-granular.
func (l *Layout) DataStart() DualSize { return l.dataStart }

// pseudoField is one placeable unit in the packing pass: either a single
// non-oneof field, a oneof's shared storage slot, or a oneof's case tag.
type pseudoField struct {
	sa     sizeAlign
	decl   int // declaration index used to break placement ties
	fields []protoreflect.FieldDescriptor
	oneof  protoreflect.OneofDescriptor // non-nil for a slot or case tag
	isTag  bool
}

// computeLayout runs the Layout Engine algorithm from spec.md section 4.1
// for a single message.
func computeLayout(md protoreflect.MessageDescriptor) *Layout {
	l := &Layout{
		md:       md,
		hasBit:   map[protoreflect.FieldDescriptor]uint32{},
		fieldOff: map[protoreflect.FieldDescriptor]DualSize{},
		oneofOff: map[protoreflect.FullName]DualSize{},
	}

	fields := md.Fields()

	// Step 1: assign has-bit indices in declaration order, starting at 1.
	var next uint32 = 1
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if needsHasBit(fd) {
			l.hasBit[fd] = next
			l.maxHasBit = next
			next++
		}
	}
	var hasBitBytes int32
	if len(l.hasBit) > 0 {
		hasBitBytes = int32((l.maxHasBit + 1 + 7) / 8) // ceil((H+1)/8)
	}
	dataStart := roundUp32(hasBitBytes, 8)
	l.dataStart = DualSize{dataStart, dataStart}

	// Steps 2-4: build one pseudo-field per non-oneof field, and for every
	// distinct oneof one storage-slot pseudo-field sized to its widest
	// alternative plus a separate 4-byte case-tag pseudo-field. Protoc
	// places oneof members contiguously, so the oneof's declaration index
	// is simply that of its first member.
	pfs := buildPseudoFields(fields)

	// Placement order: largest alignment first (8,4,2,1), ties broken by
	// declaration order.
	sort.SliceStable(pfs, func(i, j int) bool {
		ai, aj := pfs[i].sa.Align.S64, pfs[j].sa.Align.S64
		if ai != aj {
			return ai > aj
		}
		return pfs[i].decl < pfs[j].decl
	})

	watermark := l.dataStart
	for _, pf := range pfs {
		watermark = watermark.RoundUp(pf.sa.Align)
		off := watermark
		switch {
		case pf.isTag:
			l.oneofOff[pf.oneof.FullName()] = off
		default:
			for _, fd := range pf.fields {
				l.fieldOff[fd] = off
			}
		}
		watermark = watermark.Add(pf.sa.Size)
	}

	l.size = watermark.RoundUp(DualSize{8, 8})

	if debug.Enabled {
		debug.Log(nil, "layout", "%s: datastart=%v size=%v", md.FullName(), l.dataStart, l.size)
	}

	return l
}

func buildPseudoFields(fields protoreflect.FieldDescriptors) []pseudoField {
	var pfs []pseudoField
	bySlot := map[protoreflect.FullName]int{} // oneof full name -> index into pfs

	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		od := fd.ContainingOneof()

		if isRealOneofMember(fd) {
			if idx, ok := bySlot[od.FullName()]; ok {
				slot := &pfs[idx]
				slot.sa = slot.sa.widen(sizeAlignOf(classify(fd)))
				slot.fields = append(slot.fields, fd)
				continue
			}

			bySlot[od.FullName()] = len(pfs)
			pfs = append(pfs, pseudoField{
				sa:     sizeAlignOf(classify(fd)),
				fields: []protoreflect.FieldDescriptor{fd},
				oneof:  od,
				decl:   i,
			})
			pfs = append(pfs, pseudoField{
				sa:    caseTagSA,
				oneof: od,
				isTag: true,
				decl:  i,
			})
			continue
		}

		// Ordinary singular/repeated/map field, or a proto3-optional field
		// (which uses a synthetic oneof for presence tracking at the
		// descriptor level, but is laid out as an ordinary hasbit field).
		pfs = append(pfs, pseudoField{
			sa:     sizeAlignOf(classify(fd)),
			fields: []protoreflect.FieldDescriptor{fd},
			decl:   i,
		})
	}

	return pfs
}

func (sa sizeAlign) widen(other sizeAlign) sizeAlign {
	return sizeAlign{
		Size:  sa.Size.Max(other.Size),
		Align: sa.Align.Max(other.Align),
	}
}

// String implements fmt.Stringer for debug dumps.
func (l *Layout) String() string {
	return fmt.Sprintf("Layout{%s, size=%v}", l.md.FullName(), l.size)
}
