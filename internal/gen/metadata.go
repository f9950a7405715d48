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

package gen

import (
	"strconv"

	"google.golang.org/protobuf/reflect/protoreflect"

	"buf.build/go/upbgen/internal/ir"
)

// sizeMacro renders a dual size as the real upb runtime's UPB_SIZE(a32, a64)
// macro, which the preprocessor/compiler resolves to whichever of its two
// arguments matches sizeof(void*) on the target. This is the one place the
// generator's dual-size data model (ir.DualSize) surfaces directly in the
// emitted text, per spec.md section 3.
func sizeMacro(d ir.DualSize) string {
	return "UPB_SIZE(" + strconv.Itoa(int(d.S32)) + ", " + strconv.Itoa(int(d.S64)) + ")"
}

// EmitSubmsgArray writes the static array of submessage upb_MiniTable
// pointers a message's upb_MiniTable points to, or nothing if the message
// references no submessages (spec.md section 4.5: "pointer ... or null").
func EmitSubmsgArray(s *Sink, m *ir.MessageIR) {
	if len(m.Submsgs.Types) == 0 {
		return
	}
	name := MessageName(m.Desc)
	s.Printf("static const upb_MiniTable *const %s_submsgs[%d] = {\n", name, len(m.Submsgs.Types))
	for _, t := range m.Submsgs.Types {
		s.Printf("  &%s,\n", MessageInit(t))
	}
	s.WriteString("};\n\n")
}

// EmitFieldArray writes the per-field metadata array spec.md section 4.5
// describes: field number, offset, presence encoding, submsg index,
// table-descriptor type, and label, one entry per field, in ascending
// field-number order.
func EmitFieldArray(s *Sink, m *ir.MessageIR) {
	if len(m.FieldsByNumber) == 0 {
		return
	}
	name := MessageName(m.Desc)
	s.Printf("static const upb_MiniTableField %s__fields[%d] = {\n", name, len(m.FieldsByNumber))
	for _, fd := range m.FieldsByNumber {
		emitFieldEntry(s, m, fd)
	}
	s.WriteString("};\n\n")
}

func emitFieldEntry(s *Sink, m *ir.MessageIR, fd protoreflect.FieldDescriptor) {
	presence := presenceEncoding(m, fd)
	submsgIdx := "kUpb_NoSub"
	if idx, ok := m.Submsgs.IndexOf(fd); ok {
		submsgIdx = strconv.Itoa(idx)
	}

	s.Printf(
		"  {%d, %s, %s, %s, %s, %s},\n",
		fd.Number(),
		sizeMacro(m.Layout.FieldOffset(fd)),
		presence,
		submsgIdx,
		tableDescriptorType(fd),
		fieldLabel(fd),
	)
}

// presenceEncoding implements spec.md section 4.5: 0 for no presence
// tracking, a positive has-bit index, or the bitwise complement of the
// oneof case-tag offset for a oneof member (the sign distinguishes the two
// cases at runtime).
func presenceEncoding(m *ir.MessageIR, fd protoreflect.FieldDescriptor) string {
	if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
		return "~" + sizeMacro(m.Layout.OneofCaseOffset(od))
	}
	if idx, ok := m.Layout.HasBitIndex(fd); ok {
		return strconv.Itoa(int(idx))
	}
	return "0"
}

// EmitFastTable writes the fast-decode dispatch table spec.md section 4.3
// built (ir.BuildFastTable), as the array upb_decode's hot path indexes.
func EmitFastTable(s *Sink, m *ir.MessageIR) {
	if len(m.FastTable) == 0 {
		return
	}
	name := MessageName(m.Desc)
	s.Printf("static const struct upb_decode_FastTableEntry %s_fasttable[%d] = {\n", name, len(m.FastTable))
	for _, slot := range m.FastTable {
		if !slot.Populated {
			s.Printf("  {&%s, 0},\n", slot.Handler)
			continue
		}
		s.Printf("  {&%s, 0x%xULL}, /* 32-bit: 0x%x */\n", slot.Handler, slot.Data64, slot.Data32)
	}
	s.WriteString("};\n\n")
}

// EmitMsgLayout writes the per-message upb_MiniTable record: the submsg and
// field array pointers (or NULL), the table-size-derived mask
// `(table_size - 1) << 3`, the message size, field count, and the
// (always-false, in this version) extendable flag, per spec.md section 4.5.
func EmitMsgLayout(s *Sink, m *ir.MessageIR) {
	name := MessageName(m.Desc)
	submsgs := "NULL"
	if len(m.Submsgs.Types) > 0 {
		submsgs = name + "_submsgs"
	}
	fields := "NULL"
	if len(m.FieldsByNumber) > 0 {
		fields = name + "__fields"
	}
	mask := (len(m.FastTable) - 1) << 3

	s.Printf("const upb_MiniTable %s = {\n", MessageInit(m.Desc))
	s.Printf("  .submsgs = %s,\n", submsgs)
	s.Printf("  .fields = %s,\n", fields)
	s.Printf("  .size = %s,\n", sizeMacro(m.Layout.MessageSize()))
	s.Printf("  .field_count = %d,\n", len(m.FieldsByNumber))
	s.Printf("  .table_mask = 0x%x,\n", mask)
	s.Printf("  .ext = kUpb_ExtMode_NonExtendable,\n")
	s.Printf("  .dense_below = %d,\n", len(m.FieldsByNumber))
	s.Printf("  .table = %s_fasttable,\n", name)
	s.WriteString("};\n\n")
}
