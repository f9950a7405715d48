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
	"google.golang.org/protobuf/reflect/protoreflect"

	"buf.build/go/upbgen/internal/debug"
	"buf.build/go/upbgen/internal/ir"
)

// EmitAccessors writes the inline accessor functions for every field of m,
// in ascending field-number order, per spec.md section 4.4. Map-entry
// messages never get here: their entries are reached through the
// containing map field's accessors (see emitMapAccessors), and the caller
// skips calling this for a message where m.Desc.IsMapEntry() is true.
//
// Group-encoded fields (the legacy, pre-proto2-message wire delimiting) are
// a descriptor-inconsistency per spec.md section 7's "descriptor cannot be
// classified" case: the field front end never produces one from `.proto`
// syntax, so seeing one here means the input came from somewhere else.
func EmitAccessors(s *Sink, m *ir.MessageIR) error {
	name := MessageName(m.Desc)
	for _, fd := range m.FieldsByNumber {
		if fd.Kind() == protoreflect.GroupKind {
			return debug.Unsupported()
		}
		emitPresence(s, name, m, fd)
		switch {
		case fd.IsMap():
			emitMapAccessors(s, name, m, fd)
		case fd.IsList():
			emitRepeatedAccessors(s, name, m, fd)
		default:
			emitSingularAccessors(s, name, m, fd)
		}
		s.WriteString("\n")
	}
	return nil
}

// emitPresence writes the hazzer (or oneof case check, or message
// pointer-non-null check) for fd.
func emitPresence(s *Sink, msg string, m *ir.MessageIR, fd protoreflect.FieldDescriptor) {
	fieldName := string(fd.Name())

	if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
		tagOff := sizeMacro(m.Layout.OneofCaseOffset(od))
		s.Printf("UPB_INLINE bool %s_has_%s(const struct %s* msg) {\n", msg, fieldName, msg)
		s.Printf("  return *UPB_PTR_AT(msg, %s, int32_t) == %d;\n", tagOff, fd.Number())
		s.WriteString("}\n")
		return
	}

	if idx, ok := m.Layout.HasBitIndex(fd); ok {
		s.Printf("UPB_INLINE bool %s_has_%s(const struct %s* msg) {\n", msg, fieldName, msg)
		s.Printf("  return _upb_hasbit(msg, %d);\n", idx)
		s.WriteString("}\n")
		return
	}

	if fd.Message() != nil && !fd.IsList() && !fd.IsMap() {
		off := sizeMacro(m.Layout.FieldOffset(fd))
		s.Printf("UPB_INLINE bool %s_has_%s(const struct %s* msg) {\n", msg, fieldName, msg)
		s.Printf("  return *UPB_PTR_AT(msg, %s, const upb_Message*) != NULL;\n", off)
		s.WriteString("}\n")
	}
}

func emitSingularAccessors(s *Sink, msg string, m *ir.MessageIR, fd protoreflect.FieldDescriptor) {
	fieldName := string(fd.Name())
	ctype := fieldCType(fd)
	off := sizeMacro(m.Layout.FieldOffset(fd))

	def := "NULL"
	if fd.Message() == nil {
		def = scalarDefault(fd)
	}

	s.Printf("UPB_INLINE %s %s_%s(const struct %s* msg) {\n", ctype, msg, fieldName, msg)
	if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
		s.Printf("  if (!%s_has_%s(msg)) return %s;\n", msg, fieldName, def)
	}
	s.Printf("  return *UPB_PTR_AT(msg, %s, %s);\n", off, ctype)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE void %s_set_%s(struct %s* msg, %s value) {\n", msg, fieldName, msg, ctype)
	s.Printf("  *UPB_PTR_AT(msg, %s, %s) = value;\n", off, ctype)
	if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
		tagOff := sizeMacro(m.Layout.OneofCaseOffset(od))
		s.Printf("  *UPB_PTR_AT(msg, %s, int32_t) = %d;\n", tagOff, fd.Number())
	} else if idx, ok := m.Layout.HasBitIndex(fd); ok {
		s.Printf("  _upb_sethasbit(msg, %d);\n", idx)
	}
	s.WriteString("}\n")

	if fd.Message() != nil {
		target := MessageName(fd.Message())
		s.Printf("UPB_INLINE struct %s* %s_mutable_%s(struct %s* msg, upb_Arena* arena) {\n", target, msg, fieldName, msg)
		s.Printf("  struct %s* sub = (struct %s*)%s_%s(msg);\n", target, target, msg, fieldName)
		s.WriteString("  if (sub == NULL) {\n")
		s.Printf("    sub = (struct %s*)_upb_Message_New(&%s, arena);\n", target, MessageInit(fd.Message()))
		s.Printf("    if (sub) %s_set_%s(msg, sub);\n", msg, fieldName)
		s.WriteString("  }\n  return sub;\n}\n")
	}
}

// EmitMessageWrappers writes the X_new/X_parse/X_serialize inline wrappers
// for m, per spec.md section 4.1 and the original's message_builder.cc
// equivalent (generator.cc:338-354): a constructor over _upb_Message_New,
// and encode/decode wrappers over the runtime's upb_Decode/upb_Encode,
// each with an `_ex` overload taking an extension registry or options.
// Callers never call this for a map-entry message: a map entry is only
// ever reached through its containing map field's accessors, so it has no
// standalone construction or wire format of its own.
func EmitMessageWrappers(s *Sink, m *ir.MessageIR) {
	msg := MessageName(m.Desc)
	init := MessageInit(m.Desc)

	s.Printf("UPB_INLINE struct %s* %s_new(upb_Arena* arena) {\n", msg, msg)
	s.Printf("  return (struct %s*)_upb_Message_New(&%s, arena);\n", msg, init)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE struct %s* %s_parse(const char* buf, size_t size, upb_Arena* arena) {\n", msg, msg)
	s.Printf("  struct %s* ret = %s_new(arena);\n", msg, msg)
	s.WriteString("  if (!ret) return NULL;\n")
	s.Printf("  if (upb_Decode(buf, size, UPB_UPCAST(ret), &%s, NULL, 0, arena) != kUpb_DecodeStatus_Ok) {\n", init)
	s.WriteString("    return NULL;\n")
	s.WriteString("  }\n")
	s.WriteString("  return ret;\n}\n")

	s.Printf("UPB_INLINE struct %s* %s_parse_ex(const char* buf, size_t size,\n", msg, msg)
	s.WriteString("                           const upb_ExtensionRegistry* extreg,\n")
	s.WriteString("                           int options, upb_Arena* arena) {\n")
	s.Printf("  struct %s* ret = %s_new(arena);\n", msg, msg)
	s.WriteString("  if (!ret) return NULL;\n")
	s.Printf("  if (upb_Decode(buf, size, UPB_UPCAST(ret), &%s, extreg, options, arena) != kUpb_DecodeStatus_Ok) {\n", init)
	s.WriteString("    return NULL;\n")
	s.WriteString("  }\n")
	s.WriteString("  return ret;\n}\n")

	s.Printf("UPB_INLINE char* %s_serialize(const struct %s* msg, upb_Arena* arena, size_t* len) {\n", msg, msg)
	s.Printf("  return upb_Encode(UPB_UPCAST(msg), &%s, 0, arena, len);\n", init)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE char* %s_serialize_ex(const struct %s* msg, int options,\n", msg, msg)
	s.WriteString("                           upb_Arena* arena, size_t* len) {\n")
	s.Printf("  return upb_Encode(UPB_UPCAST(msg), &%s, options, arena, len);\n", init)
	s.WriteString("}\n\n")
}

func emitRepeatedAccessors(s *Sink, msg string, m *ir.MessageIR, fd protoreflect.FieldDescriptor) {
	fieldName := string(fd.Name())
	elem := scalarCType(fd)
	if fd.Kind() == protoreflect.MessageKind {
		elem = "struct " + MessageName(fd.Message()) + "*"
	}
	off := sizeMacro(m.Layout.FieldOffset(fd))

	s.Printf("UPB_INLINE size_t %s_%s_size(const struct %s* msg) {\n", msg, fieldName, msg)
	s.Printf("  return _upb_array_size(msg, %s);\n", off)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE %s %s_%s_get(const struct %s* msg, size_t i) {\n", elem, msg, fieldName, msg)
	s.Printf("  return (%s)_upb_array_get(msg, %s, i);\n", elem, off)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE %s* %s_mutable_%s(struct %s* msg, size_t* size) {\n", elem, msg, fieldName, msg)
	s.Printf("  return (%s*)_upb_array_mutable(msg, %s, size);\n", elem, off)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE bool %s_resize_%s(struct %s* msg, size_t size, upb_Arena* arena) {\n", msg, fieldName, msg)
	s.Printf("  return _upb_array_resize(msg, %s, size, arena);\n", off)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE bool %s_add_%s(struct %s* msg, %s value, upb_Arena* arena) {\n", msg, fieldName, msg, elem)
	s.Printf("  return _upb_array_append(msg, %s, &value, arena);\n", off)
	s.WriteString("}\n")
}

func emitMapAccessors(s *Sink, msg string, m *ir.MessageIR, fd protoreflect.FieldDescriptor) {
	fieldName := string(fd.Name())
	entry := fd.Message()
	key := scalarCType(entry.Fields().ByName("key"))
	val := fieldCType(entry.Fields().ByName("value"))
	off := sizeMacro(m.Layout.FieldOffset(fd))

	s.Printf("UPB_INLINE size_t %s_%s_size(const struct %s* msg) {\n", msg, fieldName, msg)
	s.Printf("  return _upb_map_size(msg, %s);\n", off)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE bool %s_%s_get(const struct %s* msg, %s key, %s* val) {\n", msg, fieldName, msg, key, val)
	s.Printf("  return _upb_map_get(msg, %s, &key, val);\n", off)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE bool %s_%s_set(struct %s* msg, %s key, %s val, upb_Arena* arena) {\n", msg, fieldName, msg, key, val)
	s.Printf("  return _upb_map_set(msg, %s, &key, &val, arena);\n", off)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE void %s_%s_delete(struct %s* msg, %s key) {\n", msg, fieldName, msg, key)
	s.Printf("  _upb_map_delete(msg, %s, &key);\n", off)
	s.WriteString("}\n")

	s.Printf("UPB_INLINE void %s_%s_clear(struct %s* msg) {\n", msg, fieldName, msg)
	s.Printf("  _upb_map_clear(msg, %s);\n", off)
	s.WriteString("}\n")
}
