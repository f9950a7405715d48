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

import "google.golang.org/protobuf/reflect/protoreflect"

// TypeClass is the closed, tagged discriminant used for field storage
// layout and for accessor template selection. It mirrors the Archetype
// concept in the teacher (internal/tdp/compiler.Archetype), but is a plain
// enum instead of a struct of runtime thunks: there is no dispatch at
// generation time beyond a switch, since the output is text.
type TypeClass int

const (
	ClassInvalid TypeClass = iota
	ClassFixed1            // bool
	ClassFixed4            // int32, uint32, enum, float
	ClassFixed8            // int64, uint64, double
	ClassString            // string, bytes
	ClassSubMessage
	ClassRepeated
	ClassMap
	ClassOneof
)

func (c TypeClass) String() string {
	switch c {
	case ClassFixed1:
		return "fixed1"
	case ClassFixed4:
		return "fixed4"
	case ClassFixed8:
		return "fixed8"
	case ClassString:
		return "string"
	case ClassSubMessage:
		return "submessage"
	case ClassRepeated:
		return "repeated"
	case ClassMap:
		return "map"
	case ClassOneof:
		return "oneof"
	default:
		return "invalid"
	}
}

// classify determines the TypeClass of a field, ignoring oneof membership
// (callers special-case oneofs: each alternative is still classified by its
// own scalar/message kind so its size can contribute to the oneof's slot).
func classify(fd protoreflect.FieldDescriptor) TypeClass {
	switch {
	case fd.IsMap():
		return ClassMap
	case fd.IsList():
		return ClassRepeated
	case fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind:
		return ClassSubMessage
	case fd.Kind() == protoreflect.BoolKind:
		return ClassFixed1
	case fd.Kind() == protoreflect.StringKind || fd.Kind() == protoreflect.BytesKind:
		return ClassString
	case is64Bit(fd.Kind()):
		return ClassFixed8
	default:
		return ClassFixed4
	}
}

func is64Bit(k protoreflect.Kind) bool {
	switch k {
	case protoreflect.Int64Kind, protoreflect.Uint64Kind,
		protoreflect.Sint64Kind, protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind,
		protoreflect.DoubleKind:
		return true
	default:
		return false
	}
}

// sizeAlignOf returns the dual size/alignment for a scalar, string, or
// submessage-pointer class. Repeated, map, and oneof storage is computed by
// the caller (Layout), since their size depends on more than just the
// field's own kind.
func sizeAlignOf(class TypeClass) sizeAlign {
	switch class {
	case ClassFixed1:
		return fixed1
	case ClassFixed4:
		return fixed4
	case ClassFixed8:
		return fixed8
	case ClassString:
		return stringSA
	case ClassSubMessage, ClassRepeated, ClassMap:
		return pointerSA
	default:
		return sizeAlign{}
	}
}

// needsHasBit implements the has-bit rule from spec.md section 3: a field
// requires a has-bit iff it is scalar, singular, not in a oneof, and either
// belongs to a proto2 schema or is a proto3-optional field.
func needsHasBit(fd protoreflect.FieldDescriptor) bool {
	if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
		// Real oneof members use the case tag, never a hasbit.
		return false
	}
	if fd.IsList() || fd.IsMap() {
		return false
	}
	if fd.Message() != nil {
		// Singular message fields use pointer-non-null presence.
		return false
	}
	if od := fd.ContainingOneof(); od != nil && od.IsSynthetic() {
		return true // proto3 optional
	}
	return fd.Syntax() == protoreflect.Proto2
}

// isRealOneofMember reports whether fd is a member of an actual (not
// synthetic proto3-optional) oneof.
func isRealOneofMember(fd protoreflect.FieldDescriptor) bool {
	od := fd.ContainingOneof()
	return od != nil && !od.IsSynthetic()
}
