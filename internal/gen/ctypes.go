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
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// scalarCType returns the C type of one scalar (non-repeated, non-map,
// non-message) field.
func scalarCType(fd protoreflect.FieldDescriptor) string {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return "bool"
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return "int32_t"
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return "uint32_t"
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return "int64_t"
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return "uint64_t"
	case protoreflect.FloatKind:
		return "float"
	case protoreflect.DoubleKind:
		return "double"
	case protoreflect.EnumKind:
		return EnumName(fd.Enum())
	case protoreflect.StringKind, protoreflect.BytesKind:
		return "upb_StringView"
	default:
		return "int32_t"
	}
}

// fieldCType returns the C type used for field's storage slot and accessor
// signatures, for every cardinality.
func fieldCType(fd protoreflect.FieldDescriptor) string {
	switch {
	case fd.IsMap():
		return "upb_Map*"
	case fd.IsList():
		if fd.Kind() == protoreflect.MessageKind {
			return fmt.Sprintf("struct %s**", MessageName(fd.Message()))
		}
		return scalarCType(fd) + "*"
	case fd.Kind() == protoreflect.MessageKind:
		return fmt.Sprintf("struct %s*", MessageName(fd.Message()))
	default:
		return scalarCType(fd)
	}
}

// scalarDefault returns the default-value literal for a scalar field, per
// spec.md section 4.4: numeric zero/false by kind, an empty string-view
// literal for string/bytes, and the first (index-0) value's number for an
// enum without an explicit proto2 default. Enum defaults are always the
// numeric value, never the symbol: a symbol would require this field's
// enum header to be included by whatever includes this one.
func scalarDefault(fd protoreflect.FieldDescriptor) string {
	if fd.HasDefault() {
		switch fd.Kind() {
		case protoreflect.StringKind, protoreflect.BytesKind:
			return fmt.Sprintf("upb_StringView_FromString(%q)", fd.Default().String())
		case protoreflect.EnumKind:
			return fmt.Sprintf("%d", fd.DefaultEnumValue().Number())
		default:
			return fmt.Sprintf("%v", fd.Default().Interface())
		}
	}

	switch fd.Kind() {
	case protoreflect.BoolKind:
		return "false"
	case protoreflect.StringKind, protoreflect.BytesKind:
		return `upb_StringView_FromString("")`
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return "0"
	case protoreflect.EnumKind:
		vals := fd.Enum().Values()
		if vals.Len() > 0 {
			return fmt.Sprintf("%d", vals.Get(0).Number())
		}
		return "0"
	default:
		return "0"
	}
}

// tableDescriptorType maps a field's declared wire type to the numeric
// table-descriptor-type the runtime's per-field metadata records, per
// spec.md section 4.5: proto2 `string` is mapped to `bytes` (both are
// length-delimited with no further validation required at parse time).
func tableDescriptorType(fd protoreflect.FieldDescriptor) string {
	k := fd.Kind()
	if k == protoreflect.StringKind && fd.Syntax() == protoreflect.Proto2 {
		k = protoreflect.BytesKind
	}
	return "kUpb_FieldType_" + kindTitle(k)
}

func kindTitle(k protoreflect.Kind) string {
	switch k {
	case protoreflect.BoolKind:
		return "Bool"
	case protoreflect.Int32Kind:
		return "Int32"
	case protoreflect.Sint32Kind:
		return "SInt32"
	case protoreflect.Sfixed32Kind:
		return "SFixed32"
	case protoreflect.Uint32Kind:
		return "UInt32"
	case protoreflect.Fixed32Kind:
		return "Fixed32"
	case protoreflect.Int64Kind:
		return "Int64"
	case protoreflect.Sint64Kind:
		return "SInt64"
	case protoreflect.Sfixed64Kind:
		return "SFixed64"
	case protoreflect.Uint64Kind:
		return "UInt64"
	case protoreflect.Fixed64Kind:
		return "Fixed64"
	case protoreflect.FloatKind:
		return "Float"
	case protoreflect.DoubleKind:
		return "Double"
	case protoreflect.EnumKind:
		return "Enum"
	case protoreflect.StringKind:
		return "String"
	case protoreflect.BytesKind:
		return "Bytes"
	case protoreflect.MessageKind:
		return "Message"
	case protoreflect.GroupKind:
		return "Group"
	default:
		return "Unknown"
	}
}

// fieldLabel returns the per-field metadata label spec.md section 4.5 calls
// for: MAP, PACKED, or the field's numeric protobuf label.
func fieldLabel(fd protoreflect.FieldDescriptor) string {
	switch {
	case fd.IsMap():
		return "kUpb_Label_Map"
	case fd.IsList() && fd.IsPacked():
		return "kUpb_Label_Packed"
	case fd.Cardinality() == protoreflect.Repeated:
		return "kUpb_Label_Repeated"
	case fd.Cardinality() == protoreflect.Required:
		return "kUpb_Label_Required"
	default:
		return "kUpb_Label_Optional"
	}
}
