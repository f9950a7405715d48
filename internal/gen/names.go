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

// Package gen emits the four companion C artifacts (X.upb.h, X.upb.c,
// X.upbdefs.h, X.upbdefs.c) for one input file, from the layout and table
// data internal/ir computed. Everything here is mechanical text assembly;
// the engineering lives upstream, in internal/ir.
package gen

import (
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// ToCIdent turns a dotted/slashed identifier into a valid C identifier, per
// spec.md section 6: "." and "/" both become "_".
func ToCIdent(s string) string {
	r := strings.NewReplacer(".", "_", "/", "_")
	return r.Replace(s)
}

// MessageName returns the C struct/symbol base name for a message.
func MessageName(md protoreflect.MessageDescriptor) string {
	return ToCIdent(string(md.FullName()))
}

// MessageInit returns the symbol name of a message's upb_MiniTable.
func MessageInit(md protoreflect.MessageDescriptor) string {
	return MessageName(md) + "_msginit"
}

// DefInitSymbol returns the symbol name of a file's _upb_DefPool_Init.
func DefInitSymbol(fd protoreflect.FileDescriptor) string {
	return ToCIdent(fd.Path()) + "_upbdefinit"
}

// EnumValueSymbol returns the C symbol for one enum value.
func EnumValueSymbol(vd protoreflect.EnumValueDescriptor) string {
	return ToCIdent(string(vd.FullName()))
}

// EnumName returns the C type name for an enum.
func EnumName(ed protoreflect.EnumDescriptor) string {
	return ToCIdent(string(ed.FullName()))
}

// IncludeGuard returns the `#ifndef` guard token for a generated header,
// per spec.md section 6: the file path uppercased with "." and "/"
// replaced by "_", plus a trailing "_UPB_H_"/"_UPB_DEFS_H_" suffix
// supplied by the caller (already embedded in suffix).
func IncludeGuard(fd protoreflect.FileDescriptor, suffix string) string {
	return strings.ToUpper(ToCIdent(fd.Path())) + suffix
}
