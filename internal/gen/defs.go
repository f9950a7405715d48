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

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"

	"buf.build/go/upbgen/internal/ir"
)

// EmitUpbDefsHeader writes X.upbdefs.h: the def-init extern declaration and
// one reflection-accessor declaration per message.
func EmitUpbDefsHeader(s *Sink, f *ir.FileIR) {
	guard := IncludeGuard(f.File, "_UPB_DEFS_H_")
	sym := DefInitSymbol(f.File)

	s.Printf("#ifndef %s\n#define %s\n\n", guard, guard)
	s.WriteString("#include \"upb/reflection/def.h\"\n\n")
	s.WriteString("#ifdef __cplusplus\nextern \"C\" {\n#endif\n\n")
	s.Printf("extern _upb_DefPool_Init %s;\n\n", sym)

	for _, m := range f.Messages {
		name := MessageName(m.Desc)
		s.Printf("UPB_INLINE const upb_MessageDef *%s_getmsgdef(upb_DefPool *s) {\n", name)
		s.Printf("  _upb_DefPool_LoadDefInit(s, &%s);\n", sym)
		s.Printf("  return upb_DefPool_FindMessageByName(s, %q);\n", m.Desc.FullName())
		s.WriteString("}\n\n")
	}

	s.WriteString("#ifdef __cplusplus\n}  /* extern \"C\" */\n#endif\n\n")
	s.Printf("#endif  /* %s */\n", guard)
}

// EmitUpbDefsSource writes X.upbdefs.c: the _upb_DefPool_Init struct holding
// the dependency list (sentinel-terminated), the per-message layout list,
// the file name, and the serialized FileDescriptorProto as a fixed-length
// byte array, per spec.md sections 4.5 and 6.
func EmitUpbDefsSource(s *Sink, f *ir.FileIR) error {
	sym := DefInitSymbol(f.File)

	s.Printf("#include \"%s.upbdefs.h\"\n\n", stripProtoSuffix(f.File.Path()))
	for i := 0; i < f.File.Imports().Len(); i++ {
		dep := f.File.Imports().Get(i).FileDescriptor
		s.Printf("#include \"%s.upbdefs.h\"\n", stripProtoSuffix(dep.Path()))
	}
	s.WriteString("\n")

	descBytes, err := proto.Marshal(protodesc.ToFileDescriptorProto(f.File))
	if err != nil {
		return fmt.Errorf("marshaling descriptor for %s: %w", f.File.Path(), err)
	}
	emitDescriptorBytes(s, sym+"_descriptor", descBytes)
	descLen := len(descBytes)

	// A trailing NULL keeps the array non-empty (a zero-length C array is
	// invalid) even for a file declaring no messages at all.
	s.Printf("static const upb_MiniTable *%s_layout[%d] = {\n", sym, len(f.Messages)+1)
	for _, m := range f.Messages {
		s.Printf("  &%s,\n", MessageInit(m.Desc))
	}
	s.WriteString("  NULL,\n};\n\n")

	s.Printf("static _upb_DefPool_Init *%s_deps[] = {\n", sym)
	for i := 0; i < f.File.Imports().Len(); i++ {
		dep := f.File.Imports().Get(i).FileDescriptor
		s.Printf("  &%s,\n", DefInitSymbol(dep))
	}
	s.WriteString("  NULL,\n};\n\n") // sentinel null terminates the dependency list.

	s.Printf("_upb_DefPool_Init %s = {\n", sym)
	s.Printf("  %s_deps,\n", sym)
	s.Printf("  %s_layout,\n", sym)
	s.Printf("  %q,\n", f.File.Path())
	s.Printf("  {%s_descriptor, %d}\n", sym, descLen)
	s.WriteString("};\n")
	return nil
}

// emitDescriptorBytes writes the serialized descriptor as a brace-enclosed
// char-literal array, never a string literal: a FileDescriptorProto
// routinely runs past the 509-character limit C90 places on a single
// string literal (and past MSVC's 64k limit on a larger one), exactly the
// limit this form exists to dodge. Each byte becomes its own `'...'`
// element, escaping '?' to '\?' throughout so no run of bytes is misread
// as a trigraph.
func emitDescriptorBytes(s *Sink, sym string, raw []byte) {
	s.Printf("static const char %s[%d] = {\n", sym, len(raw))
	for i, c := range raw {
		if i%12 == 0 {
			s.WriteString("  ")
		}
		s.WriteString(charLiteral(c))
		s.WriteString(",")
		if i%12 == 11 || i == len(raw)-1 {
			s.WriteString("\n")
		} else {
			s.WriteString(" ")
		}
	}
	s.WriteString("};\n\n")
}

// charLiteral renders one byte as a C char literal, per spec.md section 6's
// trigraph-neutralization rule.
func charLiteral(c byte) string {
	switch c {
	case '\'':
		return `'\''`
	case '\\':
		return `'\\'`
	case '?':
		return `'\?'`
	default:
		if c >= 0x20 && c < 0x7f {
			return "'" + string(c) + "'"
		}
		return fmt.Sprintf(`'\x%02x'`, c)
	}
}
