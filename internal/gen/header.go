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
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"

	"buf.build/go/upbgen/internal/ir"
)

// EmitUpbHeader writes X.upb.h: the include guard, runtime headers, struct
// forward declarations, extern upb_MiniTable declarations, enums, and
// inline accessors, per spec.md section 6.
func EmitUpbHeader(s *Sink, f *ir.FileIR) error {
	guard := IncludeGuard(f.File, "_UPB_H_")

	s.Printf("#ifndef %s\n#define %s\n\n", guard, guard)
	s.WriteString("#include \"upb/generated_code_support.h\"\n")
	for i := 0; i < f.File.Imports().Len(); i++ {
		dep := f.File.Imports().Get(i).FileDescriptor
		s.Printf("#include \"%s.upb.h\"\n", stripProtoSuffix(dep.Path()))
	}
	s.WriteString("\n#ifdef __cplusplus\nextern \"C\" {\n#endif\n\n")

	for _, md := range f.CrossFileMessages {
		s.Printf("struct %s;\n", MessageName(md))
	}
	for _, m := range f.Messages {
		s.Printf("struct %s;\n", MessageName(m.Desc))
	}
	s.WriteString("\n")

	for _, m := range f.Messages {
		s.Printf("extern const upb_MiniTable %s;\n", MessageInit(m.Desc))
	}
	s.WriteString("\n")

	for _, ed := range f.Enums {
		EmitEnum(s, ed)
	}

	for _, m := range f.Messages {
		if m.Desc.IsMapEntry() {
			continue // map-entry accessors are inlined into the map field, never declared standalone.
		}
		EmitMessageWrappers(s, m)
		if err := EmitAccessors(s, m); err != nil {
			return err
		}
	}

	s.WriteString("#ifdef __cplusplus\n}  /* extern \"C\" */\n#endif\n\n")
	s.Printf("#endif  /* %s */\n", guard)
	return nil
}

// EmitEnum writes a C enum declaration, values sorted by ascending numeric
// value per spec.md section 6.
func EmitEnum(s *Sink, ed protoreflect.EnumDescriptor) {
	vals := ed.Values()
	sorted := make([]protoreflect.EnumValueDescriptor, vals.Len())
	for i := range sorted {
		sorted[i] = vals.Get(i)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Number() < sorted[j].Number()
	})

	s.Printf("typedef enum {\n")
	for _, v := range sorted {
		s.Printf("  %s = %d,\n", EnumValueSymbol(v), v.Number())
	}
	s.Printf("} %s;\n\n", EnumName(ed))
}

func stripProtoSuffix(path string) string {
	if len(path) > 6 && path[len(path)-6:] == ".proto" {
		return path[:len(path)-6]
	}
	return path
}
