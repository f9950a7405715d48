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
	"buf.build/go/upbgen/internal/ir"
)

// EmitUpbSource writes X.upb.c: it includes X.upb.h and every dependency's
// header, then defines each message's submsg array, field array, fast-decode
// table, and upb_MiniTable record, in pre-order-traversal emission order.
func EmitUpbSource(s *Sink, f *ir.FileIR) {
	s.Printf("#include \"%s.upb.h\"\n", stripProtoSuffix(f.File.Path()))
	for i := 0; i < f.File.Imports().Len(); i++ {
		dep := f.File.Imports().Get(i).FileDescriptor
		s.Printf("#include \"%s.upb.h\"\n", stripProtoSuffix(dep.Path()))
	}
	s.WriteString("\n")

	for _, m := range f.Messages {
		EmitSubmsgArray(s, m)
		EmitFieldArray(s, m)
		EmitFastTable(s, m)
		EmitMsgLayout(s, m)
	}
}
