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

package gen_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/protocolbuffers/protoscope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"

	"buf.build/go/upbgen/internal/gen"
	"buf.build/go/upbgen/internal/ir"
)

// Each golden case is authored as a txtar archive: one file holding a
// protoscope-encoded FileDescriptorProto (so the wire bytes are readable in
// the test source instead of a hand-built descriptorpb literal), and one
// file holding substrings the rendered header must contain.
const emptyMessageGolden = `
-- descriptor.protoscope --
1: "golden1.proto"
2: "golden1"
4: {1: "Empty"}
12: "proto3"
-- want.header --
struct golden1_Empty;
extern const upb_MiniTable golden1_Empty_msginit;
`

const scalarFieldGolden = `
-- descriptor.protoscope --
1: "golden2.proto"
2: "golden2"
4: {
  1: "M"
  2: {1: "x" 3: 1 4: 1 5: 5 10: "x"}
}
12: "proto2"
-- want.header --
struct golden2_M;
UPB_INLINE bool golden2_M_has_x(const struct golden2_M* msg) {
UPB_INLINE int32_t golden2_M_x(const struct golden2_M* msg) {
`

func runGolden(t *testing.T, archive string) {
	t.Helper()

	ar := txtar.Parse([]byte(archive))
	files := map[string]string{}
	for _, f := range ar.Files {
		files[f.Name] = string(f.Data)
	}

	scanned := protoscope.NewScanner(files["descriptor.protoscope"])
	raw, err := scanned.Exec()
	require.NoError(t, err, "decoding protoscope fixture")

	fdp := &descriptorpb.FileDescriptorProto{}
	require.NoError(t, proto.Unmarshal(raw, fdp))

	files2, err := protodesc.NewFiles(&descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{fdp},
	})
	require.NoError(t, err, "building descriptor")
	fd, err := files2.FindFileByPath(fdp.GetName())
	require.NoError(t, err)

	fileIR := ir.BuildFile(fd)

	var buf bytes.Buffer
	sink := gen.Acquire(&buf)
	require.NoError(t, gen.EmitUpbHeader(sink, fileIR))
	require.NoError(t, sink.Release())

	got := buf.String()
	for _, want := range strings.Split(strings.TrimSpace(files["want.header"]), "\n") {
		assert.Contains(t, got, want)
	}
}

func TestGolden_EmptyMessage(t *testing.T) {
	t.Parallel()
	runGolden(t, emptyMessageGolden)
}

func TestGolden_ScalarField(t *testing.T) {
	t.Parallel()
	runGolden(t, scalarFieldGolden)
}
