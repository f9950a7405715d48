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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

func messageField(name string, num int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(num),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		TypeName: proto.String(typeName),
		JsonName: proto.String(name),
	}
}

// Two fields referencing the same target message type must share an
// index, and indices are assigned in target-full-name sorted order, not
// declaration order.
func TestSubmsgIndex_DedupAndSort(t *testing.T) {
	t.Parallel()

	fd := buildFile(t, &descriptorpb.FileDescriptorProto{
		Name:    proto.String("submsg.proto"),
		Package: proto.String("p"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("Zeta")},
			{Name: proto.String("Alpha")},
			{
				Name: proto.String("M"),
				Field: []*descriptorpb.FieldDescriptorProto{
					messageField("z1", 1, ".p.Zeta"),
					messageField("a1", 2, ".p.Alpha"),
					messageField("z2", 3, ".p.Zeta"),
				},
			},
		},
	})

	md := fd.Messages().Get(2)
	subs := buildSubmsgIndex(md)

	require.Len(t, subs.Types, 2)
	assert.Equal(t, "p.Alpha", string(subs.Types[0].FullName()))
	assert.Equal(t, "p.Zeta", string(subs.Types[1].FullName()))

	fs := md.Fields()
	z1idx, ok := subs.IndexOf(fs.Get(0))
	require.True(t, ok)
	z2idx, ok := subs.IndexOf(fs.Get(2))
	require.True(t, ok)
	assert.Equal(t, z1idx, z2idx)

	aIdx, ok := subs.IndexOf(fs.Get(1))
	require.True(t, ok)
	assert.NotEqual(t, aIdx, z1idx)
}
