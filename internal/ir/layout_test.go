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

// S1: an empty message lays out to (0, 0).
func TestLayout_EmptyMessage(t *testing.T) {
	t.Parallel()

	fd := buildFile(t, &descriptorpb.FileDescriptorProto{
		Name:    proto.String("s1.proto"),
		Package: proto.String("s1"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("Empty")},
		},
	})

	md := fd.Messages().Get(0)
	l := computeLayout(md)
	assert.Equal(t, DualSize{0, 0}, l.MessageSize())
	assert.Equal(t, DualSize{0, 0}, l.DataStart())
}

// S2: a single proto2 optional int32 gets hasbit 1, datastart 8, offset
// (8,8), size (16,16).
func TestLayout_Proto2SingleScalar(t *testing.T) {
	t.Parallel()

	fd := buildFile(t, &descriptorpb.FileDescriptorProto{
		Name:    proto.String("s2.proto"),
		Package: proto.String("s2"),
		Syntax:  proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("M"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optionalScalar("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				},
			},
		},
	})

	md := fd.Messages().Get(0)
	l := computeLayout(md)
	x := md.Fields().Get(0)

	idx, ok := l.HasBitIndex(x)
	require.True(t, ok)
	assert.EqualValues(t, 1, idx)
	assert.Equal(t, DualSize{8, 8}, l.DataStart())
	assert.Equal(t, DualSize{8, 8}, l.FieldOffset(x))
	assert.Equal(t, DualSize{16, 16}, l.MessageSize())
}

// S3: mixed alignment packs largest-alignment-first.
func TestLayout_MixedAlignment(t *testing.T) {
	t.Parallel()

	fd := buildFile(t, &descriptorpb.FileDescriptorProto{
		Name:    proto.String("s3.proto"),
		Package: proto.String("s3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("M"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optionalScalar("d", 1, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
					optionalScalar("b", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					optionalScalar("s", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					optionalScalar("i", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				},
			},
		},
	})

	md := fd.Messages().Get(0)
	l := computeLayout(md)
	fs := md.Fields()

	assert.Equal(t, DualSize{0, 0}, l.FieldOffset(fs.Get(0))) // d
	assert.Equal(t, DualSize{8, 8}, l.FieldOffset(fs.Get(2)))  // s
	assert.Equal(t, DualSize{16, 24}, l.FieldOffset(fs.Get(3))) // i
	assert.Equal(t, DualSize{20, 28}, l.FieldOffset(fs.Get(1))) // b
	assert.Equal(t, DualSize{24, 32}, l.MessageSize())
}

// S4: oneof alternatives alias the same slot, sized for the widest
// alternative, with a separate 4-byte case tag.
func TestLayout_Oneof(t *testing.T) {
	t.Parallel()

	oneofIdx := int32(0)
	fd := buildFile(t, &descriptorpb.FileDescriptorProto{
		Name:    proto.String("s4.proto"),
		Package: proto.String("s4"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("M"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name: proto.String("a"), Number: proto.Int32(1),
						Type: descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(),
						Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
						OneofIndex: &oneofIdx, JsonName: proto.String("a"),
					},
					{
						Name: proto.String("b"), Number: proto.Int32(2),
						Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
						Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
						OneofIndex: &oneofIdx, JsonName: proto.String("b"),
					},
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{
					{Name: proto.String("o")},
				},
			},
		},
	})

	md := fd.Messages().Get(0)
	l := computeLayout(md)
	fs := md.Fields()
	a, b := fs.Get(0), fs.Get(1)
	od := md.Oneofs().Get(0)

	assert.False(t, od.IsSynthetic())
	assert.Equal(t, l.FieldOffset(a), l.FieldOffset(b))

	tag := l.OneofCaseOffset(od)
	assert.NotEqual(t, tag, l.FieldOffset(a))

	// The alternatives' shared slot must fit the widest alternative
	// (string: (8,16)).
	slotEnd := l.FieldOffset(a).Add(DualSize{8, 16})
	assert.LessOrEqual(t, int(slotEnd.S32), int(l.MessageSize().S32))
	assert.LessOrEqual(t, int(slotEnd.S64), int(l.MessageSize().S64))

	_, hasBit := l.HasBitIndex(a)
	assert.False(t, hasBit, "oneof members never carry a hasbit")
}
