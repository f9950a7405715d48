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
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// S1: empty message -> table size 1, lone slot is the fallback.
func TestFastTable_EmptyMessage(t *testing.T) {
	t.Parallel()

	fd := buildFile(t, &descriptorpb.FileDescriptorProto{
		Name:    proto.String("t1.proto"),
		Package: proto.String("t1"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("Empty")},
		},
	})
	md := fd.Messages().Get(0)
	l := computeLayout(md)
	subs := buildSubmsgIndex(md)
	table := BuildFastTable(md, l, subs, map[protoreflect.FullName]DualSize{md.FullName(): l.MessageSize()})

	require.Len(t, table, 1)
	assert.False(t, table[0].Populated)
	assert.Equal(t, fallbackHandler, table[0].Handler)
}

// S2: a single proto2 optional int32 gets a 2-entry table with a v4 fast
// handler in slot 1.
func TestFastTable_SingleScalar(t *testing.T) {
	t.Parallel()

	fd := buildFile(t, &descriptorpb.FileDescriptorProto{
		Name:    proto.String("t2.proto"),
		Package: proto.String("t2"),
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
	subs := buildSubmsgIndex(md)
	table := BuildFastTable(md, l, subs, map[protoreflect.FullName]DualSize{md.FullName(): l.MessageSize()})

	require.Len(t, table, 2)
	assert.Equal(t, "upb_psv4_1bt", table[1].Handler)
}

// S6: field numbers 1 and 20 both fall under 32, so the table grows to 32
// entries (the loop doubles while n >= table_size, so 20 forces size 32,
// not the cap-at-20 a reader might expect).
func TestFastTable_LargeFieldNumber(t *testing.T) {
	t.Parallel()

	fd := buildFile(t, &descriptorpb.FileDescriptorProto{
		Name:    proto.String("t6.proto"),
		Package: proto.String("t6"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("M"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optionalScalar("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					optionalScalar("y", 20, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				},
			},
		},
	})
	md := fd.Messages().Get(0)
	l := computeLayout(md)
	subs := buildSubmsgIndex(md)
	table := BuildFastTable(md, l, subs, map[protoreflect.FullName]DualSize{md.FullName(): l.MessageSize()})

	require.Len(t, table, 32)
	assert.True(t, table[20].Populated)
	assert.EqualValues(t, (20<<3)|0x100, table[20].Data64&0xFFFF)
}

// S5: a submessage field whose target is defined in a different file gets
// the _maxmaxb fallback handler suffix, since its size cannot be known
// without recursing across files (which the core never does).
func TestFastTable_CrossFileSubmessage(t *testing.T) {
	t.Parallel()

	dep := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("dep.proto"),
		Package: proto.String("pkg"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("Foo")},
		},
	}
	main := &descriptorpb.FileDescriptorProto{
		Name:       proto.String("main.proto"),
		Package:    proto.String("pkg"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"dep.proto"},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("M"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name: proto.String("f"), Number: proto.Int32(5),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
						TypeName: proto.String(".pkg.Foo"),
						JsonName: proto.String("f"),
					},
				},
			},
		},
	}

	files, err := protodesc.NewFiles(&descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{dep, main},
	})
	require.NoError(t, err)
	mainFD, err := files.FindFileByPath("main.proto")
	require.NoError(t, err)

	md := mainFD.Messages().Get(0)
	l := computeLayout(md)
	subs := buildSubmsgIndex(md)
	// Only M's own size is known to this generation pass; Foo's file was
	// not generated in this run.
	table := BuildFastTable(md, l, subs, map[protoreflect.FullName]DualSize{md.FullName(): l.MessageSize()})

	require.Len(t, table, 8)
	assert.True(t, table[5].Populated)
	assert.Contains(t, table[5].Handler, "_maxmaxb")
}
