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

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// buildFile turns a literal FileDescriptorProto into a protoreflect.File,
// the same shape the Descriptor Adapter receives from a real protoc-plugin
// invocation, without requiring protoc or a .proto file on disk.
func buildFile(t *testing.T, fdp *descriptorpb.FileDescriptorProto) protoreflect.FileDescriptor {
	t.Helper()

	if fdp.Syntax == nil {
		fdp.Syntax = proto.String("proto3")
	}
	files, err := protodesc.NewFiles(&descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{fdp},
	})
	if err != nil {
		t.Fatalf("building descriptor: %v", err)
	}
	fd, err := files.FindFileByPath(fdp.GetName())
	if err != nil {
		t.Fatalf("finding file: %v", err)
	}
	return fd
}

func field(name string, num int32, kind descriptorpb.FieldDescriptorProto_Type, label descriptorpb.FieldDescriptorProto_Label) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(num),
		Type:     kind.Enum(),
		Label:    label.Enum(),
		JsonName: proto.String(name),
	}
}

func optionalScalar(name string, num int32, kind descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return field(name, num, kind, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL)
}
