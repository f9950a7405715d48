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

package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"

	"buf.build/go/upbgen/internal/plugin"
)

func TestParseParams(t *testing.T) {
	t.Parallel()

	p, err := plugin.ParseParams("paths=source_relative,foo")
	require.NoError(t, err)
	assert.Equal(t, "source_relative", p.Flags["paths"])
	_, ok := p.Flags["foo"]
	assert.True(t, ok)

	p, err = plugin.ParseParams("", plugin.WithFlag("paths", "import"))
	require.NoError(t, err)
	assert.Equal(t, "import", p.Flags["paths"])
}

func TestParseParams_Empty(t *testing.T) {
	t.Parallel()

	p, err := plugin.ParseParams("")
	require.NoError(t, err)
	assert.Empty(t, p.Flags)
}

// TestRun_SingleFile exercises the whole driver against one minimal file,
// the same literal-FileDescriptorProto-as-fixture style internal/ir's own
// tests use, checking that each of the four artifacts is registered in the
// response with plausible contents.
func TestRun_SingleFile(t *testing.T) {
	t.Parallel()

	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("widget.proto"),
		Package: proto.String("widget"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Widget"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:     proto.String("count"),
						Number:   proto.Int32(1),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
						JsonName: proto.String("count"),
					},
				},
			},
		},
	}

	req := &pluginpb.CodeGeneratorRequest{
		FileToGenerate: []string{"widget.proto"},
		ProtoFile:      []*descriptorpb.FileDescriptorProto{fdp},
		CompilerVersion: &pluginpb.Version{
			Major: proto.Int32(4), Minor: proto.Int32(25), Patch: proto.Int32(0),
		},
	}

	resp, err := plugin.Run(req)
	require.NoError(t, err)
	require.Empty(t, resp.GetError())
	require.Len(t, resp.File, 4)

	byName := map[string]string{}
	for _, f := range resp.File {
		byName[f.GetName()] = f.GetContent()
	}

	assert.Contains(t, byName, "widget.upb.h")
	assert.Contains(t, byName, "widget.upb.c")
	assert.Contains(t, byName, "widget.upbdefs.h")
	assert.Contains(t, byName, "widget.upbdefs.c")

	assert.Contains(t, byName["widget.upb.h"], "struct widget_Widget;")
	assert.Contains(t, byName["widget.upb.c"], "widget_Widget_msginit")
	assert.Contains(t, byName["widget.upbdefs.c"], "widget_proto_upbdefinit")
}

// TestRun_SkipsUngeneratedFiles confirms a dependency that is present in
// ProtoFile but absent from FileToGenerate produces no output of its own,
// the same "only generate what was asked for" contract protoc-gen-go
// follows.
func TestRun_SkipsUngeneratedFiles(t *testing.T) {
	t.Parallel()

	dep := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("dep.proto"),
		Package: proto.String("dep"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("Dep")},
		},
	}
	main := &descriptorpb.FileDescriptorProto{
		Name:       proto.String("main.proto"),
		Package:    proto.String("main"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"dep.proto"},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Main"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:     proto.String("dep"),
						Number:   proto.Int32(1),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
						TypeName: proto.String(".dep.Dep"),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
						JsonName: proto.String("dep"),
					},
				},
			},
		},
	}

	req := &pluginpb.CodeGeneratorRequest{
		FileToGenerate: []string{"main.proto"},
		ProtoFile:      []*descriptorpb.FileDescriptorProto{dep, main},
		CompilerVersion: &pluginpb.Version{
			Major: proto.Int32(4), Minor: proto.Int32(25), Patch: proto.Int32(0),
		},
	}

	resp, err := plugin.Run(req)
	require.NoError(t, err)
	require.Empty(t, resp.GetError())

	var names []string
	for _, f := range resp.File {
		names = append(names, f.GetName())
	}
	assert.Len(t, names, 4)
	assert.Contains(t, names, "main.upb.h")
	assert.NotContains(t, names, "dep.upb.h")
}
