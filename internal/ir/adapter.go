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

// Package ir wraps a parsed protobuf file descriptor with the layout and
// table computations the emitters need: has-bit/offset/size layout under
// both pointer ABIs (Layout Engine), the deduplicated submessage reference
// list (Submessage Index Builder), and the fast-decode dispatch table
// (Fast-Decode Table Builder). This is the core described in spec.md
// section 2; everything downstream of it is mechanical text emission.
package ir

import (
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// MessageIR is everything the emitters need to know about one message.
type MessageIR struct {
	Desc      protoreflect.MessageDescriptor
	Layout    *Layout
	Submsgs   *SubmsgIndex
	FastTable []FastTableSlot

	// Fields sorted by ascending field number, per spec.md section 6
	// ("Fields in accessor emission and per-field metadata are sorted by
	// ascending field number").
	FieldsByNumber []protoreflect.FieldDescriptor
}

// FileIR is the per-file result of running the Descriptor Adapter and the
// Layout/Submessage/Table builders over every message in a file.
type FileIR struct {
	File protoreflect.FileDescriptor

	// Messages in pre-order-traversal-of-nested-types order, matching the
	// emission order spec.md section 6 requires.
	Messages []*MessageIR

	byName map[protoreflect.FullName]*MessageIR

	// Enums declared in this file (including nested), sorted by full name.
	Enums []protoreflect.EnumDescriptor

	// Messages referenced as submessage targets but defined in another
	// file, sorted by full name: these need a forward declaration only.
	CrossFileMessages []protoreflect.MessageDescriptor
}

// ByName looks up the MessageIR for a message declared in this file.
func (f *FileIR) ByName(name protoreflect.FullName) (*MessageIR, bool) {
	m, ok := f.byName[name]
	return m, ok
}

// BuildFile runs the Descriptor Adapter and every core builder over every
// message in fd, in the order spec.md section 6 specifies.
func BuildFile(fd protoreflect.FileDescriptor) *FileIR {
	f := &FileIR{
		File:   fd,
		byName: map[protoreflect.FullName]*MessageIR{},
	}

	var walk func(msgs protoreflect.MessageDescriptors)
	walk = func(msgs protoreflect.MessageDescriptors) {
		for i := 0; i < msgs.Len(); i++ {
			md := msgs.Get(i)
			// Map-entry synthetic messages are laid out here too (so their
			// size is known for the _maxNb computation) and get metadata
			// like any other message; gen/header.go only skips their
			// wrappers and accessors.
			mir := buildMessage(md)
			f.Messages = append(f.Messages, mir)
			f.byName[md.FullName()] = mir
			walk(md.Messages())
		}
	}
	walk(fd.Messages())

	// Second pass: now that every in-file message has a known size, fill
	// in the fast-decode table (which needs cross-message size lookups for
	// the _maxNb suffix).
	sizes := make(map[protoreflect.FullName]DualSize, len(f.Messages))
	for _, m := range f.Messages {
		sizes[m.Desc.FullName()] = m.Layout.MessageSize()
	}
	for _, m := range f.Messages {
		m.FastTable = BuildFastTable(m.Desc, m.Layout, m.Submsgs, sizes)
	}

	f.Enums = collectEnums(fd)
	f.CrossFileMessages = collectCrossFileMessages(f)

	return f
}

func buildMessage(md protoreflect.MessageDescriptor) *MessageIR {
	fields := md.Fields()
	sorted := make([]protoreflect.FieldDescriptor, fields.Len())
	for i := range sorted {
		sorted[i] = fields.Get(i)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Number() < sorted[j].Number()
	})

	return &MessageIR{
		Desc:           md,
		Layout:         computeLayout(md),
		Submsgs:        buildSubmsgIndex(md),
		FieldsByNumber: sorted,
	}
}

func collectEnums(fd protoreflect.FileDescriptor) []protoreflect.EnumDescriptor {
	var enums []protoreflect.EnumDescriptor

	var walkEnums func(ed protoreflect.EnumDescriptors)
	walkEnums = func(ed protoreflect.EnumDescriptors) {
		for i := 0; i < ed.Len(); i++ {
			enums = append(enums, ed.Get(i))
		}
	}
	walkEnums(fd.Enums())

	var walkMsgs func(md protoreflect.MessageDescriptors)
	walkMsgs = func(md protoreflect.MessageDescriptors) {
		for i := 0; i < md.Len(); i++ {
			m := md.Get(i)
			walkEnums(m.Enums())
			walkMsgs(m.Messages())
		}
	}
	walkMsgs(fd.Messages())

	sort.Slice(enums, func(i, j int) bool {
		return enums[i].FullName() < enums[j].FullName()
	})
	return enums
}

func collectCrossFileMessages(f *FileIR) []protoreflect.MessageDescriptor {
	seen := map[protoreflect.FullName]protoreflect.MessageDescriptor{}
	for _, m := range f.Messages {
		for _, t := range m.Submsgs.Types {
			if t.ParentFile().Path() == f.File.Path() {
				continue
			}
			seen[t.FullName()] = t
		}
	}

	out := make([]protoreflect.MessageDescriptor, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FullName() < out[j].FullName()
	})
	return out
}
