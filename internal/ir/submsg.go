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
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// SubmsgIndex is the deduplicated, name-sorted list of submessage types a
// message references, plus the field -> index map spec.md section 3
// describes. Map fields contribute their map-entry message type, never the
// key/value types directly.
type SubmsgIndex struct {
	Types   []protoreflect.MessageDescriptor
	byField map[protoreflect.FieldDescriptor]int
	byName  map[protoreflect.FullName]int
}

// IndexOf returns the dense index assigned to fd's target message type.
// Precondition: fd is a singular-message or repeated-message field (map
// fields included, via their map-entry type).
func (s *SubmsgIndex) IndexOf(fd protoreflect.FieldDescriptor) (int, bool) {
	idx, ok := s.byField[fd]
	return idx, ok
}

// buildSubmsgIndex implements the Submessage Index Builder from spec.md
// section 4.2: collect in declaration order, dedup by target message type,
// then sort by the target's fully-qualified name and assign dense indices.
func buildSubmsgIndex(md protoreflect.MessageDescriptor) *SubmsgIndex {
	s := &SubmsgIndex{
		byField: map[protoreflect.FieldDescriptor]int{},
		byName:  map[protoreflect.FullName]int{},
	}

	var order []protoreflect.MessageDescriptor
	seen := map[protoreflect.FullName]protoreflect.MessageDescriptor{}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		target := submessageTarget(fd)
		if target == nil {
			continue
		}
		if _, ok := seen[target.FullName()]; !ok {
			seen[target.FullName()] = target
			order = append(order, target)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		return order[i].FullName() < order[j].FullName()
	})

	s.Types = order
	for i, t := range order {
		s.byName[t.FullName()] = i
	}

	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		target := submessageTarget(fd)
		if target == nil {
			continue
		}
		s.byField[fd] = s.byName[target.FullName()]
	}

	return s
}

// submessageTarget returns the message type fd refers to for the purpose
// of the submessage index, or nil if fd is not message-typed. A map field
// contributes its synthetic map-entry message, never the key/value types.
func submessageTarget(fd protoreflect.FieldDescriptor) protoreflect.MessageDescriptor {
	if fd.IsMap() {
		return fd.Message() // the synthetic *MapEntry message.
	}
	if fd.Message() != nil {
		return fd.Message()
	}
	return nil
}
