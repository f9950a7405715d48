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

import "fmt"

// DualSize is a pair of sizes (or offsets, or alignments): one for the
// 32-bit pointer ABI and one for the 64-bit pointer ABI. Every quantity the
// layout engine computes is carried as a DualSize so that the two ABIs are
// derived independently, in lock-step, rather than one being computed from
// the other.
type DualSize struct {
	S32, S64 int32
}

// Add returns the componentwise sum.
func (d DualSize) Add(o DualSize) DualSize {
	return DualSize{d.S32 + o.S32, d.S64 + o.S64}
}

// Max returns the componentwise maximum.
func (d DualSize) Max(o DualSize) DualSize {
	return DualSize{max(d.S32, o.S32), max(d.S64, o.S64)}
}

// RoundUp rounds each component up to the given alignment.
func (d DualSize) RoundUp(align DualSize) DualSize {
	return DualSize{
		roundUp32(d.S32, align.S32),
		roundUp32(d.S64, align.S64),
	}
}

func roundUp32(n, align int32) int32 {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// Format implements [fmt.Formatter], printing "(s32, s64)".
func (d DualSize) Format(s fmt.State, verb rune) {
	fmt.Fprintf(s, "(%d, %d)", d.S32, d.S64)
}

// sizeAlign is the size and alignment of a type class, carried dually.
type sizeAlign struct {
	Size, Align DualSize
}

// Fixed-width classes: identical under both ABIs.
var (
	fixed1 = sizeAlign{DualSize{1, 1}, DualSize{1, 1}}
	fixed4 = sizeAlign{DualSize{4, 4}, DualSize{4, 4}}
	fixed8 = sizeAlign{DualSize{8, 8}, DualSize{8, 8}}

	// string is a length+pointer pair: (8, 16), aligned (4, 8).
	stringSA = sizeAlign{DualSize{8, 16}, DualSize{4, 8}}

	// submessage pointer, repeated-array header pointer, and map-table
	// pointer all share this layout: a single pointer, size == align.
	pointerSA = sizeAlign{DualSize{4, 8}, DualSize{4, 8}}

	// a 4-byte oneof case tag.
	caseTagSA = sizeAlign{DualSize{4, 4}, DualSize{4, 4}}
)
