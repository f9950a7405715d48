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

// Package plugin is the protoc-gen-upb driver: it reads a
// CodeGeneratorRequest, fans the per-file work out across internal/ir and
// internal/gen, and assembles a CodeGeneratorResponse.
package plugin

import "strings"

// Params is the parsed form of the plugin parameter string a protoc/buf
// invocation supplies (the comma-separated `key=value,key2` list documented
// by protoc-gen-go). spec.md section 6 treats the parameter string as
// ignored by the generator's own semantics, but a real driver still parses
// it — an unrecognized flag from a shared build pipeline (paths=, a module
// prefix, ...) should not make the plugin fail to start.
type Params struct {
	Raw   string
	Flags map[string]string
}

// Option mutates Params while parsing, mirroring the CompileOption/
// UnmarshalOption closures-over-a-pointer pattern used throughout this
// generator's teacher for configuration.
type Option struct{ apply func(*Params) }

// WithFlag forces a flag to a fixed value regardless of what the invocation
// supplied, for driver tests that want a deterministic Params without
// constructing a parameter string.
func WithFlag(key, value string) Option {
	return Option{func(p *Params) { p.Flags[key] = value }}
}

// ParseParams parses a protoc plugin parameter string into Params, applying
// opts after parsing so callers can override or inject flags.
func ParseParams(parameter string, opts ...Option) (*Params, error) {
	p := &Params{Raw: parameter, Flags: map[string]string{}}

	for _, part := range strings.Split(parameter, ",") {
		if part == "" {
			continue
		}
		if key, value, ok := strings.Cut(part, "="); ok {
			p.Flags[key] = value
		} else {
			p.Flags[part] = ""
		}
	}

	for _, opt := range opts {
		opt.apply(p)
	}
	return p, nil
}
