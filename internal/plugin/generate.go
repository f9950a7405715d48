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

package plugin

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sync"

	"al.essio.dev/pkg/shellescape"
	"github.com/tiendc/go-deepcopy"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/pluginpb"

	"buf.build/go/upbgen/internal/debug"
	"buf.build/go/upbgen/internal/gen"
	"buf.build/go/upbgen/internal/ir"
)

// Run executes the plugin against req and returns the assembled response.
// Per spec.md section 5, generation is single-threaded per file with no
// shared mutable state between files; Run fans independent files out across
// goroutines bounded by GOMAXPROCS, each working from its own cloned Params.
func Run(req *pluginpb.CodeGeneratorRequest) (*pluginpb.CodeGeneratorResponse, error) {
	base, err := ParseParams(req.GetParameter())
	if err != nil {
		return nil, fmt.Errorf("parsing parameter %s: %w", shellescape.Quote(req.GetParameter()), err)
	}
	logParams(base)

	// protogen rejects any file that has no Go import path, which the C
	// output never uses; give each file lacking go_package a placeholder
	// through protogen's own M<file>=<path> parameter.
	req = proto.Clone(req).(*pluginpb.CodeGeneratorRequest)
	param := req.GetParameter()
	for _, fdp := range req.GetProtoFile() {
		if fdp.GetOptions().GetGoPackage() == "" {
			param += ",M" + fdp.GetName() + "=upbgen/" + stripExt(fdp.GetName())
		}
	}
	req.Parameter = proto.String(param)

	opts := protogen.Options{}
	gp, err := opts.New(req)
	if err != nil {
		return nil, fmt.Errorf("constructing plugin: %w", err)
	}
	gp.SupportedFeatures = uint64(pluginpb.CodeGeneratorResponse_FEATURE_PROTO3_OPTIONAL)

	var mu sync.Mutex // guards gp.NewGeneratedFile, which is not safe for concurrent callers.
	group := new(errgroup.Group)
	group.SetLimit(max(1, runtime.GOMAXPROCS(0)))

	for _, f := range gp.Files {
		if !f.Generate {
			continue
		}
		f := f

		params := new(Params)
		if err := deepcopy.Copy(params, base); err != nil {
			return nil, fmt.Errorf("cloning params for %s: %w", f.Desc.Path(), err)
		}

		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					debug.Log(nil, "plugin", "panic generating %s: %v\n%s", f.Desc.Path(), r, debug.Stack(3))
					err = fmt.Errorf("generating %s: %v", f.Desc.Path(), r)
				}
			}()
			return generateOne(gp, f, params, &mu)
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	resp := gp.Response()
	return resp, nil
}

// generateOne builds the IR for one file and renders its four artifacts.
// The IR build and text rendering — the CPU-bound part — run without
// holding mu; only the brief registration of each finished buffer with the
// shared *protogen.Plugin is serialized.
func generateOne(gp *protogen.Plugin, f *protogen.File, params *Params, mu *sync.Mutex) error {
	fileIR := ir.BuildFile(f.Desc)
	base := stripExt(f.Desc.Path())

	artifacts := []struct {
		suffix string
		render func(*gen.Sink) error
	}{
		{".upb.h", func(s *gen.Sink) error { return gen.EmitUpbHeader(s, fileIR) }},
		{".upb.c", func(s *gen.Sink) error { gen.EmitUpbSource(s, fileIR); return nil }},
		{".upbdefs.h", func(s *gen.Sink) error { gen.EmitUpbDefsHeader(s, fileIR); return nil }},
		{".upbdefs.c", func(s *gen.Sink) error { return gen.EmitUpbDefsSource(s, fileIR) }},
	}

	// params is reserved for future per-driver-invocation flags; unused
	// today (spec.md section 6: the parameter string is ignored by the
	// generator's own semantics).
	_ = params

	rendered := make([][]byte, len(artifacts))
	for i, a := range artifacts {
		var buf bytes.Buffer
		sink := gen.Acquire(&buf)
		if err := a.render(sink); err != nil {
			sink.Release()
			return fmt.Errorf("rendering %s%s: %w", base, a.suffix, err)
		}
		if err := sink.Release(); err != nil {
			return fmt.Errorf("flushing %s%s: %w", base, a.suffix, err)
		}
		rendered[i] = buf.Bytes()
	}

	mu.Lock()
	defer mu.Unlock()
	for i, a := range artifacts {
		gfile := gp.NewGeneratedFile(base+a.suffix, f.GoImportPath)
		if _, err := gfile.Write(rendered[i]); err != nil {
			return fmt.Errorf("writing %s%s: %w", base, a.suffix, err)
		}
	}
	return nil
}

func stripExt(path string) string {
	if len(path) > 6 && path[len(path)-6:] == ".proto" {
		return path[:len(path)-6]
	}
	return path
}

// logParams writes, in debug builds only, a single diagnostic line
// describing the invocation's parameter string, colored when stderr is a
// terminal, to help a developer
// invoking the plugin by hand (e.g. via `protoc --upb_out=...` without buf)
// tell what the driver actually parsed.
func logParams(p *Params) {
	if !debug.Enabled {
		return
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintf(os.Stderr, "\x1b[2mupbgen: parameter %s -> %d flag(s)\x1b[0m\n", shellescape.Quote(p.Raw), len(p.Flags))
		return
	}
	fmt.Fprintf(os.Stderr, "upbgen: parameter %s -> %d flag(s)\n", shellescape.Quote(p.Raw), len(p.Flags))
}
