// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command genmetrics generates the typed metric getters of package
// metrics from a YAML file of metric definitions. Each definition
// names a metric type (counter, gauge or histogram), a help string,
// and optionally labels and histogram buckets:
//
//	function_duration_seconds:
//	  type: histogram
//	  help: Duration of function invocations in seconds.
//	  labels: [function]
//	  buckets: [0.001, 0.01, 0.1, 1]
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/mfnet/errors"
	"gopkg.in/yaml.v2"
)

var (
	idRe   = regexp.MustCompile(`^[a-z][a-z_]*[a-z]$`)
	helpRe = regexp.MustCompile(`^[A-Z][a-zA-Z0-9 ]*\.$`)
)

var metricTypes = []string{"counter", "gauge", "histogram"}

type metricConf struct {
	Type    string
	Help    string
	Buckets []float64 // Only allowed for histogram type metrics.
	Labels  []string
}

// validate returns an error if the metric definition is malformed.
func (m metricConf) validate(name string) error {
	if !idRe.MatchString(name) {
		return errors.E("metric", name, errors.Invalid, errors.Errorf("name must match %s", idRe))
	}
	switch m.Type {
	case "counter", "gauge", "histogram":
	default:
		return errors.E("metric", name, errors.Invalid,
			errors.Errorf("unknown type %q, must be one of %s", m.Type, strings.Join(metricTypes, ", ")))
	}
	if !helpRe.MatchString(m.Help) {
		return errors.E("metric", name, errors.Invalid, errors.Errorf("invalid help text %q", m.Help))
	}
	for _, l := range m.Labels {
		if !idRe.MatchString(l) {
			return errors.E("metric", name, errors.Invalid, errors.Errorf("label %q is incorrectly formatted", l))
		}
	}
	if m.Buckets != nil && m.Type != "histogram" {
		return errors.E("metric", name, errors.Invalid,
			errors.Errorf("buckets %v given for a %s; buckets are only allowed for histograms", m.Buckets, m.Type))
	}
	return nil
}

// definitions holds validated metric definitions, grouped by type.
type definitions struct {
	confs map[string]metricConf
	names map[string][]string // metric type -> sorted metric names
}

// load reads and validates the metric definitions in r.
func load(r io.Reader) (*definitions, error) {
	var conf map[string]metricConf
	if err := yaml.NewDecoder(r).Decode(&conf); err != nil {
		return nil, errors.E("decode definitions", errors.Invalid, err)
	}
	defs := &definitions{confs: conf, names: make(map[string][]string)}
	for name, m := range conf {
		if err := m.validate(name); err != nil {
			return nil, err
		}
		defs.names[m.Type] = append(defs.names[m.Type], name)
	}
	for _, names := range defs.names {
		sort.Strings(names)
	}
	return defs, nil
}

// generate renders the Go source of package pkg for the definitions.
func generate(defs *definitions, pkg string) ([]byte, error) {
	g := new(generator)
	g.Printf("// Copyright 2022 GRAIL, Inc. All rights reserved.\n")
	g.Printf("// Use of this source code is governed by the Apache 2.0\n")
	g.Printf("// license that can be found in the LICENSE file.\n\n")
	g.Printf("// THIS FILE WAS AUTOMATICALLY GENERATED (@" + "generated). DO NOT EDIT.\n\n")
	g.Printf("package %s\n\n", pkg)
	g.Printf("import (\n\t\"context\"\n)\n\n")

	// Option tables used by clients to initialize metric backing stores.
	g.Printf("var (\n")
	for _, typ := range metricTypes {
		g.Printf("\t%ss = map[string]%sOpts{\n", pascal(typ), typ)
		for _, name := range defs.names[typ] {
			defs.confs[name].printOpts(name, g)
		}
		g.Printf("\t}\n")
	}
	g.Printf(")\n\n")

	for _, typ := range metricTypes {
		for _, name := range defs.names[typ] {
			defs.confs[name].printGetter(name, g)
		}
	}
	src, err := format.Source(g.buf.Bytes())
	if err != nil {
		return nil, errors.E("gofmt", errors.Fatal, err)
	}
	return src, nil
}

func (m metricConf) printOpts(name string, g *generator) {
	g.Printf("\t\t%q: {\n", name)
	g.Printf("\t\t\tHelp: %q,\n", m.Help)
	if len(m.Labels) != 0 {
		ls := make([]string, len(m.Labels))
		for i, l := range m.Labels {
			ls[i] = strconv.Quote(l)
		}
		g.Printf("\t\t\tLabels: []string{%s},\n", strings.Join(ls, ", "))
	}
	if len(m.Buckets) != 0 {
		bs := make([]string, len(m.Buckets))
		for i, b := range m.Buckets {
			bs[i] = strconv.FormatFloat(b, 'f', -1, 64)
		}
		g.Printf("\t\t\tBuckets: []float64{%s},\n", strings.Join(bs, ", "))
	}
	g.Printf("\t\t},\n")
}

// printGetter prints the getter of a metric. Getters guarantee that
// clients use correct metric and label names.
func (m metricConf) printGetter(name string, g *generator) {
	typ := pascal(m.Type)
	fnName := "Get" + pascal(name) + typ
	help := strings.TrimSuffix(m.Help, ".")
	help = strings.ToLower(help[:1]) + help[1:]
	g.Printf("// %s returns a %s to set metric %s (%s).\n", fnName, typ, name, help)
	g.Printf("func %s(ctx context.Context", fnName)
	if len(m.Labels) != 0 {
		g.Printf(", %s string", strings.Join(m.Labels, ", "))
	}
	g.Printf(") %s {\n", typ)
	labels := "nil"
	if len(m.Labels) != 0 {
		assns := make([]string, len(m.Labels))
		for i, l := range m.Labels {
			assns[i] = fmt.Sprintf("%q: %s", l, l)
		}
		labels = fmt.Sprintf("map[string]string{%s}", strings.Join(assns, ", "))
	}
	g.Printf("\treturn get%s(ctx, %q, %s)\n}\n\n", typ, name, labels)
}

// pascal converts a snake_case identifier to PascalCase.
func pascal(id string) string {
	parts := strings.Split(id, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "")
}

type generator struct {
	buf bytes.Buffer
}

func (g *generator) Printf(format string, args ...interface{}) {
	fmt.Fprintf(&g.buf, format, args...)
}

var stdout = flag.Bool("stdout", false, "print the package to stdout instead of materializing it")

func usage() {
	fmt.Fprintf(os.Stderr, `usage: genmetrics defpath dstpackage

genmetrics reads a metrics definition file at defpath and generates a Go file
in directory dstpackage that provides typed getters for the metrics recorded
by network evaluation.
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("genmetrics: ")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
	}
	defpath, dstpackage := flag.Arg(0), flag.Arg(1)
	f, err := os.Open(defpath)
	if err != nil {
		log.Fatal(err)
	}
	defs, err := load(f)
	f.Close()
	if err != nil {
		log.Fatal(err)
	}
	src, err := generate(defs, filepath.Base(dstpackage))
	if err != nil {
		log.Fatal(err)
	}
	if *stdout {
		os.Stdout.Write(src)
		return
	}
	if err := os.WriteFile(filepath.Join(dstpackage, "metrics.go"), src, 0644); err != nil {
		log.Fatal(err)
	}
}
