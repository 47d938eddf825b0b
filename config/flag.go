// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"flag"

	"github.com/grailbio/mfnet/errors"
	yaml "gopkg.in/yaml.v2"
)

// Flags exposes a FlagSet that overrides a set of config keys.
type Flags struct {
	vals map[string]*string
}

// Init registers a flag for each key in AllKeys with the provided
// flag set.
func (f *Flags) Init(flags *flag.FlagSet) {
	f.vals = make(map[string]*string)
	for _, key := range AllKeys {
		f.vals[key] = flags.String(key, "", "override "+key+" from config: "+usage[key])
	}
}

// Apply returns a copy of cfg in which the keys set by flags are
// overridden. Values of string keys are taken verbatim; other values
// are interpreted as YAML scalars.
func (f *Flags) Apply(cfg *Config) (*Config, error) {
	keys, err := cfg.Keys()
	if err != nil {
		return nil, errors.E("flags", err)
	}
	for _, key := range AllKeys {
		s := f.vals[key]
		if s == nil || *s == "" {
			continue
		}
		if _, ok := keys[key].(string); ok {
			keys[key] = *s
			continue
		}
		var v interface{}
		if err := yaml.Unmarshal([]byte(*s), &v); err != nil {
			return nil, errors.E("flags", key, errors.Invalid, err)
		}
		keys[key] = v
	}
	b, err := yaml.Marshal(keys)
	if err != nil {
		return nil, errors.E("flags", err)
	}
	out, err := Parse(b)
	if err != nil {
		return nil, errors.E("flags", err)
	}
	return out, nil
}
