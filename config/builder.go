// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Builder layers YAML fragments, in order, over a base configuration
type Builder struct {
	fragments []fragment
	Config    *Config
}

type fragment struct {
	source string // file path or "inline"
	data   []byte
	err    error
}

// Use sets the base configuration; DefaultConfig is used when unset
func (b *Builder) Use(c *Config) *Builder {
	b.Config = c
	return b
}

// Merge adds YAML documents to be merged into the configuration
func (b *Builder) Merge(yamls ...string) *Builder {
	for _, y := range yamls {
		b.fragments = append(b.fragments, fragment{source: "inline", data: []byte(y)})
	}
	return b
}

// MergeFiles adds YAML files to be merged into the configuration. Read
// errors are reported by Build.
func (b *Builder) MergeFiles(paths ...string) *Builder {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		b.fragments = append(b.fragments, fragment{source: p, data: data, err: err})
	}
	return b
}

// Build merges every fragment into the base configuration, later fragments
// winning, then sanitizes and validates the result
func (b *Builder) Build(skips ...SkipValidation) (*Config, error) {
	if b.Config == nil {
		b.Config = DefaultConfig()
	}

	var errs error
	for _, f := range b.fragments {
		if f.err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to read config %s: %w", f.source, f.err))
			continue
		}

		additional := &Config{}
		if err := yaml.Unmarshal(f.data, additional); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to parse YAML from %s: %w", f.source, err))
			continue
		}

		if err := mergo.Merge(b.Config, additional, mergo.WithOverride, mergo.WithTransformers(boolPtrTransformer{})); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to merge config from %s: %w", f.source, err))
		}
	}

	if errs != nil {
		return nil, errs
	}

	b.Config.sanitize()
	if err := b.Config.Validate(skips...); err != nil {
		return nil, err
	}
	return b.Config, nil
}

// boolPtrTransformer lets an explicit false in a fragment override a true
// base value; mergo treats false as empty otherwise.
type boolPtrTransformer struct{}

func (t boolPtrTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != reflect.TypeOf((*bool)(nil)) {
		return nil
	}

	return func(dst, src reflect.Value) error {
		if src.IsNil() {
			return nil
		}
		if dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}
