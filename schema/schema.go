/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package schema reads the feature schema of a dataset from YAML and derives
// the feature classifications used when computing top-k and uniques
// statistics.
//
//	feature:
//	  - name: age_bucket
//	    type: INT
//	    int_domain: {is_categorical: true}
//	  - name: thumbnail
//	    type: BYTES
//	    image_domain: {}
//	  - name: user
//	    type: STRUCT
//	    struct_domain:
//	      feature:
//	        - name: country
//	          type: BYTES
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type FeatureType string

const (
	TypeINT    FeatureType = "INT"
	TypeFLOAT  FeatureType = "FLOAT"
	TypeBYTES  FeatureType = "BYTES"
	TypeSTRUCT FeatureType = "STRUCT"
)

func (t *FeatureType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch ft := FeatureType(strings.ToUpper(s)); ft {
	case TypeINT, TypeFLOAT, TypeBYTES, TypeSTRUCT:
		*t = ft
		return nil
	}
	return fmt.Errorf("line %d: unknown feature type %q", value.Line, s)
}

type Schema struct {
	Feature []*Feature `yaml:"feature"`
}

type Feature struct {
	Name         string        `yaml:"name"`
	Type         FeatureType   `yaml:"type"`
	IntDomain    *IntDomain    `yaml:"int_domain,omitempty"`
	BoolDomain   *BoolDomain   `yaml:"bool_domain,omitempty"`
	ImageDomain  *ImageDomain  `yaml:"image_domain,omitempty"`
	StructDomain *StructDomain `yaml:"struct_domain,omitempty"`
}

type IntDomain struct {
	Min           *int64 `yaml:"min,omitempty"`
	Max           *int64 `yaml:"max,omitempty"`
	IsCategorical bool   `yaml:"is_categorical"`
}

type BoolDomain struct {
	TrueValue  string `yaml:"true_value,omitempty"`
	FalseValue string `yaml:"false_value,omitempty"`
}

type ImageDomain struct {
	MaxImageByteSize int64 `yaml:"max_image_byte_size,omitempty"`
}

type StructDomain struct {
	Feature []*Feature `yaml:"feature"`
}

// Load decodes and validates a schema. Unknown fields are errors.
func Load(r io.Reader) (*Schema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Schema
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &s, nil
		}
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads the schema at path.
func LoadFile(path string) (*Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Load(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s *Schema) validate() error {
	return validateFeatures(nil, s.Feature)
}

func validateFeatures(parent []string, features []*Feature) error {
	seen := make(map[string]struct{}, len(features))
	for _, f := range features {
		if f.Name == "" {
			return fmt.Errorf("feature without a name under %q", strings.Join(parent, "."))
		}
		path := strings.Join(append(parent[:len(parent):len(parent)], f.Name), ".")
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("duplicate feature %q", path)
		}
		seen[f.Name] = struct{}{}
		if f.Type == "" {
			return fmt.Errorf("feature %q has no type", path)
		}
		if f.StructDomain != nil {
			if f.Type != TypeSTRUCT {
				return fmt.Errorf("feature %q: struct_domain requires type STRUCT", path)
			}
			if err := validateFeatures(append(parent[:len(parent):len(parent)], f.Name), f.StructDomain.Feature); err != nil {
				return err
			}
		}
	}
	return nil
}

// CategoricalNumericFeatures returns the paths of the INT features whose
// values are categories rather than quantities.
func (s *Schema) CategoricalNumericFeatures() [][]string {
	return s.collect(func(f *Feature) bool {
		return f.Type == TypeINT && ((f.IntDomain != nil && f.IntDomain.IsCategorical) || f.BoolDomain != nil)
	})
}

// BytesFeatures returns the paths of the BYTES features that hold raw bytes
// rather than text.
func (s *Schema) BytesFeatures() [][]string {
	return s.collect(func(f *Feature) bool {
		return f.Type == TypeBYTES && f.ImageDomain != nil
	})
}

func (s *Schema) collect(match func(*Feature) bool) [][]string {
	var out [][]string
	var walk func(parent []string, features []*Feature)
	walk = func(parent []string, features []*Feature) {
		for _, f := range features {
			path := append(parent[:len(parent):len(parent)], f.Name)
			if f.StructDomain != nil {
				walk(path, f.StructDomain.Feature)
				continue
			}
			if match(f) {
				out = append(out, path)
			}
		}
	}
	walk(nil, s.Feature)
	return out
}
