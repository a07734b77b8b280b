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

package featurestats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/apache/datasketches-featurestats-go/internal"
)

var ErrCorruptPartial = errors.New("corrupt partial accumulator")

const (
	_PARTIAL_SER_VER       = 1
	_PARTIAL_PREAMBLE_SIZE = 8

	_PARTIAL_WEIGHTED_FLAG = 1
)

// MarshalBinary encodes the summaries of the accumulator. The layout is an
// 8 byte preamble (preLongs, serVer, family, flags, feature count) followed
// by each feature: its path steps, a flags byte and the length prefixed
// sketches.
func (a *Accumulator) MarshalBinary() ([]byte, error) {
	if err := a.checkState(accumulating); err != nil {
		return nil, err
	}
	features := a.sorted()
	out := make([]byte, _PARTIAL_PREAMBLE_SIZE)
	out[0] = byte(internal.FamilyEnum.Summary.MaxPreLongs)
	out[1] = _PARTIAL_SER_VER
	out[2] = byte(internal.FamilyEnum.Summary.Id)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(features)))

	for _, fs := range features {
		out = binary.AppendUvarint(out, uint64(len(fs.path)))
		for _, step := range fs.path {
			out = appendBytes(out, []byte(step))
		}
		var flags byte
		if fs.summary.Weighted() {
			flags |= _PARTIAL_WEIGHTED_FLAG
		}
		out = append(out, flags)

		b, err := fs.summary.distinct.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", fs.path, err)
		}
		out = appendBytes(out, b)
		if b, err = fs.summary.unweighted.MarshalBinary(); err != nil {
			return nil, fmt.Errorf("feature %s: %w", fs.path, err)
		}
		out = appendBytes(out, b)
		if fs.summary.weighted != nil {
			if b, err = fs.summary.weighted.MarshalBinary(); err != nil {
				return nil, fmt.Errorf("feature %s: %w", fs.path, err)
			}
			out = appendBytes(out, b)
		}
	}
	return out, nil
}

func appendBytes(out, b []byte) []byte {
	out = binary.AppendUvarint(out, uint64(len(b)))
	return append(out, b...)
}

type partialDecoder struct {
	b   []byte
	pos int
}

func (d *partialDecoder) readUvarint() (uint64, error) {
	v, n := binary.Uvarint(d.b[d.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad varint at offset %d", ErrCorruptPartial, d.pos)
	}
	d.pos += n
	return v, nil
}

func (d *partialDecoder) readBytes() ([]byte, error) {
	n, err := d.readUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(d.b)-d.pos) {
		return nil, fmt.Errorf("%w: %d bytes needed at offset %d, %d left", ErrCorruptPartial, n, d.pos, len(d.b)-d.pos)
	}
	out := d.b[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return out, nil
}

func (d *partialDecoder) readByte() (byte, error) {
	if d.pos >= len(d.b) {
		return 0, fmt.Errorf("%w: unexpected end of data", ErrCorruptPartial)
	}
	v := d.b[d.pos]
	d.pos++
	return v, nil
}

// UnmarshalAccumulator decodes an accumulator written by
// Accumulator.MarshalBinary. The sketches must match the configuration of c.
func (c *StatsCombiner) UnmarshalAccumulator(b []byte) (*Accumulator, error) {
	if len(b) < _PARTIAL_PREAMBLE_SIZE {
		return nil, fmt.Errorf("%w: need %d preamble bytes, got %d", ErrCorruptPartial, _PARTIAL_PREAMBLE_SIZE, len(b))
	}
	if b[1] != _PARTIAL_SER_VER {
		return nil, fmt.Errorf("%w: serialization version %d", ErrCorruptPartial, b[1])
	}
	if int(b[2]) != internal.FamilyEnum.Summary.Id {
		return nil, fmt.Errorf("%w: family id %d", ErrCorruptPartial, b[2])
	}
	numFeatures := binary.LittleEndian.Uint32(b[4:])

	acc := c.CreateAccumulator()
	d := &partialDecoder{b: b, pos: _PARTIAL_PREAMBLE_SIZE}
	for i := uint32(0); i < numFeatures; i++ {
		fs, err := c.decodeFeature(d)
		if err != nil {
			return nil, err
		}
		key := fs.path.Key()
		if _, ok := acc.features[key]; ok {
			return nil, fmt.Errorf("%w: duplicate feature %s", ErrCorruptPartial, fs.path)
		}
		acc.features[key] = fs
	}
	if d.pos != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptPartial, len(b)-d.pos)
	}
	return acc, nil
}

func (c *StatsCombiner) decodeFeature(d *partialDecoder) (*featureSummary, error) {
	numSteps, err := d.readUvarint()
	if err != nil {
		return nil, err
	}
	if numSteps == 0 || numSteps > uint64(len(d.b)-d.pos) {
		return nil, fmt.Errorf("%w: path with %d steps", ErrCorruptPartial, numSteps)
	}
	path := make(FeaturePath, numSteps)
	for i := range path {
		step, err := d.readBytes()
		if err != nil {
			return nil, err
		}
		path[i] = string(step)
	}
	flags, err := d.readByte()
	if err != nil {
		return nil, err
	}

	raw, err := d.readBytes()
	if err != nil {
		return nil, err
	}
	distinct, err := c.factory.DecodeDistinctSketch(raw)
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", path, err)
	}
	if raw, err = d.readBytes(); err != nil {
		return nil, err
	}
	unweighted, err := c.factory.DecodeTopKSketch(raw)
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", path, err)
	}
	var weighted TopKSketch
	if flags&_PARTIAL_WEIGHTED_FLAG != 0 {
		if raw, err = d.readBytes(); err != nil {
			return nil, err
		}
		if weighted, err = c.factory.DecodeTopKSketch(raw); err != nil {
			return nil, fmt.Errorf("feature %s: %w", path, err)
		}
	}
	return &featureSummary{
		path:    path,
		summary: NewCombinedSummary(distinct, unweighted, weighted),
	}, nil
}

// WritePartial writes acc to w as an lz4 frame.
func WritePartial(w io.Writer, acc *Accumulator) error {
	b, err := acc.MarshalBinary()
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(w)
	if _, err := zw.Write(b); err != nil {
		return err
	}
	return zw.Close()
}

// ReadPartial reads an accumulator written by WritePartial.
func (c *StatsCombiner) ReadPartial(r io.Reader) (*Accumulator, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(lz4.NewReader(r)); err != nil {
		return nil, fmt.Errorf("reading partial: %w", err)
	}
	return c.UnmarshalAccumulator(buf.Bytes())
}
