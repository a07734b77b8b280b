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

// Command topkuniques computes top-k and uniques statistics of the features
// of Arrow IPC files.
//
// Each input is folded into its own accumulator; inputs ending in .tkp are
// partial states written by an earlier run with -partial. All accumulators
// are merged and the result is written either as a JSON report or, with
// -partial, as a new partial state.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/apache/datasketches-featurestats-go/featurestats"
	"github.com/apache/datasketches-featurestats-go/internal/logger"
	"github.com/apache/datasketches-featurestats-go/metrics"
	"github.com/apache/datasketches-featurestats-go/schema"
)

const partialExt = ".tkp"

type flags struct {
	config   string
	schema   string
	output   string
	partial  string
	metrics  string
	parallel int
	logPath  string
	logMode  logger.FileMode
	debug    bool
	inputs   []string
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("topkuniques", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: topkuniques [flags] input...")
		fs.PrintDefaults()
	}
	fs.StringVar(&f.config, "config", "", "YAML configuration file")
	fs.StringVar(&f.schema, "schema", "", "YAML schema declaring categorical and bytes features")
	fs.StringVar(&f.output, "o", "", "write the JSON report to this file instead of stdout")
	fs.StringVar(&f.partial, "partial", "", "write the merged partial state to this file instead of a report")
	fs.StringVar(&f.metrics, "metrics", "", "write prometheus metrics in text format to this file")
	fs.IntVar(&f.parallel, "parallel", runtime.GOMAXPROCS(0), "number of inputs read concurrently")
	fs.StringVar(&f.logPath, "log", "stderr", "log file, stdout, stderr or /dev/null")
	fs.Var(&f.logMode, "logmode", "log file mode: append, truncate or rotate")
	fs.BoolVar(&f.debug, "debug", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.inputs = fs.Args()
	if len(f.inputs) == 0 {
		fs.Usage()
		return nil, errors.New("no input files")
	}
	if f.parallel < 1 {
		return nil, fmt.Errorf("-parallel must be positive: %d", f.parallel)
	}
	return f, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "topkuniques:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	level := zapcore.InfoLevel
	if f.debug {
		level = zapcore.DebugLevel
	}
	log, closeLog, err := logger.New(logger.Config{Path: f.logPath, Mode: f.logMode, Level: level})
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeLog())
	}()

	combiner, reg, err := newCombiner(f, log)
	if err != nil {
		return err
	}
	accs, err := readInputs(ctx, combiner, f.inputs, f.parallel, log)
	if err != nil {
		return err
	}
	merged, err := combiner.MergeAccumulators(accs...)
	if err != nil {
		return err
	}
	log.Info("merged inputs", zap.Int("inputs", len(accs)), zap.Int("features", merged.Len()))

	if f.partial != "" {
		err = writeFile(f.partial, func(w io.Writer) error {
			return featurestats.WritePartial(w, merged)
		})
	} else {
		err = writeReport(combiner, merged, f.output, stdout)
	}
	if err != nil {
		return err
	}
	if f.metrics != "" {
		return prometheus.WriteToTextfile(f.metrics, reg)
	}
	return nil
}

func newCombiner(f *flags, log *zap.Logger) (*featurestats.StatsCombiner, *prometheus.Registry, error) {
	cfg := featurestats.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = featurestats.LoadConfigFile(f.config); err != nil {
			return nil, nil, err
		}
	}
	reg := prometheus.NewRegistry()
	opts := []featurestats.StatsCombinerOptionFunc{
		featurestats.WithConfig(cfg),
		featurestats.WithLogger(log),
		featurestats.WithObserver(metrics.NewObserver(reg)),
	}
	if f.schema != "" {
		s, err := schema.LoadFile(f.schema)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, featurestats.WithSchema(s))
	}
	c, err := featurestats.NewStatsCombiner(opts...)
	if err != nil {
		return nil, nil, err
	}
	return c, reg, nil
}

// readInputs folds every input into its own accumulator, at most parallel at
// a time.
func readInputs(ctx context.Context, c *featurestats.StatsCombiner, inputs []string, parallel int, log *zap.Logger) ([]*featurestats.Accumulator, error) {
	accs := make([]*featurestats.Accumulator, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range inputs {
		g.Go(func() error {
			acc, err := readInput(ctx, c, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			log.Debug("read input", zap.String("path", path), zap.Int("features", acc.Len()))
			accs[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return accs, nil
}

func readInput(ctx context.Context, c *featurestats.StatsCombiner, path string) (acc *featurestats.Accumulator, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()
	if strings.EqualFold(filepath.Ext(path), partialExt) {
		return c.ReadPartial(file)
	}
	acc = c.CreateAccumulator()
	add := func(rec arrow.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return c.AddInput(acc, rec)
	}
	err = readArrowFile(file, add)
	if errors.Is(err, errNotArrowFile) {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		err = readArrowStream(file, add)
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

var errNotArrowFile = errors.New("not in arrow file format")

// readArrowFile reads the random access IPC format.
func readArrowFile(file *os.File, fn func(arrow.Record) error) error {
	r, err := ipc.NewFileReader(file)
	if err != nil {
		return fmt.Errorf("%w: %w", errNotArrowFile, err)
	}
	defer r.Close()
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.RecordAt(i)
		if err != nil {
			return err
		}
		err = fn(rec)
		rec.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

// readArrowStream reads the IPC streaming format.
func readArrowStream(r io.Reader, fn func(arrow.Record) error) error {
	ipcReader, err := ipc.NewReader(r)
	if err != nil {
		return err
	}
	defer ipcReader.Release()
	for ipcReader.Next() {
		if err := fn(ipcReader.Record()); err != nil {
			return err
		}
	}
	return ipcReader.Err()
}

func writeReport(c *featurestats.StatsCombiner, acc *featurestats.Accumulator, path string, stdout io.Writer) error {
	report, err := c.ExtractOutput(acc)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "" {
		_, err = stdout.Write(b)
		return err
	}
	return writeFile(path, func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return fn(f)
}
