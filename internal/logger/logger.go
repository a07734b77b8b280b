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

// Package logger builds the zap loggers of the command line tools.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileMode string

const (
	// FileModeAppend appends to an existing log file. It is the default.
	FileModeAppend FileMode = "append"
	// FileModeTruncate truncates an existing log file.
	FileModeTruncate FileMode = "truncate"
	// FileModeRotate rotates the log file once it grows large.
	FileModeRotate FileMode = "rotate"
)

func (m *FileMode) Set(s string) error {
	switch FileMode(s) {
	case FileModeAppend, "":
		*m = FileModeAppend
	case FileModeTruncate:
		*m = FileModeTruncate
	case FileModeRotate:
		*m = FileModeRotate
	default:
		return fmt.Errorf("invalid log file mode: %s", s)
	}
	return nil
}

func (m FileMode) String() string {
	return string(m)
}

// Config describes where a logger writes and what it keeps.
type Config struct {
	// Path is a file name or one of "stdout", "stderr" and "/dev/null".
	Path  string
	Mode  FileMode
	Level zapcore.Level
}

// New returns a JSON logger for conf and a function that flushes and closes
// its output.
func New(conf Config) (*zap.Logger, func() error, error) {
	w, closer, err := OpenFile(conf.Path, conf.Mode)
	if err != nil {
		return nil, nil, err
	}
	core := zapcore.NewCore(jsonEncoder(), w, conf.Level)
	closeFn := func() error {
		err := w.Sync()
		if closer != nil {
			if cerr := closer.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return zap.New(core), closeFn, nil
}

func jsonEncoder() zapcore.Encoder {
	conf := zap.NewProductionEncoderConfig()
	conf.CallerKey = ""
	return zapcore.NewJSONEncoder(conf)
}

// OpenFile opens the log output at path. The returned closer is nil for the
// standard streams.
func OpenFile(path string, mode FileMode) (zapcore.WriteSyncer, io.Closer, error) {
	switch path {
	case "", "stderr":
		return zapcore.Lock(os.Stderr), nil, nil
	case "stdout":
		return zapcore.Lock(os.Stdout), nil, nil
	case "/dev/null":
		return zapcore.AddSync(io.Discard), nil, nil
	}
	switch mode {
	case FileModeRotate:
		return logrotate(path)
	case FileModeTruncate:
		return openFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE)
	default:
		return openFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE)
	}
}

func openFile(path string, flag int) (zapcore.WriteSyncer, io.Closer, error) {
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return zapcore.Lock(f), f, nil
}

func logrotate(path string) (zapcore.WriteSyncer, io.Closer, error) {
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil, nil, err
	}
	// lumberjack.Logger is safe for concurrent use.
	l := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	return zapcore.AddSync(l), l, nil
}
