/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestORMAccessors(t *testing.T) {
	engine := NewBunEngine()
	db := newSQLiteDB(t)
	reg := NewModelRegistry()
	reg.Register("widget", NewModelAdapter(&widget{}, 0))

	orm := newORM(engine, db, reg)

	assert.Same(t, engine, orm.Driver())
	assert.Same(t, db, orm.Session())
	require.NotNil(t, orm.Model("widget"))
	assert.IsType(t, &widget{}, orm.Model("widget").Instance())
	assert.Nil(t, orm.Model("gadget"))
}

func TestORMWithoutRegistry(t *testing.T) {
	orm := newORM(NewBunEngine(), newSQLiteDB(t), nil)

	assert.Nil(t, orm.Model("widget"))
	_, ok := orm.Lookup("widget")
	assert.False(t, ok)
}

func TestORMContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ORMFromContext(ctx))

	orm := newORM(NewBunEngine(), newSQLiteDB(t), nil)
	assert.Same(t, orm, ORMFromContext(ContextWithORM(ctx, orm)))
}

func newBufferLogger() (*DefaultLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	l.SetLevel(logrus.DebugLevel)
	return NewLogrusLogger(l), &buf
}

func TestDefaultLoggerFields(t *testing.T) {
	logger, buf := newBufferLogger()

	logger.Info("Application database created", "database", "yavin", 42, "ignored", "dangling")

	out := buf.String()
	assert.Contains(t, out, `msg="Application database created"`)
	assert.Contains(t, out, "database=yavin")
	assert.NotContains(t, out, "ignored")
	assert.NotContains(t, out, "dangling")
}

func TestDefaultLoggerLevel(t *testing.T) {
	logger, buf := newBufferLogger()
	logger.SetLevel(LogLevelWarn)

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown")
	logger.Error("shown too")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "shown too")
}

type recordingLogger struct {
	nopLogger
	debug []string
}

func (r *recordingLogger) Debug(msg string, fields ...interface{}) {
	r.debug = append(r.debug, msg)
}

func TestDebugWriterSplitsLines(t *testing.T) {
	rec := &recordingLogger{}
	w := debugWriter{logger: rec}

	input := []byte("[bun]  12:00:00.000  SELECT  1ms  SELECT 1\n\nsecond line\n")
	n, err := w.Write(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), n)
	assert.Equal(t, []string{"[bun]  12:00:00.000  SELECT  1ms  SELECT 1", "second line"}, rec.debug)
}

func TestNewDefaultLoggerReusesRegisteredLogger(t *testing.T) {
	a := NewDefaultLogger()
	b := NewDefaultLogger()
	assert.Same(t, a.logger, b.logger)
}

func TestNewDefaultLoggerOmitsCaller(t *testing.T) {
	logger := NewDefaultLogger()
	assert.False(t, logger.logger.ReportCaller)

	var buf bytes.Buffer
	logger.logger.SetOutput(&buf)
	t.Cleanup(func() { logger.logger.SetOutput(os.Stdout) })
	logger.Warn("Database was created concurrently")

	assert.Contains(t, buf.String(), "Database was created concurrently")
	assert.NotContains(t, buf.String(), "logger.go:")
}
