package log

import (
	"context"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger traces a named operation through its steps.
// Steps and success are emitted at debug level, errors at error level.
//
//	tracer := log.NewDebugLogger("coordinator").WithContext(ctx).Operation("submit_job").WithString("job_id", id).Build()
//	tracer.Step("rows_created").WithInt("count", n).Log()
//	tracer.Success().Log()
type StructuredLogger struct {
	name string
	ctx  context.Context
}

func NewDebugLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, ctx: context.Background()}
}

func (l *StructuredLogger) WithContext(ctx context.Context) *StructuredLogger {
	return &StructuredLogger{name: l.name, ctx: ctx}
}

func (l *StructuredLogger) Operation(op string) *OperationBuilder {
	fields := []zap.Field{zap.String("operation", op)}
	if id := requestid.FromContext(l.ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return &OperationBuilder{name: l.name, fields: fields}
}

type OperationBuilder struct {
	name   string
	fields []zap.Field
}

func (b *OperationBuilder) WithParam(key string, value any) *OperationBuilder {
	b.fields = append(b.fields, zap.Any(key, value))
	return b
}

func (b *OperationBuilder) WithString(key, value string) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value))
	return b
}

func (b *OperationBuilder) WithInt(key string, value int) *OperationBuilder {
	b.fields = append(b.fields, zap.Int(key, value))
	return b
}

func (b *OperationBuilder) WithBool(key string, value bool) *OperationBuilder {
	b.fields = append(b.fields, zap.Bool(key, value))
	return b
}

func (b *OperationBuilder) Build() *OperationTracer {
	return &OperationTracer{
		name:    b.name,
		fields:  b.fields,
		started: time.Now(),
	}
}

type OperationTracer struct {
	name    string
	fields  []zap.Field
	started time.Time
}

func (t *OperationTracer) Step(step string) *Entry {
	return t.entry(zapcore.DebugLevel, "step", zap.String("step", step))
}

func (t *OperationTracer) Error(err error) *Entry {
	return t.entry(zapcore.ErrorLevel, "operation failed", zap.Error(err), zap.Duration("elapsed", time.Since(t.started)))
}

func (t *OperationTracer) Success() *Entry {
	return t.entry(zapcore.DebugLevel, "operation succeeded", zap.Duration("elapsed", time.Since(t.started)))
}

func (t *OperationTracer) entry(lvl zapcore.Level, msg string, extra ...zap.Field) *Entry {
	fields := make([]zap.Field, 0, len(t.fields)+len(extra))
	fields = append(fields, t.fields...)
	fields = append(fields, extra...)
	return &Entry{name: t.name, level: lvl, msg: msg, fields: fields}
}

// Entry is a single log line under construction.
type Entry struct {
	name   string
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

func (e *Entry) WithParam(key string, value any) *Entry {
	e.fields = append(e.fields, zap.Any(key, value))
	return e
}

func (e *Entry) WithString(key, value string) *Entry {
	e.fields = append(e.fields, zap.String(key, value))
	return e
}

func (e *Entry) WithInt(key string, value int) *Entry {
	e.fields = append(e.fields, zap.Int(key, value))
	return e
}

func (e *Entry) WithBool(key string, value bool) *Entry {
	e.fields = append(e.fields, zap.Bool(key, value))
	return e
}

func (e *Entry) WithDuration(key string, value time.Duration) *Entry {
	e.fields = append(e.fields, zap.Duration(key, value))
	return e
}

func (e *Entry) Log() {
	logger := zap.L().Named(e.name)
	if ce := logger.Check(e.level, e.msg); ce != nil {
		ce.Write(e.fields...)
	}
}
