package logging

import (
	"encoding/json"
	"math"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferPool = buffer.NewPool()

// ScalyrEncoder outputs one flat Scalyr-compatible JSON object per entry
type ScalyrEncoder struct {
	// context holds fields added through With(); it is a bare JSON
	// encoder so encoding an empty entry yields only those fields.
	zapcore.Encoder
	config zapcore.EncoderConfig
}

// NewScalyrEncoder creates a new Scalyr-compatible encoder
func NewScalyrEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	return &ScalyrEncoder{
		Encoder: zapcore.NewJSONEncoder(zapcore.EncoderConfig{}),
		config:  config,
	}
}

// EncodeEntry encodes a log entry in Scalyr-compatible format
func (e *ScalyrEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	logObj := map[string]interface{}{
		"timestamp": entry.Time.Format(time.RFC3339Nano),
		"level":     entry.Level.String(),
		"message":   entry.Message,
	}
	if entry.LoggerName != "" {
		logObj["logger"] = entry.LoggerName
	}
	if entry.Caller.Defined {
		logObj["file"] = entry.Caller.File
		logObj["line"] = entry.Caller.Line
		logObj["function"] = entry.Caller.Function
	}
	if entry.Stack != "" {
		logObj["stack"] = entry.Stack
	}

	// fields added through With() first, so per-call fields win
	ctxBuf, err := e.Encoder.EncodeEntry(zapcore.Entry{}, nil)
	if err != nil {
		return nil, err
	}
	var ctxFields map[string]interface{}
	if err := json.Unmarshal(ctxBuf.Bytes(), &ctxFields); err == nil {
		for k, v := range ctxFields {
			logObj[k] = v
		}
	}
	ctxBuf.Free()

	for _, field := range fields {
		logObj[field.Key] = fieldValue(field)
	}

	buf := bufferPool.Get()
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(logObj); err != nil {
		buf.Free()
		return nil, err
	}
	return buf, nil
}

// Clone creates a copy of the encoder
func (e *ScalyrEncoder) Clone() zapcore.Encoder {
	return &ScalyrEncoder{
		Encoder: e.Encoder.Clone(),
		config:  e.config,
	}
}

func fieldValue(field zapcore.Field) interface{} {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return field.Integer
	case zapcore.Float64Type:
		return math.Float64frombits(uint64(field.Integer))
	case zapcore.Float32Type:
		return math.Float32frombits(uint32(field.Integer))
	case zapcore.BoolType:
		return field.Integer == 1
	case zapcore.DurationType:
		return time.Duration(field.Integer).String()
	case zapcore.TimeType:
		if loc, ok := field.Interface.(*time.Location); ok {
			return time.Unix(0, field.Integer).In(loc).Format(time.RFC3339Nano)
		}
		return time.Unix(0, field.Integer).UTC().Format(time.RFC3339Nano)
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			return err.Error()
		}
		return nil
	case zapcore.StringerType:
		if s, ok := field.Interface.(interface{ String() string }); ok {
			return s.String()
		}
		return field.Interface
	default:
		return field.Interface
	}
}
