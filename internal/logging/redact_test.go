package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestRedactedString(t *testing.T) {
	field := RedactedString("api_key", "sk-1234567890abcdef")
	assert.Equal(t, "api_key", field.Key)
	assert.Equal(t, "[REDACTED:19]", field.String)
}

func TestRedactingEncoderMasksSensitiveKeys(t *testing.T) {
	cfg := NewDefaultConfig()
	enc, err := newEncoder("json", cfg.Redaction)
	require.NoError(t, err)

	enc.AddString("api_key", "sk-live-deadbeef")
	enc.AddString("path", "/home/alice/project")

	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Now(),
		Message: "probe",
	}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "sk-live-deadbeef")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "/home/alice/project")
}

func TestRedactingEncoderMasksValuePatterns(t *testing.T) {
	cfg := NewDefaultConfig()
	enc, err := newEncoder("json", cfg.Redaction)
	require.NoError(t, err)

	enc.AddString("note", "auth header was Bearer abc123def")

	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.WarnLevel,
		Time:    time.Now(),
		Message: "probe",
	}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "abc123def")
	assert.Contains(t, out, "[REDACTED:pattern]")
}

func TestNewRedactingEncoderInvalidPattern(t *testing.T) {
	cfg := RedactionConfig{
		Enabled:  true,
		Fields:   []string{"password"},
		Patterns: []string{`(?i)bearer\s+\S+`, "[invalid("},
	}

	encoder, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zapcore.EncoderConfig{}), cfg)
	assert.Error(t, err)
	assert.Nil(t, encoder)
	assert.Contains(t, err.Error(), "invalid redaction pattern")
}

func TestNewRedactingEncoderDisabledSkipsValidation(t *testing.T) {
	cfg := RedactionConfig{
		Enabled:  false,
		Patterns: []string{"[invalid("},
	}

	encoder, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zapcore.EncoderConfig{}), cfg)
	assert.NoError(t, err)
	assert.NotNil(t, encoder)
}

func TestRedactingEncoderAllMethodsImplemented(t *testing.T) {
	cfg := RedactionConfig{
		Enabled: true,
		Fields:  []string{"password", "token", "certificate", "credentials", "secret_array"},
	}

	encoder, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zapcore.EncoderConfig{}), cfg)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		encoder.AddString("password", "secret")
		encoder.AddByteString("token", []byte("token-value"))
		encoder.AddBinary("certificate", []byte{0x00})
		_ = encoder.AddReflected("safe_field", "value")
		_ = encoder.AddObject("credentials", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
			return nil
		}))
		_ = encoder.AddArray("secret_array", zapcore.ArrayMarshalerFunc(func(enc zapcore.ArrayEncoder) error {
			return nil
		}))
	})
}
