package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_IsSensitive(t *testing.T) {
	s := NewSanitizer(nil)

	tests := []struct {
		name string
		want bool
	}{
		{"password", true},
		{"Password", true},
		{"password__2", true},
		{"token_0", true},
		{"apiKey", true},
		{"apiKey_3", true},
		{"cardNumber", true},
		{"name", false},
		{"age__2", false},
		{"email_1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsSensitive(tt.name))
		})
	}
}

func TestSanitizer_MaskNamed(t *testing.T) {
	s := NewSanitizer(nil)
	values := []interface{}{"Tom", "hunter2", 7}

	masked := s.MaskNamed([]string{"name", "password", "id"}, values)
	assert.Equal(t, []interface{}{"Tom", "***REDACTED***", 7}, masked)
	assert.Equal(t, "hunter2", values[1], "input must not be modified")

	// Values without a name are kept.
	masked = s.MaskNamed([]string{"password"}, []interface{}{"x", "y"})
	assert.Equal(t, []interface{}{"***REDACTED***", "y"}, masked)
}

func TestSanitizer_MaskParams(t *testing.T) {
	s := NewSanitizer(nil)

	tests := []struct {
		name   string
		sql    string
		params []interface{}
		want   []interface{}
	}{
		{
			name:   "password column",
			sql:    `UPDATE "user" SET "password" = ? WHERE "id" = ?`,
			params: []interface{}{"secret123", 1},
			want:   []interface{}{"***REDACTED***", "***REDACTED***"},
		},
		{
			name:   "case insensitive",
			sql:    "UPDATE users SET PASSWORD = ? WHERE id = ?",
			params: []interface{}{"secret", 1},
			want:   []interface{}{"***REDACTED***", "***REDACTED***"},
		},
		{
			name:   "no sensitive column",
			sql:    `SELECT COUNT(*) FROM "user" WHERE ( "age" > ? )`,
			params: []interface{}{18},
			want:   []interface{}{18},
		},
		{
			name:   "no params",
			sql:    `DELETE FROM "token"`,
			params: []interface{}{},
			want:   []interface{}{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.MaskParams(tt.sql, tt.params))
		})
	}
}

func TestSanitizer_CustomFields(t *testing.T) {
	s := NewSanitizer([]string{"PIN"})
	assert.True(t, s.IsSensitive("pin"))
	assert.False(t, s.IsSensitive("password"))
	assert.Equal(t, []interface{}{"***REDACTED***"}, s.MaskParams("SELECT 1 WHERE pin = ?", []interface{}{1234}))
}

func TestSanitizer_FormatParams(t *testing.T) {
	s := NewSanitizer(nil)

	assert.Equal(t, "[]", s.FormatParams(nil))
	assert.Equal(t, "[1, Tom, NULL]", s.FormatParams([]interface{}{1, "Tom", nil}))

	long := strings.Repeat("x", 150)
	out := s.FormatParams([]interface{}{long})
	assert.Equal(t, "["+strings.Repeat("x", 100)+"...]", out)
}
