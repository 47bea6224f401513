package summary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		summary string
		wantErr bool
	}{
		{name: "bare object", raw: `{"summary":"x"}`, summary: "x"},
		{name: "surrounding whitespace", raw: "\n  {\"summary\":\"x\"}  \n", summary: "x"},
		{name: "prose around object", raw: "Here you go:\n{\"summary\":\"x\"}\nThanks", summary: "x"},
		{name: "code fence", raw: "```json\n{\"summary\":\"x\"}\n```", summary: "x"},
		{name: "nested object", raw: `note {"summary":"x","meta":{"a":{"b":1}}} end`, summary: "x"},
		{name: "braces inside strings", raw: `ok {"summary":"a } b { c"} trailing }`, summary: "a } b { c"},
		{name: "escaped quote in string", raw: `ok {"summary":"say \"}\" now"} bye`, summary: `say "}" now`},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "no object", raw: "sorry, no summary", wantErr: true},
		{name: "unbalanced", raw: `start {"summary":"x"`, wantErr: true},
		{name: "array is not an object", raw: `["summary"]`, wantErr: true},
		{name: "invalid json in braces", raw: `see {summary: x}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedOutput)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.summary, got[KeySummary].Text())
		})
	}
}
