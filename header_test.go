package telemetry_test

import (
	"testing"

	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
	"github.com/stretchr/testify/require"
)

func TestExtractHeader(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		header  string
		want    string
		wantHit bool
	}{
		{
			name:    "case insensitive name",
			raw:     "X-Foo: bar\nX-Baz: qux",
			header:  "x-foo",
			want:    "bar",
			wantHit: true,
		},
		{
			name:    "later line",
			raw:     "X-Foo: bar\nX-Baz: qux",
			header:  "x-baz",
			want:    "qux",
			wantHit: true,
		},
		{
			name:    "unmatched",
			raw:     "X-Foo: bar\nX-Baz: qux",
			header:  "x-missing",
			wantHit: false,
		},
		{
			name:    "crlf line endings",
			raw:     "HTTP/1.1 200 OK\r\nX-Request-Id:  abc-123 \r\nContent-Length: 2\r\n",
			header:  "x-request-id",
			want:    "abc-123",
			wantHit: true,
		},
		{
			name:    "name must start the line",
			raw:     "X-Not-X-Foo: bar",
			header:  "x-foo",
			wantHit: false,
		},
		{
			name:    "first occurrence wins",
			raw:     "Set-Cookie: a=1\nSet-Cookie: b=2",
			header:  "set-cookie",
			want:    "a=1",
			wantHit: true,
		},
		{
			name:    "empty value",
			raw:     "X-Empty:\nX-Foo: bar",
			header:  "x-empty",
			want:    "",
			wantHit: true,
		},
		{
			name:    "regexp characters in name are literal",
			raw:     "X-Foo: bar",
			header:  "x.foo",
			wantHit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := telemetry.ExtractHeader(tt.raw, tt.header)
			require.Equal(t, tt.wantHit, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
