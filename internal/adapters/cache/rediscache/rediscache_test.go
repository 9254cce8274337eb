package rediscache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

func TestClear_RequiresPrefix(t *testing.T) {
	c := New(nil, "", 0)

	err := c.Clear(context.Background())

	assert.ErrorIs(t, err, sentinel.ErrInvalidArgument)
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "foundation:", want: "foundation:*"},
		{prefix: "t*:", want: `t\*:*`},
		{prefix: "a?b", want: `a\?b*`},
		{prefix: "[x]", want: `\[x\]*`},
		{prefix: `back\slash`, want: `back\\slash*`},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, matchPattern(tt.prefix))
		})
	}
}
