package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderMembers(t *testing.T) {
	tests := []struct {
		name   string
		in     []string
		master string
		want   []string
	}{
		{
			name:   "master moves to front",
			in:     []string{"a", "b", "c"},
			master: "b",
			want:   []string{"b", "a", "c"},
		},
		{
			name:   "master already first",
			in:     []string{"a", "b"},
			master: "a",
			want:   []string{"a", "b"},
		},
		{
			name:   "unknown master keeps order",
			in:     []string{"a", "b"},
			master: "z",
			want:   []string{"a", "b"},
		},
		{
			name: "empty",
			in:   nil,
			want: []string{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := append([]string(nil), tc.in...)
			assert.Equal(t, tc.want, orderMembers(tc.in, tc.master))
			// Input untouched.
			assert.Equal(t, in, tc.in)
		})
	}
}
