package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		name string
		path string
		ext  string
		want string
	}{
		{name: "swap extension", path: "out/results.txt", ext: "csv", want: "out/results.csv"},
		{name: "dotted extension", path: "results.txt", ext: ".json", want: "results.json"},
		{name: "no extension", path: "results", ext: "json", want: "results.json"},
		{name: "hidden file", path: ".env", ext: "bak", want: ".env.bak"},
		{name: "empty path", path: "", ext: "json", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplaceExt(tt.path, tt.ext))
		})
	}
}
