package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZipCompileCommands_EqualLength(t *testing.T) {
	got := zipCompileCommands([]string{"gcc", "javac"}, []string{"main.c", "Main.java"})
	assert.Equal(t, []string{"gcc main.c", "javac Main.java"}, got)
}

func TestZipCompileCommands_TruncatesToShorter(t *testing.T) {
	got := zipCompileCommands([]string{"gcc", "javac", "rustc"}, []string{"main.c"})
	assert.Equal(t, []string{"gcc main.c"}, got)
}

func TestZipCompileCommands_Empty(t *testing.T) {
	assert.Empty(t, zipCompileCommands(nil, nil))
	assert.Empty(t, zipCompileCommands([]string{"gcc"}, nil))
}
