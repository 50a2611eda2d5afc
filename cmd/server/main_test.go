package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	prev := os.Args
	os.Args = append([]string{"server"}, args...)
	t.Cleanup(func() { os.Args = prev })
}

func TestRunReturnsExitCode(t *testing.T) {
	t.Run("missing configuration", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		withArgs(t, "migrate")
		assert.Equal(t, 1, run())
	})

	t.Run("unknown command", func(t *testing.T) {
		t.Setenv("DB_USER", "fair")
		t.Setenv("DB_NAME", "careerfair")
		t.Setenv("JWT_SECRET", "s3cret")
		withArgs(t, "bogus")
		assert.Equal(t, 1, run())
	})
}
