package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsExitInput(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"q", true},
		{"Q", true},
		{"  quit ", true},
		{"exit", true},
		{"\x1b", true},
		{"abc\x1b", true},
		{"", false},
		{"query", false},
		{"hello", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isExitInput(tt.line), "%q", tt.line)
	}
}

func TestListenForExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenForExit(ctx, strings.NewReader("hello\nq\nignored\n"), cancel)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestListenForExitEOF(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenForExit(ctx, strings.NewReader("hello\nworld"), cancel)
	assert.NoError(t, ctx.Err())
}
