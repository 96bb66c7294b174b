package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
)

const keyEscape = '\x1b'

// listenForExit calls stop once the user presses ESC or types q, each
// followed by Enter. The terminal stays in line mode so log output is not
// garbled.
func listenForExit(ctx context.Context, r io.Reader, stop context.CancelFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if isExitInput(scanner.Text()) {
			slog.Info("exit requested")
			stop()
			return
		}
	}
}

func isExitInput(line string) bool {
	if strings.ContainsRune(line, keyEscape) {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "q", "quit", "exit":
		return true
	}
	return false
}
