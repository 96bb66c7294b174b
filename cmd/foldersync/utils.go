package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/openmined/foldersync/internal/config"
	"github.com/openmined/foldersync/internal/version"
)

var (
	// https://github.com/muesli/termenv/blob/master/ansicolors.go
	green     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cyan      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	lightGray = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))

	title = cyan.Bold(true)
)

const exitHint = "Press ESC or q to exit."

func showBanner(w io.Writer, cfg *config.Config, interactive bool) {
	fmt.Fprintln(w, title.Render(version.ShortWithApp()))
	fmt.Fprintf(w, "%s %s\n", gray.Render("source  "), lightGray.Render(cfg.SourceDir))
	fmt.Fprintf(w, "%s %s\n", gray.Render("replica "), lightGray.Render(cfg.ReplicaDir))
	fmt.Fprintf(w, "%s %s\n", gray.Render("interval"), lightGray.Render(cfg.SyncInterval().String()))
	fmt.Fprintf(w, "%s %s\n", gray.Render("log     "), lightGray.Render(cfg.LogFile))
	if interactive {
		fmt.Fprintln(w, green.Render(exitHint))
	}
	fmt.Fprintln(w)
}
