// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/tomtom215/encore/internal/models"
)

const barWidth = 24

type palette struct {
	track   lipgloss.Style
	artist  lipgloss.Style
	bar     lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
}

func newPalette() palette {
	return palette{
		track:   lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true),
		artist:  lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		bar:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
	}
}

// Screen redraws a single status line. SetView is called by the reconciler
// and Frame by the progress animator, possibly from different goroutines.
type Screen struct {
	mu     sync.Mutex
	out    io.Writer
	styles palette
	view   models.ClientViewState
}

// NewScreen creates a Screen writing to out.
func NewScreen(out io.Writer) *Screen {
	return &Screen{out: out, styles: newPalette()}
}

// SetView stores the latest view. The next frame renders it.
//
//nolint:gocritic // reconciler listener signature
func (s *Screen) SetView(view models.ClientViewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
}

// Frame redraws the line with the interpolated position.
func (s *Screen) Frame(positionMS int64, fraction float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r\033[K%s", s.line(positionMS, fraction))
}

// Close ends the status line.
func (s *Screen) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out)
}

func (s *Screen) line(positionMS int64, fraction float64) string {
	var b strings.Builder
	if !s.view.ProviderConnected && s.view.EmittedAt > 0 {
		b.WriteString(s.styles.warning.Render("[provider offline] "))
	}

	pb := s.view.Playback
	if pb == nil || pb.CurrentTrack == nil {
		b.WriteString(s.styles.muted.Render("Nothing playing"))
		return b.String()
	}

	icon := "||"
	if pb.IsPlaying {
		icon = ">"
	}
	track := pb.CurrentTrack
	fmt.Fprintf(&b, "%s %s - %s  %s %s / %s",
		icon,
		s.styles.track.Render(track.Name),
		s.styles.artist.Render(track.ArtistNames),
		s.styles.bar.Render(progressBar(fraction, barWidth)),
		formatClock(positionMS),
		formatClock(track.DurationMS),
	)

	if len(pb.Queue) > 0 {
		next := pb.Queue[0]
		label := "next: " + next.Name
		if next.RequesterNickname != "" {
			label += " (requested by " + next.RequesterNickname + ")"
		}
		b.WriteString("  " + s.styles.muted.Render(label))
	}
	return b.String()
}

func progressBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func formatClock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
