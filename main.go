// Patina - a terminal chat client for OpenAI-compatible language models.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/patina-tui/internal/config"
	"github.com/jeranaias/patina-tui/internal/index"
	"github.com/jeranaias/patina-tui/internal/state"
	"github.com/jeranaias/patina-tui/internal/storage"
	"github.com/jeranaias/patina-tui/internal/ui/chat"
	"github.com/jeranaias/patina-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	dataDirFlag := flag.String("data-dir", "", "override the data directory for transcripts and the search index")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("patina %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	dataDir := *dataDirFlag
	if dataDir == "" {
		var err error
		dataDir, err = config.DataDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving data directory: %v\n", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewTranscriptStore(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening transcript store: %v\n", err)
		os.Exit(1)
	}

	// The search index is best effort; the app runs without it.
	var idx *index.MessageIndex
	if opened, err := index.Open(filepath.Join(dataDir, "index.db")); err == nil {
		idx = opened
		defer idx.Close()
	}

	driver := config.BuildDriver(config.Load())

	engine, err := state.New(store, driver, idx)
	if err != nil {
		// Unreadable transcripts are skipped, not fatal.
		fmt.Fprintf(os.Stderr, "Warning: some conversations could not be loaded: %v\n", err)
	}

	watcher, err := config.NewWatcher(config.ConfigPath(), 300*time.Millisecond)
	if err == nil {
		defer watcher.Close()
	} else {
		watcher = nil
	}

	m := chat.New(engine, watcher, styles.NewTheme())
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running patina: %v\n", err)
		os.Exit(1)
	}
}
