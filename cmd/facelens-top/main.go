package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zsiec/facelens/internal/dashboard"
	"github.com/zsiec/facelens/pkg/version"
)

func main() {
	var (
		addr        string
		interval    time.Duration
		showVersion bool
	)

	flag.StringVar(&addr, "addr", "http://localhost:8080", "Base URL of the facelens server")
	flag.DurationVar(&interval, "interval", time.Second, "Polling interval")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	client := &http.Client{Timeout: interval}
	model := dashboard.New(addr, client, interval)

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		os.Exit(1)
	}
}
