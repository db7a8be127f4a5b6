package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/biorelay/relay/internal/tui/app"
	"github.com/biorelay/relay/internal/tui/client"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8765/ws", "WebSocket URL of the relay")
	style := flag.String("style", "dark", "Help overlay style (dark, light, notty)")
	logFile := flag.String("log", "", "Write client logs to this file")
	flag.Parse()

	// Log output would corrupt the alt screen.
	log.SetOutput(io.Discard)
	if *logFile != "" {
		f, err := tea.LogToFile(*logFile, "relay-tui")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	}

	ws := client.NewWSClient(*wsURL)
	httpClient := client.NewHTTPClient(deriveHTTPBase(*wsURL))

	m := app.New(ws, httpClient, *style)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deriveHTTPBase converts ws://host:port/ws → http://host:port
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "http://127.0.0.1:8765"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
