// Command tablewire-log views and summarizes protocol event files.
//
// Event files are written by tablewired when started with an
// event_file in the configuration or the -event-file flag.
//
// Usage:
//
//	tablewire-log <command> [flags] <file.twlog>
//
// Commands:
//
//	view   Print events in human-readable format
//	stats  Show event counts per layer and category
//
// Examples:
//
//	# View all events
//	tablewire-log view server.twlog
//
//	# View only session-layer events for one connection
//	tablewire-log view -layer session -conn-id abc12345 server.twlog
//
//	# Summarize a capture
//	tablewire-log stats server.twlog
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tablewire/tablewire-go/pkg/log"
)

const usage = `tablewire-log - protocol event file viewer

Usage:
  tablewire-log <command> [flags] <file.twlog>

Commands:
  view   Print events in human-readable format
  stats  Show event counts per layer and category

Use "tablewire-log <command> -help" for more information.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "view":
		err = runView(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s", cmd, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "tablewire-log:", err)
		os.Exit(1)
	}
}

func runView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	layer := fs.String("layer", "", "Filter by layer (transport, wire, session)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	connID := fs.String("conn-id", "", "Filter by connection ID prefix")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("expected one event file")
	}
	reader, err := log.NewReader(fs.Arg(0))
	if err != nil {
		return err
	}
	defer reader.Close()

	events, err := reader.ReadAll()
	if err != nil {
		return err
	}
	for _, ev := range events {
		if !matches(ev, *layer, *direction, *connID) {
			continue
		}
		fmt.Println(formatEvent(ev))
	}
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("expected one event file")
	}
	reader, err := log.NewReader(fs.Arg(0))
	if err != nil {
		return err
	}
	defer reader.Close()

	events, err := reader.ReadAll()
	if err != nil {
		return err
	}

	byLayer := map[string]int{}
	byCategory := map[string]int{}
	conns := map[string]bool{}
	for _, ev := range events {
		byLayer[ev.Layer.String()]++
		byCategory[ev.Category.String()]++
		if ev.ConnectionID != "" {
			conns[ev.ConnectionID] = true
		}
	}

	fmt.Printf("Events:      %d\n", len(events))
	fmt.Printf("Connections: %d\n", len(conns))
	fmt.Println("By layer:")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerSession} {
		fmt.Printf("  %-10s %d\n", l.String(), byLayer[l.String()])
	}
	fmt.Println("By category:")
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError, log.CategoryPolicy} {
		fmt.Printf("  %-10s %d\n", c.String(), byCategory[c.String()])
	}
	return nil
}

func matches(ev log.Event, layer, direction, connID string) bool {
	if layer != "" && !strings.EqualFold(ev.Layer.String(), layer) {
		return false
	}
	if direction != "" && !strings.EqualFold(ev.Direction.String(), direction) {
		return false
	}
	if connID != "" && !strings.HasPrefix(ev.ConnectionID, connID) {
		return false
	}
	return true
}

func formatEvent(ev log.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-9s %-3s %-7s",
		ev.Timestamp.Format("15:04:05.000"),
		ev.Layer.String(), ev.Direction.String(), ev.Category.String())
	if ev.ConnectionID != "" {
		fmt.Fprintf(&b, " conn=%.8s", ev.ConnectionID)
	}
	if ev.SessionID != "" {
		fmt.Fprintf(&b, " sid=%s", ev.SessionID)
	}
	switch {
	case ev.Frame != nil:
		fmt.Fprintf(&b, " frame %d bytes", ev.Frame.Size)
		if ev.Frame.Truncated {
			b.WriteString(" (log truncated)")
		}
	case ev.Message != nil:
		fmt.Fprintf(&b, " %s", ev.Message.Type)
		if ev.Message.ErrorCode != "" {
			fmt.Fprintf(&b, " code=%s", ev.Message.ErrorCode)
		}
		if ev.Message.Detail != "" {
			fmt.Fprintf(&b, " (%s)", ev.Message.Detail)
		}
	case ev.StateChange != nil:
		if ev.StateChange.OldState != "" {
			fmt.Fprintf(&b, " %s -> %s", ev.StateChange.OldState, ev.StateChange.NewState)
		} else {
			fmt.Fprintf(&b, " -> %s", ev.StateChange.NewState)
		}
	case ev.Error != nil:
		fmt.Fprintf(&b, " %s", ev.Error.Message)
	}
	return b.String()
}
