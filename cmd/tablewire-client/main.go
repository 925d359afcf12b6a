// Command tablewire-client is a small test client for the table
// protocol.
//
// It connects, performs the version handshake and optionally sends an
// action or a reload request, printing every server message until the
// connection closes or the wait time elapses. Connection failures are
// retried with backoff.
//
// Examples:
//
//	# Handshake and listen for state updates
//	tablewire-client -addr localhost:8080
//
//	# Send a raise
//	tablewire-client -action RAISE -amount 50
//
//	# Ask for a chip reload
//	tablewire-client -reload 500
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tablewire/tablewire-go/pkg/connection"
	"github.com/tablewire/tablewire-go/pkg/transport"
	"github.com/tablewire/tablewire-go/pkg/wire"
)

func main() {
	var (
		addr    = flag.String("addr", "localhost:8080", "Server address")
		name    = flag.String("name", "tablewire-client", "Client name sent in the handshake")
		action  = flag.String("action", "", "Action to send (FOLD, CHECK, CALL, RAISE, ALL_IN)")
		amount  = flag.Float64("amount", 0, "Amount for RAISE or ALL_IN")
		reload  = flag.Float64("reload", 0, "Request a chip reload of this amount")
		retries = flag.Int("retries", 3, "Connect attempts before giving up")
		wait    = flag.Duration("wait", 5*time.Second, "How long to listen for server messages")
	)
	flag.Parse()

	if err := run(*addr, *name, *action, *amount, *reload, *retries, *wait); err != nil {
		fmt.Fprintln(os.Stderr, "tablewire-client:", err)
		os.Exit(1)
	}
}

func run(addr, name, action string, amount, reload float64, retries int, wait time.Duration) error {
	client := connection.NewClient(connection.ClientConfig{
		Address:     addr,
		ClientName:  name,
		MaxAttempts: retries,
		OnStateChange: func(old, new connection.State) {
			fmt.Printf("connection: %s -> %s\n", old, new)
		},
	})
	defer client.Close()

	conn, sessionID, err := client.Connect(context.Background())
	if err != nil {
		return err
	}
	fmt.Println("session:", sessionID)

	if action != "" {
		msg := &wire.Action{
			SessionID:      sessionID,
			ActionType:     wire.ActionType(action),
			SequenceNumber: 1,
		}
		if wire.ActionType(action).RequiresAmount() {
			msg.Amount = &amount
		}
		data, err := wire.EncodeAction(msg)
		if err != nil {
			return err
		}
		if err := conn.WriteFrame(data); err != nil {
			return err
		}
	}
	if reload > 0 {
		data, err := wire.EncodeReloadRequest(&wire.ReloadRequest{
			SessionID:       sessionID,
			RequestedAmount: reload,
		})
		if err != nil {
			return err
		}
		if err := conn.WriteFrame(data); err != nil {
			return err
		}
	}

	return listen(conn, wait)
}

// listen prints server messages until the connection closes or the
// deadline passes.
func listen(conn *transport.Conn, wait time.Duration) error {
	done := time.After(wait)
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			frame, err := conn.ReadFrame()
			if err != nil {
				readErr <- err
				return
			}
			frames <- frame
		}
	}()

	for {
		select {
		case frame := <-frames:
			env, err := wire.DecodeEnvelope(frame)
			if err != nil {
				fmt.Printf("<- unparseable frame: %v\n", err)
				continue
			}
			fmt.Printf("<- %s %s\n", env.MessageType, compact(env.Payload))
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				fmt.Println("connection closed by server")
				return nil
			}
			return err
		case <-done:
			return nil
		}
	}
}

func compact(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
