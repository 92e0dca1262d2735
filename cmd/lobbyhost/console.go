package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/OCAP2/lobbyhost/internal/influx"
	"github.com/OCAP2/lobbyhost/internal/lobby"
	"github.com/OCAP2/lobbyhost/pkg/core"
)

// host is the part of the lobby the console drives.
type host interface {
	Launch(ctx context.Context) (*core.GameSettings, error)
	Status() influx.LobbyStatus
	Notices() *lobby.Notices
	SetPublishEnabled(on bool)
	SelectMap(name string) error
	SelectTileset(name string) error
	SelectTechtree(name string) error
	SelectScenario(name string) error
	SetControlType(i int, ct core.ControlType)
}

const consoleHelp = `commands:
  status                  print the lobby status
  launch                  validate the lobby and start the match
  ack                     dismiss the current notice
  publish on|off          toggle masterserver publishing
  map|tileset|techtree N  select an asset
  scenario N|off          load a scenario or leave scenario mode
  seat I CONTROL          set the control type of seat I (e.g. cpu-ultra)
  quit                    close the lobby`

// runConsole reads host commands line by line until in is exhausted, quit is
// entered or ctx is done. quit calls cancel.
func runConsole(ctx context.Context, cancel context.CancelFunc, in io.Reader, out io.Writer, h host) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			cancel()
			return
		}
		if err := runCommand(ctx, h, out, fields); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}

func runCommand(ctx context.Context, h host, out io.Writer, fields []string) error {
	arg := func(i int) (string, error) {
		if len(fields) <= i {
			return "", fmt.Errorf("%s: missing argument", fields[0])
		}
		return fields[i], nil
	}

	switch fields[0] {
	case "help":
		fmt.Fprintln(out, consoleHelp)
	case "status":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(h.Status())
	case "launch":
		gs, err := h.Launch(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "launched %s on %s with %d seats\n", gs.GameUUID, gs.Map, len(gs.ActiveSeats()))
	case "ack":
		n, ok := h.Notices().Current()
		if !ok {
			fmt.Fprintln(out, "no notice")
			return nil
		}
		h.Notices().Acknowledge()
		fmt.Fprintf(out, "dismissed: %s\n", n.Text)
	case "publish":
		v, err := arg(1)
		if err != nil {
			return err
		}
		switch v {
		case "on":
			h.SetPublishEnabled(true)
		case "off":
			h.SetPublishEnabled(false)
		default:
			return fmt.Errorf("publish: want on or off, got %q", v)
		}
	case "map", "tileset", "techtree":
		name, err := arg(1)
		if err != nil {
			return err
		}
		switch fields[0] {
		case "map":
			return h.SelectMap(name)
		case "tileset":
			return h.SelectTileset(name)
		default:
			return h.SelectTechtree(name)
		}
	case "scenario":
		name, err := arg(1)
		if err != nil {
			return err
		}
		if name == "off" {
			name = ""
		}
		return h.SelectScenario(name)
	case "seat":
		s, err := arg(1)
		if err != nil {
			return err
		}
		name, err := arg(2)
		if err != nil {
			return err
		}
		i, err := strconv.Atoi(s)
		if err != nil || !core.ValidSeat(i) {
			return fmt.Errorf("seat: invalid seat %q", s)
		}
		ct, ok := core.ParseControlType(name)
		if !ok {
			return fmt.Errorf("seat: unknown control type %q", name)
		}
		h.SetControlType(i, ct)
	default:
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return nil
}
