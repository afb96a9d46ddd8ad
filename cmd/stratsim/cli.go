package main

import (
	"fmt"
	"os"
	"time"

	"github.com/stratsim/engine/internal/parser"
	"github.com/stratsim/engine/internal/scene"
	"github.com/stratsim/engine/internal/storage"
)

// validate parses and loads a timeline file, reporting the first
// validation failure.
func (a *app) validate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: stratsim validate <timeline.json>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	tl, err := a.parser.ParseTimeline(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if err := a.sess.Load(tl); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	dur := a.sess.Graph().Duration(a.sess.Graph().Root())
	fmt.Printf("%s ok: %d segments, %d entities, duration %s\n",
		tl.Name, len(tl.Segments), len(tl.Entities), dur)
	return nil
}

// export writes a stored timeline out as a shareable document.
func (a *app) export(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: stratsim export <timeline-name> [output-dir]")
	}
	exp, ok := a.backend.(storage.Exportable)
	if !ok {
		return fmt.Errorf("configured storage backend cannot export")
	}
	outputDir := ""
	if len(args) > 1 {
		outputDir = args[1]
	}
	path, err := exp.ExportTimeline(args[0], outputDir)
	if err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

// play loads a timeline file and replays it tick by tick against the
// recording presenter, printing the scene command counts. A dry run for
// checking what a viewer would receive.
func (a *app) play(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: stratsim play <timeline.json> [until-seconds]")
	}
	if a.recorder == nil {
		return fmt.Errorf("play requires the recording presenter; disable the websocket presenter")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	tl, err := a.parser.ParseTimeline(data)
	if err != nil {
		return err
	}
	if err := a.sess.Load(tl); err != nil {
		return err
	}

	g := a.sess.Graph()
	until := g.Duration(g.Root())
	if len(args) > 1 {
		until, err = parser.ParseSeconds(args[1])
		if err != nil {
			return err
		}
	}

	step := 100 * time.Millisecond
	for t := time.Duration(0); t <= until; t += step {
		if _, err := a.sess.Seek(t); err != nil {
			return fmt.Errorf("seek %s: %w", t, err)
		}
	}
	for {
		pending, err := a.sess.Tick()
		if err != nil {
			return err
		}
		if !pending {
			break
		}
	}

	var spawns, despawns, updates int
	for _, cmd := range a.recorder.Commands() {
		switch cmd.Kind {
		case scene.CmdSpawn:
			spawns++
		case scene.CmdDespawn:
			despawns++
		case scene.CmdSetState:
			updates++
		}
	}
	fmt.Printf("%s: played %s, %d spawns, %d despawns, %d state updates\n",
		tl.Name, until, spawns, despawns, updates)
	for _, w := range a.sess.Warnings() {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
