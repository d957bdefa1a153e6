package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const usage = `usage: midicccv <command> [flags]

commands:
  ports     list MIDI ports
  run       translate a MIDI input and log the outputs
  monitor   translate a MIDI input and draw the outputs
  mcp       serve the MCP control surface over stdio
  render    render a MIDI file to CSV voltages
  sweep     send a test ramp and button presses to a MIDI output
  state     dump | load the state file`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "ports":
		defer midi.CloseDriver()
		printPorts()
	case "run":
		err = runCmd(args, false)
	case "monitor":
		err = runCmd(args, true)
	case "mcp":
		err = mcpCmd(args)
	case "render":
		err = renderCmd(args)
	case "sweep":
		err = sweepCmd(args)
	case "state":
		err = stateCmd(args)
	default:
		log.Fatalf("unknown command %q\n%s", cmd, usage)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

type hostFlags struct {
	port  string
	state string
	rate  int
}

func (f *hostFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.port, "port", "", "MIDI input port name fragment (first port if empty)")
	fs.StringVar(&f.state, "state", "midicc.json", "state file")
	fs.IntVar(&f.rate, "rate", defaultRate, "processing cycles per second")
}

// startHost builds a host from the state file and attaches the MIDI input.
func startHost(f *hostFlags) (*Host, func(), error) {
	h := NewHost()
	if err := h.LoadStateFile(f.state); err != nil {
		return nil, nil, err
	}
	closer, err := attachInput(h, f.port)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open MIDI input: %w", err)
	}
	return h, closer, nil
}

func runCmd(args []string, draw bool) error {
	var hf hostFlags
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	hf.register(fs)
	interval := fs.Duration("interval", time.Second, "log interval (run) or redraw interval (monitor)")
	fs.Parse(args)

	h, closer, err := startHost(&hf)
	if err != nil {
		return err
	}
	defer closer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mon *monitor
	if draw {
		mon = newMonitor(os.Stdout)
	}
	last := time.Now()
	onTick := func() {
		if time.Since(last) < *interval {
			return
		}
		last = time.Now()
		if mon != nil {
			mon.draw(h.Status())
			return
		}
		log.Printf("[run] %.3f (dropped %d)", h.Voltages(), h.Queue().Dropped())
	}

	err = h.Run(ctx, hf.rate, onTick)
	if saveErr := h.SaveStateFile(hf.state); saveErr != nil {
		return saveErr
	}
	log.Println("State saved to", hf.state)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func mcpCmd(args []string) error {
	var hf hostFlags
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	hf.register(fs)
	fs.Parse(args)

	h, closer, err := startHost(&hf)
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := h.Run(ctx, hf.rate, nil); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[mcp] processing stopped: %v", err)
		}
	}()

	err = runMCP(h, hf.state)
	cancel()
	if saveErr := h.SaveStateFile(hf.state); saveErr != nil {
		return saveErr
	}
	return err
}

func renderCmd(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	in := fs.String("in", "", "MIDI file to render")
	statePath := fs.String("state", "", "state file to start from")
	var opts renderOptions
	fs.IntVar(&opts.Rate, "rate", defaultRate, "processing cycles per second")
	fs.IntVar(&opts.Every, "every", 10, "write one row every N cycles")
	fs.Float64Var(&opts.Tail, "tail", 1, "seconds to render after the last event")
	fs.Parse(args)

	if *in == "" {
		return errors.New("-in is required")
	}
	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	events, err := readSMF(f)
	if err != nil {
		return err
	}
	h := NewHost()
	if err := h.LoadStateFile(*statePath); err != nil {
		return err
	}
	log.Printf("Rendering %d messages from %s at %d Hz", len(events), *in, opts.Rate)
	return render(h, events, opts, os.Stdout)
}

func sweepCmd(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	port := fs.String("port", "", "MIDI output port name fragment")
	channel := fs.Int("channel", 1, "MIDI channel (1-16)")
	cc := fs.Int("cc", 0, "controller for the ramp; cc+1 gets the button presses")
	fs.Parse(args)

	if *channel < 1 || *channel > 16 {
		return fmt.Errorf("channel must be in range 1–16, got %d", *channel)
	}
	if *cc < 0 || *cc > 126 {
		return fmt.Errorf("cc must be in range 0–126, got %d", *cc)
	}

	defer midi.CloseDriver()
	out, err := findOutPort(*port)
	if err != nil {
		return err
	}
	log.Println("Sending sweep to", out.String())
	return sendSweep(out, uint8(*channel-1), uint8(*cc))
}

func stateCmd(args []string) error {
	if len(args) < 1 {
		return errors.New("expected dump or load")
	}
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	statePath := fs.String("state", "midicc.json", "state file")
	fs.Parse(args[1:])

	switch args[0] {
	case "dump":
		return dumpState(*statePath, os.Stdout)
	case "load":
		return loadState(*statePath, os.Stdin)
	default:
		return fmt.Errorf("unknown state command %q", args[0])
	}
}
