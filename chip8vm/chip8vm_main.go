// chip8vm runs a CHIP-8 ROM in an SDL window.
//
// Keys 1234/QWER/ASDF/ZXCV map onto the hex keypad, Escape quits and F12
// drops into the line mode debugger on stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmchacon/chip8/chip8"
	"github.com/jmchacon/chip8/debugger"
	"github.com/jmchacon/chip8/display"
	"github.com/jmchacon/chip8/keypad"
	"github.com/jmchacon/chip8/timer"
	"github.com/veandco/go-sdl2/sdl"
)

var (
	rom         = flag.String("rom", "", "Path to ROM image to load")
	scale       = flag.Int("scale", 10, "Window pixels per CHIP-8 pixel")
	speed       = flag.Int("speed", chip8.DefaultSpeed, "Instructions executed per second")
	debug       = flag.Bool("debug", false, "If true will emit per instruction tracing on stderr")
	brk         = flag.Bool("break", false, "If true start stopped in the debugger")
	breakpoints = flag.String("breakpoints", "", "Comma separated list of hex addresses to install as breakpoints")
)

var window *sdl.Window
var surface *sdl.Surface

// input is the result of draining the SDL event queue.
type input struct {
	quit   bool
	debug  bool
	keyErr error
}

// poll drains pending events and copies the keyboard state onto keys.
// Must be run on the SDL thread.
func poll(keys *keypad.State) input {
	var in input
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch e := ev.(type) {
		case *sdl.QuitEvent:
			in.quit = true
		case *sdl.KeyboardEvent:
			if e.State != sdl.PRESSED {
				continue
			}
			switch e.Keysym.Sym {
			case sdl.K_ESCAPE:
				in.quit = true
			case sdl.K_F12:
				in.debug = true
			}
		}
	}
	state := sdl.GetKeyboardState()
	for r, k := range keypad.Layout {
		sc := sdl.GetScancodeFromKey(sdl.Keycode(r))
		if err := keys.Set(k, int(sc) < len(state) && state[sc] != 0); err != nil {
			in.keyErr = err
		}
	}
	return in
}

func parseBreakpoints(s string) ([]uint16, error) {
	var out []uint16
	if s == "" {
		return out, nil
	}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(p)), "0x")
		v, err := strconv.ParseUint(p, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid breakpoint %q: %v", p, err)
		}
		out = append(out, uint16(v))
	}
	return out, nil
}

func main() {
	flag.Parse()
	if *rom == "" {
		log.Fatalf("Invalid command: %s -rom <path> [-scale N -speed N -debug -break]", os.Args[0])
	}
	if *debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	bps, err := parseBreakpoints(*breakpoints)
	if err != nil {
		log.Fatalf("Bad -breakpoints: %v", err)
	}
	b, err := chip8.LoadROM(*rom)
	if err != nil {
		log.Fatalf("Can't load rom: %v", err)
	}

	sdl.Main(func() {
		var wg sync.WaitGroup
		wg.Add(1)
		sdl.Do(func() {
			if err := sdl.Init(sdl.INIT_EVERYTHING); err != nil {
				log.Fatalf("Can't init SDL: %v", err)
			}

			w, h := int32(display.Width*(*scale)), int32(display.Height*(*scale))
			var err error
			window, err = sdl.CreateWindow("chip8 - "+*rom, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, w, h, sdl.WINDOW_SHOWN)
			if err != nil {
				log.Fatalf("Can't create window: %v", err)
			}
			surface, err = window.GetSurface()
			if err != nil {
				log.Fatalf("Can't get window surface: %v", err)
			}
			wg.Done()
		})
		wg.Wait()
		defer func() {
			sdl.Do(func() {
				window.Destroy()
				sdl.Quit()
			})
		}()

		var vm *chip8.VM
		vm, err = chip8.Init(&chip8.VMDef{
			Rom: b,
			FrameDone: func(*image.NRGBA) {
				sdl.Do(func() {
					vm.Display().Render(surface)
					window.UpdateSurface()
				})
			},
			Debug: *debug,
		})
		if err != nil {
			log.Fatalf("Can't init VM: %v", err)
		}
		dbg, err := debugger.Init(&debugger.Def{
			Machine:     vm,
			Out:         os.Stdout,
			Breakpoints: bps,
		})
		if err != nil {
			log.Fatalf("Can't init debugger: %v", err)
		}
		console := debugger.NewConsole(os.Stdin, os.Stdout)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := vm.Start(ctx); err != nil {
			log.Fatalf("Can't start timers: %v", err)
		}
		defer vm.Stop()

		perFrame := *speed / int(time.Second/timer.Rate)
		if perFrame < 1 {
			perFrame = 1
		}
		paused := *brk
		tk := time.NewTicker(timer.Rate)
		defer tk.Stop()
		for range tk.C {
			var in input
			sdl.Do(func() {
				in = poll(vm.KeyState())
			})
			if in.keyErr != nil {
				log.Printf("Keyboard error: %v", in.keyErr)
				return
			}
			if in.quit {
				return
			}
			if in.debug {
				paused = true
			}
			for i := 0; i < perFrame; i++ {
				if !paused && dbg.ShouldBreak() {
					paused = true
				}
				if paused {
					// Nothing polls input while the prompt is up so don't leave keys held.
					vm.KeyState().Release()
					act, err := dbg.Next(console)
					if err != nil && err != io.EOF {
						log.Printf("Console error: %v", err)
						return
					}
					switch act {
					case debugger.Exit:
						return
					case debugger.Resume:
						paused = false
					case debugger.StepOne:
						if err := dbg.Step(); err != nil {
							fmt.Printf("Halted: %v\n", err)
						}
					}
					if paused {
						// Let the window catch up before prompting again.
						break
					}
				}
				if err := dbg.Advance(); err != nil {
					log.Printf("CPU halted: %v", err)
					paused = true
					break
				}
			}
		}
	})
}
