package debugger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/jmchacon/chip8/chip8"
	"github.com/jmchacon/chip8/cpu"
	"github.com/jmchacon/chip8/display"
)

// script is a LineReader which returns canned lines and then io.EOF.
type script struct {
	lines   []string
	prompts []string
}

func (s *script) ReadLine(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

// counter adds 1 to v0 forever.
var counter = []uint8{
	0x70, 0x01, // 200: add v0, 0x01
	0x12, 0x00, // 202: jmp 0x200
}

func Setup(t *testing.T, rom []uint8, bps ...uint16) (*Debugger, *chip8.VM, *bytes.Buffer) {
	t.Helper()
	vm, err := chip8.Init(&chip8.VMDef{Rom: rom})
	if err != nil {
		t.Fatalf("can't init VM: %v", err)
	}
	out := &bytes.Buffer{}
	d, err := Init(&Def{
		Machine:     vm,
		Out:         out,
		Breakpoints: bps,
	})
	if err != nil {
		t.Fatalf("can't init debugger: %v", err)
	}
	return d, vm, out
}

func TestInitErrors(t *testing.T) {
	vm, err := chip8.Init(&chip8.VMDef{})
	if err != nil {
		t.Fatalf("can't init VM: %v", err)
	}
	for _, def := range []*Def{
		nil,
		{Out: io.Discard},
		{Machine: vm},
	} {
		if _, err := Init(def); err == nil {
			t.Errorf("%+v: didn't get error", def)
		}
	}
}

func TestRunUntilBreakpoint(t *testing.T) {
	d, vm, out := Setup(t, counter)
	in := &script{lines: []string{"b 202", "r", "r", "", "q"}}
	if err := d.Session(context.Background(), in); err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got, want := vm.CPU().PC(), uint16(0x202); got != want {
		t.Errorf("PC: got %.3X want %.3X", got, want)
	}
	// Each run stops once per loop iteration and doesn't re-break in place.
	if got, want := vm.CPU().V()[0], uint8(3); got != want {
		t.Errorf("v0: got %d want %d", got, want)
	}
	if got, want := strings.Count(out.String(), "Breakpoint hit at 0x202"), 3; got != want {
		t.Errorf("breakpoint hits: got %d want %d\n%s", got, want, out)
	}
	if !strings.Contains(out.String(), "Breakpoint installed at 0x202") {
		t.Errorf("missing install message:\n%s", out)
	}
	if got, want := in.prompts[len(in.prompts)-1], "(0x202)> "; got != want {
		t.Errorf("prompt: got %q want %q", got, want)
	}
}

func TestStep(t *testing.T) {
	d, vm, out := Setup(t, counter)
	in := &script{lines: []string{"s", ".", ""}}
	if err := d.Session(context.Background(), in); err != nil {
		t.Fatalf("Session: %v", err)
	}
	want := "0x200 7001      add    v0, 0x01\n" +
		"0x202 1200      jmp    0x200\n" +
		"0x200 7001      add    v0, 0x01\n"
	if diff := deep.Equal(out.String(), want); diff != nil {
		t.Errorf("output diff: %v", diff)
	}
	if got := vm.CPU().V()[0]; got != 2 {
		t.Errorf("v0: got %d want 2", got)
	}
	if got := d.Cursor(); got != 0x202 {
		t.Errorf("cursor: got %.3X want 202", got)
	}
}

func TestInspect(t *testing.T) {
	d, _, out := Setup(t, counter)
	for _, test := range []struct {
		line string
		want string
	}{
		{"x 4", "[0x200] 70 01 12 00\n"},
		{"d 2", "0x200 7001      add    v0, 0x01\n0x202 1200      jmp    0x200\n"},
		{"g 0", ""},
		{"x", "[0x000] F0\n"},
		{"", "[0x000] F0\n"},
		{"g ffe", ""},
		{"x 4", "[0xFFE] 00\n"},
		{"d 3", "0xFFE 00        db     0x00\n"},
		{"del 300", "No breakpoint at 0x300\n"},
	} {
		out.Reset()
		cmd, err := Parse(test.line)
		if err != nil {
			t.Fatalf("%q: %v", test.line, err)
		}
		if act := d.Exec(cmd); act != Prompt {
			t.Errorf("%q: got action %d want Prompt", test.line, act)
		}
		if got := out.String(); got != test.want {
			t.Errorf("%q: got %q want %q", test.line, got, test.want)
		}
	}
}

func TestVideoDumpAndRegs(t *testing.T) {
	d, vm, out := Setup(t, counter)
	if err := vm.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	d.Exec(Command{Kind: VideoDump})
	rows := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(rows) != display.Height {
		t.Fatalf("vdump rows: got %d want %d", len(rows), display.Height)
	}
	for i, r := range rows {
		if r != strings.Repeat("0", display.Width) {
			t.Errorf("row %d: got %q", i, r)
		}
	}
	out.Reset()
	d.Exec(Command{Kind: Regs})
	if !strings.Contains(out.String(), "v0=01") || !strings.Contains(out.String(), "pc=202") {
		t.Errorf("regs missing state:\n%s", out)
	}
}

func TestBreakpoints(t *testing.T) {
	d, _, _ := Setup(t, counter, 0x204, 0x200)
	if diff := deep.Equal(d.Breakpoints(), []uint16{0x200, 0x204}); diff != nil {
		t.Errorf("breakpoints: %v", diff)
	}
	// Sitting on 0x200 at start should stop immediately exactly once.
	if !d.ShouldBreak() {
		t.Error("didn't break at start")
	}
	if d.ShouldBreak() {
		t.Error("broke twice on the same stop")
	}
	d.Exec(Command{Kind: Delete, Addr: 0x200})
	if diff := deep.Equal(d.Breakpoints(), []uint16{0x204}); diff != nil {
		t.Errorf("breakpoints after delete: %v", diff)
	}
}

func TestParseErrorContinues(t *testing.T) {
	d, _, out := Setup(t, counter)
	in := &script{lines: []string{"bogus", "q"}}
	if err := d.Session(context.Background(), in); err != nil {
		t.Fatalf("Session: %v", err)
	}
	if !strings.Contains(out.String(), "can't parse") {
		t.Errorf("parse error not reported:\n%s", out)
	}
	if len(in.prompts) != 2 {
		t.Errorf("prompts: got %d want 2", len(in.prompts))
	}
}

func TestHalt(t *testing.T) {
	d, _, out := Setup(t, []uint8{0x00, 0xEE})
	in := &script{lines: []string{"s", "s", "q"}}
	err := d.Session(context.Background(), in)
	var se cpu.StackError
	if !errors.As(err, &se) {
		t.Fatalf("Session: got %v want StackError", err)
	}
	if got, want := strings.Count(out.String(), "Halted:"), 2; got != want {
		t.Errorf("halt reports: got %d want %d\n%s", got, want, out)
	}
}

func TestRunCancelled(t *testing.T) {
	d, _, _ := Setup(t, counter)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.RunUntilBreak(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v want context.Canceled", err)
	}
}

func TestConsole(t *testing.T) {
	out := &bytes.Buffer{}
	c := NewConsole(strings.NewReader("step\nq\n"), out)
	for _, want := range []string{"step", "q"} {
		got, err := c.ReadLine("> ")
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if got != want {
			t.Errorf("got %q want %q", got, want)
		}
	}
	if _, err := c.ReadLine("> "); err != io.EOF {
		t.Errorf("got %v want io.EOF", err)
	}
	if got, want := out.String(), "> > > "; got != want {
		t.Errorf("prompts: got %q want %q", got, want)
	}
}

func TestRunStopsOnKeyWait(t *testing.T) {
	rom := []uint8{
		0xF0, 0x0A, // 200: key v0
		0x12, 0x02, // 202: jmp 0x202
	}
	d, vm, out := Setup(t, rom, 0x202)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	in := &script{lines: []string{"r", "r", "q"}}
	if err := d.Session(ctx, in); err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got, want := strings.Count(out.String(), "Waiting for key at 0x200"), 2; got != want {
		t.Errorf("key waits reported: got %d want %d\n%s", got, want, out)
	}
	if got := vm.CPU().PC(); got != 0x200 {
		t.Errorf("PC: got %.3X want 200", got)
	}

	if err := vm.KeyState().Set(0x5, true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	out.Reset()
	in = &script{lines: []string{"r", "q"}}
	if err := d.Session(ctx, in); err != nil {
		t.Fatalf("Session: %v", err)
	}
	if !strings.Contains(out.String(), "Breakpoint hit at 0x202") {
		t.Errorf("didn't reach breakpoint after key press:\n%s", out)
	}
	if got := vm.CPU().V()[0]; got != 0x5 {
		t.Errorf("v0: got %X want 5", got)
	}
}
