package client

import (
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
)

// Terminal implementations of the display-surface ports. They share one
// writer, so each guards it with its own mutex; interleaved lines are
// fine, torn lines are not.

type ConsoleLogView struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleLogView(w io.Writer) *ConsoleLogView { return &ConsoleLogView{w: w} }

var _ LogView = (*ConsoleLogView)(nil)

func (v *ConsoleLogView) Append(ev model.LogEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ev.IsInteraction() {
		fmt.Fprintf(v.w, "  [llm] %s\n", ev.Action)
		if ev.Prompt != "" {
			fmt.Fprintf(v.w, "        prompt: %s\n", truncate(ev.Prompt, 120))
		}
		if s, ok := ev.Response.(string); ok && s != "" {
			fmt.Fprintf(v.w, "        response: %s\n", truncate(s, 120))
		}
		return
	}
	label := ev.StepDisplay
	if label == "" {
		label = ev.Step
	}
	fmt.Fprintf(v.w, "  [%s] %s %s", ev.Status, label, ev.Message)
	if ev.Progress != nil {
		fmt.Fprintf(v.w, " (%d/%d)", ev.Progress.Current, ev.Progress.Total)
	}
	fmt.Fprintln(v.w)
}

type ConsoleProgressView struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleProgressView(w io.Writer) *ConsoleProgressView { return &ConsoleProgressView{w: w} }

var _ ProgressView = (*ConsoleProgressView)(nil)

func (v *ConsoleProgressView) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.w, "--- organize ---")
}

func (v *ConsoleProgressView) Step(ev model.LogEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	label := ev.StepDisplay
	if label == "" {
		label = ev.Step
	}
	fmt.Fprintf(v.w, "* %-12s %s", label, ev.Status)
	if ev.Progress != nil {
		fmt.Fprintf(v.w, " %d/%d", ev.Progress.Current, ev.Progress.Total)
	}
	if ev.Message != "" {
		fmt.Fprintf(v.w, "  %s", ev.Message)
	}
	fmt.Fprintln(v.w)
}

func (v *ConsoleProgressView) ShowClose() {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.w, "--- organize finished (press enter to continue) ---")
}

type ConsoleIndicatorView struct {
	mu sync.Mutex
	w  io.Writer
	on bool
}

func NewConsoleIndicatorView(w io.Writer) *ConsoleIndicatorView { return &ConsoleIndicatorView{w: w} }

var _ IndicatorView = (*ConsoleIndicatorView)(nil)

func (v *ConsoleIndicatorView) SetProcessing(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if on == v.on {
		return
	}
	v.on = on
	if on {
		fmt.Fprintln(v.w, "(memory extraction running...)")
	} else {
		fmt.Fprintln(v.w, "(memory extraction idle)")
	}
}

type ConsoleChatView struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleChatView(w io.Writer) *ConsoleChatView { return &ConsoleChatView{w: w} }

var _ ChatView = (*ConsoleChatView)(nil)

func (v *ConsoleChatView) ShowUser(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, "you> %s\n", text)
}

func (v *ConsoleChatView) ShowAssistant(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, "assistant> %s\n", text)
}

func (v *ConsoleChatView) ShowSystem(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, "system> %s\n", text)
}

func (v *ConsoleChatView) SetLoading(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if on {
		fmt.Fprintln(v.w, "...")
	}
}

// SetInputEnabled is a no-op on a line-oriented terminal; the prompt
// loop reads only after Send returns.
func (v *ConsoleChatView) SetInputEnabled(on bool) {}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune boundary so multibyte text is never split.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
