// Package ui drives the optional console mode: single-key hotkeys read
// from the terminal while the server runs.
package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"unicode"
)

type binding struct {
	keys  []rune
	label string
	fn    func()
}

// Console dispatches hotkeys to bound actions.
type Console struct {
	out io.Writer

	mu       sync.Mutex
	bindings []*binding
	byKey    map[rune]*binding
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out, byKey: make(map[rune]*binding)}
}

// Bind runs fn when any of keys is pressed. Letters match either case.
func (c *Console) Bind(label string, fn func(), keys ...rune) {
	b := &binding{keys: keys, label: label, fn: fn}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = append(c.bindings, b)
	for _, k := range keys {
		c.byKey[unicode.ToLower(k)] = b
	}
}

// Help prints the key map.
func (c *Console) Help() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.bindings {
		Greenf(c.out, "  %-6s %s\n", keyName(b.keys[0]), b.label)
	}
}

// Run dispatches keys until ctx is done or keys is closed. Actions run on
// the calling goroutine, one at a time.
func (c *Console) Run(ctx context.Context, keys <-chan rune) {
	for {
		select {
		case <-ctx.Done():
			return
		case k, ok := <-keys:
			if !ok {
				return
			}
			c.mu.Lock()
			b := c.byKey[unicode.ToLower(k)]
			c.mu.Unlock()
			if b == nil {
				Warningf(c.out, "no action for %s, press ? for help\n", keyName(k))
				continue
			}
			b.fn()
		}
	}
}

func keyName(k rune) string {
	switch k {
	case KeyEsc:
		return "<ESC>"
	case KeyCtrlC:
		return "^C"
	}
	if unicode.IsPrint(k) {
		return fmt.Sprintf("'%c'", unicode.ToUpper(k))
	}
	return fmt.Sprintf("%#x", k)
}
