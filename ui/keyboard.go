package ui

import (
	"sync"

	"github.com/eiannone/keyboard"
)

// Special keys delivered as runes.
const (
	KeyCtrlC rune = 3
	KeyEsc   rune = 27
)

// A single reader goroutine owns the terminal; every caller shares its
// channel.
var (
	keyCh     chan rune
	keyErr    error
	startOnce sync.Once
	stopOnce  sync.Once
)

// KeyEvents returns a channel that emits single-key runes read without
// Enter. The first call puts the terminal in raw mode and starts the reader.
// The channel is closed when reading fails. An error means no terminal
// keyboard is available.
//
// Raw mode swallows Ctrl+C, so it arrives here as KeyCtrlC instead of as a
// signal.
func KeyEvents() (<-chan rune, error) {
	startOnce.Do(func() {
		keyCh = make(chan rune, 64)
		if err := keyboard.Open(); err != nil {
			keyErr = err
			close(keyCh)
			return
		}
		go func() {
			defer close(keyCh)
			defer StopKeyEvents()
			for {
				char, key, err := keyboard.GetKey()
				if err != nil {
					return
				}
				r := char
				switch key {
				case 0:
				case keyboard.KeyEsc:
					r = KeyEsc
				case keyboard.KeyCtrlC:
					r = KeyCtrlC
				default:
					continue
				}
				// Drop keys nobody is consuming.
				select {
				case keyCh <- r:
				default:
				}
				if r == KeyCtrlC {
					return
				}
			}
		}()
	})
	return keyCh, keyErr
}

// StopKeyEvents restores the terminal mode. It is safe to call more than
// once and when KeyEvents was never started.
func StopKeyEvents() {
	stopOnce.Do(func() {
		if keyCh != nil && keyErr == nil {
			_ = keyboard.Close()
		}
	})
}

// DrainKeys consumes any immediately available keys to avoid accidental
// triggers.
func DrainKeys(ch <-chan rune) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
