package ui

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConsole_DispatchesBoundKeys(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	var got []string
	c.Bind("Start collector", func() { got = append(got, "start") }, 's')
	c.Bind("Quit", func() { got = append(got, "quit") }, 'q', KeyEsc)

	keys := make(chan rune, 4)
	keys <- 'S'
	keys <- 'x'
	keys <- KeyEsc
	close(keys)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), keys)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the channel closed")
	}

	assert.Equal(t, []string{"start", "quit"}, got)
	assert.Contains(t, out.String(), "no action for 'X'")
}

func TestConsole_StopsOnContext(t *testing.T) {
	c := NewConsole(&bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Run(ctx, make(chan rune))
}

func TestConsole_Help(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	c.Bind("Quit", func() {}, 'q', KeyEsc)
	c.Bind("Abort", func() {}, KeyEsc)
	c.Help()
	assert.Contains(t, out.String(), "'Q'")
	assert.Contains(t, out.String(), "Quit")
	assert.Contains(t, out.String(), "<ESC>")
}
