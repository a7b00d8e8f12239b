package cmd

import (
	"fmt"
	"hash/fnv"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/mensylisir/xmremote/session"
)

var (
	labelColors = []lipgloss.Color{"39", "78", "170", "214", "141", "81", "203", "113"}
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("78")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Faint(true)
)

// console prints every host's output as whole lines prefixed with a
// colored host label. Escape sequences are stripped.
type console struct {
	mu      sync.Mutex
	out     io.Writer
	newline string

	partial   map[string]string
	labels    map[string]string
	completed []string
	failed    map[string]session.Event
}

var _ session.Observer = (*console)(nil)

func newConsole(out io.Writer) *console {
	return &console{
		out:     out,
		newline: "\n",
		partial: make(map[string]string),
		labels:  make(map[string]string),
		failed:  make(map[string]session.Event),
	}
}

// setRaw switches line endings for a terminal in raw mode.
func (c *console) setRaw(raw bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if raw {
		c.newline = "\r\n"
	} else {
		c.newline = "\n"
	}
}

func (c *console) label(host string) string {
	if l, ok := c.labels[host]; ok {
		return l
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	style := lipgloss.NewStyle().Bold(true).Foreground(labelColors[h.Sum32()%uint32(len(labelColors))])
	l := style.Render("[" + host + "]")
	c.labels[host] = l
	return l
}

func (c *console) line(host, text string) {
	fmt.Fprintf(c.out, "%s %s%s", c.label(host), text, c.newline)
}

func (c *console) flushHost(host string) {
	if p := c.partial[host]; p != "" {
		c.line(host, p)
		delete(c.partial, host)
	}
}

func (c *console) OnOutput(host string, chunk session.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if chunk.Notice {
		c.flushHost(host)
		c.line(host, noticeStyle.Render(chunk.Text))
		return
	}

	text := ansi.Strip(chunk.Text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "")
	buf := c.partial[host] + text
	lines := strings.Split(buf, "\n")
	for _, l := range lines[:len(lines)-1] {
		c.line(host, l)
	}
	c.partial[host] = lines[len(lines)-1]
}

// Flush prints unterminated lines, such as prompts waiting for input.
func (c *console) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	hosts := make([]string, 0, len(c.partial))
	for h := range c.partial {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		c.flushHost(h)
	}
}

func (c *console) OnEvent(ev session.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushHost(ev.Host)
	switch ev.Type {
	case session.EventCompleted:
		c.completed = append(c.completed, ev.Host)
		c.line(ev.Host, okStyle.Render("completed"))
	case session.EventFailed:
		c.failed[ev.Host] = ev
		c.line(ev.Host, failStyle.Render("failed: "+ev.Reason))
	}
}

// Echo mirrors locally typed text.
func (c *console) Echo(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == "\n" {
		text = c.newline
	}
	_, _ = io.WriteString(c.out, text)
}

// Summary prints one line of totals and returns how many hosts failed.
func (c *console) Summary(cancelled int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%d completed, %d failed, %d cancelled%s", len(c.completed), len(c.failed), cancelled, c.newline)
	if len(c.failed) > 0 {
		hosts := make([]string, 0, len(c.failed))
		for h := range c.failed {
			hosts = append(hosts, h)
		}
		sort.Strings(hosts)
		for _, h := range hosts {
			fmt.Fprintf(c.out, "  %s %s: %s%s", failStyle.Render("✘"), h, c.failed[h].Reason, c.newline)
		}
	}
	return len(c.failed)
}
