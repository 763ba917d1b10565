package display

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/stonetick/internal/effects"
	"github.com/talgya/stonetick/internal/engine"
)

// Console is a line-oriented Display. Countdown output is throttled to one
// line per whole second remaining; progress to one line per percent.
type Console struct {
	w io.Writer

	lastSecond   int64
	lastPercent  int
	progressOpen bool
}

// NewConsole writes to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, lastSecond: -1, lastPercent: -1}
}

func (c *Console) SetTickCount(n uint64) {
	c.lastSecond = -1
	fmt.Fprintf(c.w, "Tick: %s\n", humanize.Comma(int64(n)))
}

func (c *Console) SetRandomReading(v float64, band effects.Band) {
	fmt.Fprintf(c.w, "  random %.4f (%s)\n", v, band)
}

func (c *Console) SetRecentEvents(events []string) {
	if len(events) == 0 {
		return
	}
	fmt.Fprintf(c.w, "  recent: %s\n", strings.Join(events, " | "))
}

func (c *Console) SetCountdown(remaining time.Duration) {
	sec := int64((remaining + time.Second - 1) / time.Second)
	if sec == c.lastSecond {
		return
	}
	c.lastSecond = sec
	fmt.Fprintf(c.w, "  next tick in %.1fs\n", remaining.Seconds())
}

func (c *Console) SetResourceBalances(balances map[string]uint64) {
	fmt.Fprintf(c.w, "  resources: %s\n", FormatBalances(balances))
}

func (c *Console) ShowProgress(p engine.Progress) {
	pct := int(p.Fraction() * 100)
	if c.progressOpen && pct == c.lastPercent && p.Processed != p.Total {
		return
	}
	c.progressOpen = true
	c.lastPercent = pct
	fmt.Fprintf(c.w, "[%3d%%] %s\n", pct, p.Label)
}

func (c *Console) HideProgress() {
	c.progressOpen = false
	c.lastPercent = -1
}

// ShowSummary prints text in a box. A console cannot take lines back, so
// the display duration is printed instead of enforced.
func (c *Console) ShowSummary(text string, d time.Duration) {
	fmt.Fprintln(c.w, strings.Repeat("-", 32))
	fmt.Fprintln(c.w, text)
	if d > 0 {
		fmt.Fprintf(c.w, "(shown for %s)\n", d)
	}
	fmt.Fprintln(c.w, strings.Repeat("-", 32))
}

// FormatBalances renders balances sorted by name, e.g. "iron 3, stone 1,204".
func FormatBalances(balances map[string]uint64) string {
	if len(balances) == 0 {
		return "none"
	}
	names := make([]string, 0, len(balances))
	for k := range balances {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s %s", k, humanize.Comma(int64(balances[k])))
	}
	return strings.Join(parts, ", ")
}
