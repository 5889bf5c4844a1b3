package ui

import (
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/bamsammich/sortcp/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer    io.Writer // per-file lines
	ErrWriter io.Writer // errors, progress
	Stats     *stats.Collector
	Progress  time.Duration // periodic progress interval on ErrWriter, 0 to disable
	Color     bool
	Quiet     bool
	Verbose   bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	pal := newPalette(cfg.Color)
	if cfg.Quiet {
		return &quietPresenter{errW: cfg.ErrWriter, pal: pal}
	}
	return &plainPresenter{
		w:        cfg.Writer,
		errW:     cfg.ErrWriter,
		stats:    cfg.Stats,
		progress: cfg.Progress,
		verbose:  cfg.Verbose,
		pal:      pal,
	}
}

// palette holds the colors used for line labels.
type palette struct {
	ok   *color.Color
	fail *color.Color
	warn *color.Color
	dim  *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		ok:   color.New(color.FgGreen),
		fail: color.New(color.FgRed),
		warn: color.New(color.FgYellow),
		dim:  color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.ok, p.fail, p.warn, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// ColorEnabled resolves a --color mode ("auto", "always", "never") against
// whether the output is a terminal. Unknown modes behave like "auto".
func ColorEnabled(mode string, isTTY bool) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return isTTY && !color.NoColor
	}
}
