package ui

import (
	"fmt"
	"io"
)

// quietPresenter prints copy and read errors only.
type quietPresenter struct {
	errW io.Writer
	pal  palette
}

func (p *quietPresenter) Run(events <-chan Event) error {
	for ev := range events {
		switch ev.Type {
		case FileFailed:
			fmt.Fprintf(p.errW, "%s %s: %s\n", p.pal.fail.Sprint("Error copying"), ev.Path, errText(ev.Error))
		case ScanError:
			fmt.Fprintf(p.errW, "%s %s: %s\n", p.pal.fail.Sprint("Error reading"), ev.Path, errText(ev.Error))
		}
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
