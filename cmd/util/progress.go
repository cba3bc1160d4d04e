package util

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ClearProgress erases the progress line, so that the next output starts at
// the beginning of an empty line.
const ClearProgress = "\r\033[K"

// ProgressPrinter shows that a long running operation is still going by
// printing a message followed by a growing row of dots.
type ProgressPrinter struct {
	out  io.Writer
	msg  string
	stop chan string
	done chan struct{}
}

// NewProgressPrinter returns a ProgressPrinter that writes to out. It doesn't
// print anything until Run is called.
func NewProgressPrinter(out io.Writer, msg string) *ProgressPrinter {
	return &ProgressPrinter{
		out:  out,
		msg:  msg,
		stop: make(chan string),
		done: make(chan struct{}),
	}
}

// Run prints the progress until Stop is called.
func (pp *ProgressPrinter) Run() {
	defer close(pp.done)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for dots := 0; ; dots = (dots + 1) % 4 {
		fmt.Fprintf(pp.out, "%s%s%s", ClearProgress, pp.msg, strings.Repeat(".", dots))

		select {
		case final := <-pp.stop:
			fmt.Fprint(pp.out, final)
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the progress line with a newline.
func (pp *ProgressPrinter) Stop() {
	pp.StopWithPrint("\n")
}

// StopWithPrint stops the printer, and prints final after the last progress
// message. It blocks until the printer has exited.
func (pp *ProgressPrinter) StopWithPrint(final string) {
	pp.stop <- final
	<-pp.done
}
