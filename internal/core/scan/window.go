package scan

import (
	"bufio"
	"context"
	"os"
	"regexp"
)

// ctxCheckInterval bounds how many lines run between cancellation checks so a
// timed-out pattern stops promptly even inside a huge file.
const ctxCheckInterval = 256

// maxLineBytes caps the scanner token size; minified or generated lines past
// this are reported as a read error for the file rather than an OOM.
const maxLineBytes = 1 << 20

// scanFile streams one file line by line and records every line the pattern
// matches, with up to contextLines lines of surrounding context clipped at
// file boundaries.
//
// Memory stays bounded: a ring of the last contextLines lines feeds the
// before-context, and matches wait in a small pending list until enough
// following lines have streamed past to fill their after-context. The whole
// file is never held at once.
//
// On context cancellation the matches collected so far are returned together
// with ctx.Err(), so callers can keep partial results.
func scanFile(ctx context.Context, re *regexp.Regexp, path string, contextLines int) ([]MatchSite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		sites   []MatchSite
		pending []int // indices into sites still collecting after-context
		before  ringBuffer
		lineNo  int
	)
	before.init(contextLines)

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		// The current line extends the after-context of earlier matches
		// before it can become a match itself.
		if contextLines > 0 {
			kept := pending[:0]
			for _, idx := range pending {
				sites[idx].After = append(sites[idx].After, line)
				if len(sites[idx].After) < contextLines {
					kept = append(kept, idx)
				}
			}
			pending = kept
		}

		if re.MatchString(line) {
			site := MatchSite{
				Path:    path,
				Line:    lineNo,
				Content: line,
				Before:  before.snapshot(),
			}
			sites = append(sites, site)
			if contextLines > 0 {
				pending = append(pending, len(sites)-1)
			}
		}

		before.push(line)

		if lineNo%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return sites, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return sites, err
	}
	return sites, ctx.Err()
}

// ringBuffer keeps the most recent N lines for before-context extraction.
type ringBuffer struct {
	lines []string
	next  int
	full  bool
}

func (r *ringBuffer) init(capacity int) {
	if capacity > 0 {
		r.lines = make([]string, capacity)
	}
}

func (r *ringBuffer) push(line string) {
	if len(r.lines) == 0 {
		return
	}
	r.lines[r.next] = line
	r.next++
	if r.next == len(r.lines) {
		r.next = 0
		r.full = true
	}
}

// snapshot returns the buffered lines oldest first. Near the top of a file
// fewer than N lines exist; the result is simply shorter.
func (r *ringBuffer) snapshot() []string {
	if len(r.lines) == 0 {
		return nil
	}
	var out []string
	if r.full {
		out = make([]string, 0, len(r.lines))
		out = append(out, r.lines[r.next:]...)
		out = append(out, r.lines[:r.next]...)
		return out
	}
	if r.next == 0 {
		return nil
	}
	out = make([]string, r.next)
	copy(out, r.lines[:r.next])
	return out
}
