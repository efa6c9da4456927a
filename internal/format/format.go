// Package format converts the model's markdown-ish output into transport-safe
// markup for the messaging front end.
package format

import (
	"fmt"
	"log"
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(\\w*)\\n?(.*?)```")
	inlineCodeRe  = regexp.MustCompile("`([^`]+)`")
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
)

// Format rewrites fenced code blocks and inline code spans into HTML block and
// inline code markup, collapses runs of blank lines and trims the result.
// rich reports whether the output carries code markup, which tells the caller
// to request rich rendering from the transport. Formatting never loses the
// message: if anything goes wrong the raw text comes back with rich=false.
func Format(raw string) (text string, rich bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("formatter panic, delivering raw text: %v", r)
			text = raw
			rich = false
		}
	}()

	out := fencedBlockRe.ReplaceAllStringFunc(raw, func(m string) string {
		groups := fencedBlockRe.FindStringSubmatch(m)
		lang := groups[1]
		code := strings.TrimSpace(groups[2])
		return fmt.Sprintf("<pre><code class=%q>%s</code></pre>", lang, code)
	})
	out = inlineCodeRe.ReplaceAllString(out, "<code>$1</code>")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	out = strings.TrimSpace(out)

	rich = strings.Contains(out, "<pre>") || strings.Contains(out, "<code>")
	return out, rich
}
