package output

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// DiffOp marks a line of a body diff.
type DiffOp string

const (
	DiffEqual  DiffOp = " "
	DiffInsert DiffOp = "+"
	DiffDelete DiffOp = "-"
)

// DiffLine is one line of a body diff.
type DiffLine struct {
	Op   DiffOp `json:"op"`
	Text string `json:"text"`
}

// BodyDiff compares two response bodies line by line. JSON bodies are
// pretty-printed first so a change shows up on its own line. It returns nil
// when the bodies are identical.
func BodyDiff(previous, current []byte) []DiffLine {
	a, b := normalizeBody(previous), normalizeBody(current)
	if a == b {
		return nil
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		op := DiffEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = DiffInsert
		case diffmatchpatch.DiffDelete:
			op = DiffDelete
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Op: op, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

func normalizeBody(body []byte) string {
	if gjson.ValidBytes(body) {
		body = pretty.PrettyOptions(body, &pretty.Options{Width: 80, Indent: "  ", SortKeys: true})
	}
	s := string(body)
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

// changedOnly drops unchanged lines that are more than context lines away
// from a change.
func changedOnly(lines []DiffLine, context int) []DiffLine {
	keep := make([]bool, len(lines))
	for i, l := range lines {
		if l.Op == DiffEqual {
			continue
		}
		for j := max(0, i-context); j <= min(len(lines)-1, i+context); j++ {
			keep[j] = true
		}
	}

	var out []DiffLine
	for i, l := range lines {
		if keep[i] {
			out = append(out, l)
		}
	}
	return out
}
