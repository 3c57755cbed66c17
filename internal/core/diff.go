package core

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/illarion/cfgvault/pkg/crypto"
	"github.com/illarion/cfgvault/pkg/settings"
)

// DiffContext is the number of unchanged lines shown around each change.
const DiffContext = 2

type diffLine struct {
	op   diffmatchpatch.Operation
	text string
}

// DiffDocuments renders a line diff of two documents. Both are marshaled
// first, so files that differ only in layout or encryption compare equal.
// Identical documents give an empty string.
func DiffDocuments(nameA, nameB string, a, b *settings.Document) (string, error) {
	dataA, err := a.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", nameA, err)
	}
	defer crypto.ClearBytes(dataA)

	dataB, err := b.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", nameB, err)
	}
	defer crypto.ClearBytes(dataB)

	if bytes.Equal(dataA, dataB) {
		return "", nil
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(string(dataA), string(dataB))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s\n", nameA)
	fmt.Fprintf(&out, "+++ %s\n", nameB)
	writeHunks(&out, splitDiff(diffs), DiffContext)
	return out.String(), nil
}

func splitDiff(diffs []diffmatchpatch.Diff) []diffLine {
	var out []diffLine
	for _, d := range diffs {
		for _, l := range strings.SplitAfter(d.Text, "\n") {
			if l == "" {
				continue
			}
			out = append(out, diffLine{op: d.Type, text: strings.TrimSuffix(l, "\n")})
		}
	}
	return out
}

// writeHunks prints changed lines with up to context unchanged lines on
// either side. Each hunk starts with "@@".
func writeHunks(out *strings.Builder, lines []diffLine, context int) {
	show := make([]bool, len(lines))
	for i, l := range lines {
		if l.op == diffmatchpatch.DiffEqual {
			continue
		}
		for j := max(0, i-context); j <= min(len(lines)-1, i+context); j++ {
			show[j] = true
		}
	}

	for i, l := range lines {
		if !show[i] {
			continue
		}
		if i == 0 || !show[i-1] {
			out.WriteString("@@\n")
		}
		switch l.op {
		case diffmatchpatch.DiffDelete:
			out.WriteString("-")
		case diffmatchpatch.DiffInsert:
			out.WriteString("+")
		default:
			out.WriteString(" ")
		}
		out.WriteString(l.text)
		out.WriteString("\n")
	}
}

// Diff compares the documents stored in two settings files.
func Diff(ctx context.Context, a, b *Vault) (string, error) {
	docA, err := a.Document(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", a.Path(), err)
	}
	docB, err := b.Document(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", b.Path(), err)
	}
	return DiffDocuments(a.Path(), b.Path(), docA, docB)
}
