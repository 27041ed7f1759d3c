package sectionindex

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/corvid-labs/sectra/core"
)

const defaultMaxTitleLen = 96

// Pattern recognizes one family of heading markers. The regexp must expose
// two capture groups: the numbering token and the title text.
type Pattern struct {
	re *regexp.Regexp
}

// DottedNumberPattern matches dot-separated numbering like "4", "4.3",
// "4.3.18", optionally followed by ")" or ".", then the title.
func DottedNumberPattern() Pattern {
	return Pattern{re: regexp.MustCompile(`^(\d+(?:\.\d+)*)[.)]?\s+(\S.*)$`)}
}

// KeywordPattern matches headings of the form "<keyword> <numeral> [title]",
// e.g. "Chapter 3 Proposals" or "PART IV". Keyword headings sit at depth 0
// and own any dotted heading whose first segment equals their numeral.
func KeywordPattern(keywords ...string) Pattern {
	if len(keywords) == 0 {
		keywords = []string{"chapter", "part", "division", "title", "book"}
	}
	expr := `(?i)^(?:` + strings.Join(keywords, `|`) + `)\s+([0-9]+|[IVXLCDM]+)\b[\s.:–—-]*(.*)$`
	return Pattern{re: regexp.MustCompile(expr)}
}

// DefaultPatterns is the pattern family used when none is configured.
func DefaultPatterns() []Pattern {
	return []Pattern{DottedNumberPattern(), KeywordPattern()}
}

// Warning records a non-fatal indexing anomaly, such as out-of-order or
// duplicate numbering. Warnings never abort indexing.
type Warning struct {
	Offset  int
	Number  string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("offset %d (%s): %s", w.Offset, w.Number, w.Message)
}

// Indexer parses a document's raw text into an ordered section tree with
// char ranges. Given identical text and configuration its output is
// byte-for-byte identical.
type Indexer struct {
	patterns    []Pattern
	maxTitleLen int
	logger      *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithPatterns replaces the heading pattern family.
func WithPatterns(patterns ...Pattern) Option {
	return func(ix *Indexer) {
		ix.patterns = patterns
	}
}

// WithMaxTitleLen bounds the title length of a heading candidate. Longer
// matches are treated as body text, which keeps numbered list items out of
// the tree.
func WithMaxTitleLen(n int) Option {
	return func(ix *Indexer) {
		ix.maxTitleLen = n
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
	}
}

// NewIndexer creates a section indexer.
func NewIndexer(opts ...Option) *Indexer {
	ix := &Indexer{
		patterns:    DefaultPatterns(),
		maxTitleLen: defaultMaxTitleLen,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// heading is one recognized heading line during the scan.
type heading struct {
	offset   int
	segments []string
	title    string
}

// open is one entry of the ancestor stack: an arena index plus the
// numbering segments that scope it.
type open struct {
	idx      int
	segments []string
	lastSeg  int // last numeric child segment seen, for monotonic-order checks
	children int
}

// BuildTree parses raw source text into an ordered section tree.
// Text with no recognizable headings yields a single root section spanning
// the whole document. Empty text is rejected with core.ErrEmptySourceText.
func (ix *Indexer) BuildTree(text string) (*Tree, []Warning, error) {
	if len(text) == 0 {
		return nil, nil, core.ErrEmptySourceText
	}

	headings := ix.scan(text)
	if len(headings) == 0 {
		ix.logger.Debug("no headings recognized, falling back to single root")
		root := &core.Section{
			Id:        1,
			Depth:     0,
			Title:     "document",
			Start:     0,
			End:       len(text),
			Path:      "document",
			Synthetic: true,
		}
		tree, err := NewTree([]*core.Section{root})
		return tree, nil, err
	}

	var (
		arena    []*core.Section
		stack    []open
		warnings []Warning
	)
	rootLastSeg := -1 // root siblings have no open parent to track them

	closeTo := func(depth int, end int) {
		for len(stack) > depth {
			top := stack[len(stack)-1]
			arena[top.idx].End = end
			stack = stack[:len(stack)-1]
		}
	}

	push := func(h heading, segments []string, title string, synthetic bool) {
		depth := len(stack)
		var (
			parent     *open
			parentID   core.ID
			parentPath string
		)
		if depth > 0 {
			parent = &stack[len(stack)-1]
			parentID = arena[parent.idx].Id
			parentPath = arena[parent.idx].Path
		}

		sec := &core.Section{
			Id:        core.ID(len(arena) + 1),
			ParentId:  parentID,
			Depth:     depth,
			Number:    strings.Join(segments, "."),
			Title:     title,
			Start:     h.offset,
			End:       len(text), // closed later unless it runs to the end
			Synthetic: synthetic,
		}
		if parent != nil {
			sec.Ordinal = parent.children
			parent.children++
		} else {
			sec.Ordinal = countRoots(arena)
		}
		if parentPath == "" {
			sec.Path = sec.Label()
		} else {
			sec.Path = parentPath + " > " + sec.Label()
		}
		arena = append(arena, sec)

		entry := open{idx: len(arena) - 1, segments: segments, lastSeg: -1}
		lastSeg := &rootLastSeg
		if parent != nil {
			lastSeg = &parent.lastSeg
		}
		if n, ok := lastSegmentValue(segments); ok {
			if *lastSeg >= 0 && n <= *lastSeg {
				warnings = append(warnings, Warning{
					Offset:  h.offset,
					Number:  sec.Number,
					Message: "non-monotonic sibling numbering",
				})
			}
			if n > *lastSeg {
				*lastSeg = n
			}
		}
		stack = append(stack, entry)
	}

	for _, h := range headings {
		// Close every open ancestor whose numbering does not prefix this
		// heading. A heading that matches no ancestor becomes a new root.
		depth := len(stack)
		for depth > 0 && !segmentsPrefix(stack[depth-1].segments, h.segments) {
			depth--
		}
		closeTo(depth, h.offset)

		// Synthesize placeholders for skipped intermediate levels, e.g. a
		// jump from "2" straight to "2.1.3" inserts "2.1".
		target := len(h.segments) - 1
		for len(stack) < target {
			missing := h.segments[:len(stack)+1]
			warnings = append(warnings, Warning{
				Offset:  h.offset,
				Number:  strings.Join(missing, "."),
				Message: "missing intermediate level, placeholder inserted",
			})
			push(h, missing, "", true)
		}

		push(h, h.segments, h.title, false)
	}
	closeTo(0, len(text))

	for _, w := range warnings {
		ix.logger.Warn("section numbering anomaly", "number", w.Number, "offset", w.Offset, "msg", w.Message)
	}

	tree, err := NewTree(arena)
	if err != nil {
		return nil, warnings, fmt.Errorf("%w: %w", core.ErrIndexing, err)
	}
	return tree, warnings, nil
}

// scan walks the text line by line and collects heading candidates in
// document order.
func (ix *Indexer) scan(text string) []heading {
	var headings []heading
	for offset := 0; offset < len(text); {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		var line string
		if lineEnd < 0 {
			line = text[offset:]
			lineEnd = len(text)
		} else {
			line = text[offset : offset+lineEnd]
			lineEnd = offset + lineEnd + 1
		}

		trimmed := strings.TrimRight(line, " \t\r")
		leading := countLeadingSpace(trimmed)
		trimmed = trimmed[leading:]

		if h, ok := ix.match(trimmed); ok {
			h.offset = offset
			headings = append(headings, h)
		}
		offset = lineEnd
	}
	return headings
}

func (ix *Indexer) match(line string) (heading, bool) {
	for _, p := range ix.patterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		number, title := m[1], strings.TrimSpace(m[2])
		if len(title) > ix.maxTitleLen {
			continue
		}
		return heading{
			segments: strings.Split(number, "."),
			title:    title,
		}, true
	}
	return heading{}, false
}

// segmentsPrefix reports whether a is a proper prefix of b.
func segmentsPrefix(a, b []string) bool {
	if len(a) >= len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lastSegmentValue(segments []string) (int, bool) {
	n, err := strconv.Atoi(segments[len(segments)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func countRoots(arena []*core.Section) int {
	n := 0
	for _, sec := range arena {
		if sec.ParentId == 0 {
			n++
		}
	}
	return n
}

func countLeadingSpace(s string) int {
	n := 0
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	return n
}
