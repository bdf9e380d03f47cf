package registry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrElementNotFound is matched by every NotFoundError
var ErrElementNotFound = errors.New("element not found")

// NotFoundError reports that no element exists at a page location
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s", e.Path)
}

// Is reports ErrElementNotFound as a match
func (e *NotFoundError) Is(target error) bool { return target == ErrElementNotFound }

// Step selects children with a tag name. Index is 1-based; zero means any position.
type Step struct {
	Tag   string
	Index int
}

// ElementPath is an absolute positional location in a page,
// e.g. /html/body/section[2]/div/table/tbody/tr[4]/td
type ElementPath []Step

// ParsePath parses an absolute slash separated path with optional [n] positions
func ParsePath(path string) (ElementPath, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path must be absolute: %q", path)
	}

	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	steps := make(ElementPath, 0, len(segments))
	for _, seg := range segments {
		step := Step{Tag: seg}
		if i := strings.IndexByte(seg, '['); i >= 0 {
			if !strings.HasSuffix(seg, "]") {
				return nil, fmt.Errorf("unterminated position in %q", seg)
			}
			n, err := strconv.Atoi(seg[i+1 : len(seg)-1])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid position in %q", seg)
			}
			step = Step{Tag: seg[:i], Index: n}
		}
		step.Tag = strings.ToLower(strings.TrimSpace(step.Tag))
		if step.Tag == "" {
			return nil, fmt.Errorf("empty step in %q", path)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// MustParsePath is like ParsePath but panics on error
func MustParsePath(path string) ElementPath {
	p, err := ParsePath(path)
	if err != nil {
		panic(err)
	}
	return p
}

func (p ElementPath) String() string {
	var b strings.Builder
	for _, s := range p {
		b.WriteByte('/')
		b.WriteString(s.Tag)
		if s.Index > 0 {
			fmt.Fprintf(&b, "[%d]", s.Index)
		}
	}
	return b.String()
}

// Locate returns the first element in document order at path below root
func Locate(root *html.Node, path ElementPath) (*html.Node, error) {
	if n := locate(root, path); n != nil {
		return n, nil
	}
	return nil, &NotFoundError{Path: path.String()}
}

func locate(n *html.Node, steps ElementPath) *html.Node {
	if len(steps) == 0 {
		return n
	}
	step := steps[0]
	pos := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != step.Tag {
			continue
		}
		pos++
		if step.Index > 0 && pos != step.Index {
			continue
		}
		if found := locate(c, steps[1:]); found != nil {
			return found
		}
		if step.Index > 0 {
			break
		}
	}
	return nil
}

// FirstText walks the fallback chain and returns the text of the first
// located element that accept approves. A nil accept approves any text.
func FirstText(root *html.Node, accept func(string) bool, paths ...ElementPath) (string, error) {
	tried := make([]string, 0, len(paths))
	for _, p := range paths {
		tried = append(tried, p.String())
		n, err := Locate(root, p)
		if err != nil {
			continue
		}
		text := Text(n)
		if accept == nil || accept(text) {
			return text, nil
		}
	}
	return "", &NotFoundError{Path: strings.Join(tried, " | ")}
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Blockquote: true, atom.Dd: true,
	atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Tr: true, atom.Ul: true,
}

// Text returns the visible text of an element the way a browser lays it out:
// block boundaries and <br> become line breaks, whitespace runs collapse to one space.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			// Source line breaks are ordinary whitespace
			b.WriteString(strings.Map(func(r rune) rune {
				if unicode.IsSpace(r) {
					return ' '
				}
				return r
			}, n.Data))
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.Br:
				b.WriteByte('\n')
				return
			}
		}

		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(n)

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
