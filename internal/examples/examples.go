// Package examples ships the sample programs offered by the example picker
// and the --example flag.
package examples

import (
	"embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"
)

//go:embed programs/*.gosrc
var programs embed.FS

// Default is loaded into an empty editor.
const Default = "hello"

// Board size used when the caller has no terminal size to offer.
const (
	DefaultCols = 80
	DefaultRows = 20
)

// Example is one sample program.
type Example struct {
	Name        string // short id, also the file name
	Title       string
	Description string
	Interactive bool // reads stdin
	Animated    bool // redraws with the clear marker
}

var catalog = []Example{
	{Name: "hello", Title: "Hello, World!", Description: "The classic first program"},
	{Name: "fibonacci", Title: "Fibonacci", Description: "Iterative Fibonacci numbers up to 20"},
	{Name: "bubble-sort", Title: "Bubble Sort", Description: "Sort 30 random integers"},
	{Name: "goroutines", Title: "Goroutines", Description: "Concurrent square and cube with channels"},
	{Name: "matrix", Title: "Matrix Multiplication", Description: "Multiply two 2x2 matrices"},
	{Name: "greeting", Title: "Name and Color", Description: "Reads two lines from stdin", Interactive: true},
	{Name: "life", Title: "Game of Life", Description: "Conway's Game of Life sized to the output pane", Animated: true},
	{Name: "progress", Title: "Progress Bar", Description: "Redraws a bar with the form-feed clear marker", Animated: true},
}

// All returns every example in menu order.
func All() []Example {
	return append([]Example(nil), catalog...)
}

// Get returns the example with the given name.
func Get(name string) (Example, bool) {
	for _, ex := range catalog {
		if ex.Name == name {
			return ex, true
		}
	}
	return Example{}, false
}

type searchable []Example

func (s searchable) String(i int) string { return s[i].Name + " " + s[i].Title }
func (s searchable) Len() int            { return len(s) }

// Find returns examples fuzzy-matching query, best match first. An empty
// query returns all of them.
func Find(query string) []Example {
	query = strings.TrimSpace(query)
	if query == "" {
		return All()
	}
	matches := fuzzy.FindFrom(query, searchable(catalog))
	result := make([]Example, 0, len(matches))
	for _, m := range matches {
		result = append(result, catalog[m.Index])
	}
	return result
}

// Lookup resolves name exactly, or by the best fuzzy match.
func Lookup(name string) (Example, error) {
	if ex, ok := Get(name); ok {
		return ex, nil
	}
	if found := Find(name); len(found) > 0 {
		return found[0], nil
	}
	return Example{}, fmt.Errorf("no example matches %q", name)
}

// Source returns the program text. Animated boards are sized to cols x rows;
// values <= 0 use the defaults.
func (e Example) Source(cols, rows int) (string, error) {
	data, err := programs.ReadFile("programs/" + e.Name + ".gosrc")
	if err != nil {
		return "", fmt.Errorf("example %s: %w", e.Name, err)
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	if rows <= 0 {
		rows = DefaultRows
	}
	r := strings.NewReplacer(
		"{{cols}}", strconv.Itoa(cols),
		"{{rows}}", strconv.Itoa(rows),
	)
	return r.Replace(string(data)), nil
}
