// Package modes loads the conversion dialect vocabularies.
//
// Each vocabulary is a line-based file where every line reads
// "<display name>:<command-line token>". Blank lines and lines starting
// with '#' are ignored.
package modes

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// SourceFile is the file name of the source vocabulary.
	SourceFile = "source-modes.txt"
	// TargetFile is the file name of the target vocabulary.
	TargetFile = "target-modes.txt"
)

var (
	//go:embed source-modes.txt
	defaultSource string

	//go:embed target-modes.txt
	defaultTarget string
)

// Mode is one dialect.
type Mode struct {
	Name  string `json:"name" yaml:"name"`
	Token string `json:"token" yaml:"token"`
}

// Vocabulary is an ordered list of modes.
type Vocabulary struct {
	modes []Mode
	index map[string]int
}

// Parse reads a vocabulary. A malformed line is an error naming its line
// number. Later duplicates of a name replace earlier ones in place.
func Parse(r io.Reader) (*Vocabulary, error) {
	v := &Vocabulary{index: make(map[string]int)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		i := strings.LastIndexByte(text, ':')
		if i <= 0 || i == len(text)-1 {
			return nil, fmt.Errorf("line %d: expected <name>:<token>, got %q", line, text)
		}
		m := Mode{
			Name:  strings.TrimSpace(text[:i]),
			Token: strings.TrimSpace(text[i+1:]),
		}
		if pos, ok := v.index[m.Name]; ok {
			v.modes[pos] = m
			continue
		}
		v.index[m.Name] = len(v.modes)
		v.modes = append(v.modes, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read modes: %w", err)
	}
	return v, nil
}

// Token returns the command-line token for a display name.
func (v *Vocabulary) Token(name string) (string, bool) {
	i, ok := v.index[name]
	if !ok {
		return "", false
	}
	return v.modes[i].Token, true
}

// Modes returns the modes in file order.
func (v *Vocabulary) Modes() []Mode {
	return append([]Mode(nil), v.modes...)
}

// Names returns the display names in file order.
func (v *Vocabulary) Names() []string {
	names := make([]string, len(v.modes))
	for i, m := range v.modes {
		names[i] = m.Name
	}
	return names
}

// Len returns the number of modes.
func (v *Vocabulary) Len() int {
	return len(v.modes)
}

// Set holds both vocabularies.
type Set struct {
	Source *Vocabulary
	Target *Vocabulary
}

// Default returns the built-in vocabularies.
func Default() *Set {
	src, err := Parse(strings.NewReader(defaultSource))
	if err != nil {
		panic(fmt.Sprintf("modes: invalid embedded %s: %v", SourceFile, err))
	}
	dst, err := Parse(strings.NewReader(defaultTarget))
	if err != nil {
		panic(fmt.Sprintf("modes: invalid embedded %s: %v", TargetFile, err))
	}
	return &Set{Source: src, Target: dst}
}

// Load reads source-modes.txt and target-modes.txt from dir. A file missing
// from dir falls back to the built-in vocabulary. An empty dir returns the
// built-in set.
func Load(dir string) (*Set, error) {
	set := Default()
	if dir == "" {
		return set, nil
	}
	for _, f := range []struct {
		name string
		dst  **Vocabulary
	}{
		{SourceFile, &set.Source},
		{TargetFile, &set.Target},
	} {
		file, err := os.Open(filepath.Join(dir, f.name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.name, err)
		}
		v, err := Parse(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return set, nil
}
