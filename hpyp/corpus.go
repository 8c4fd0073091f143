package hpyp

import (
	"bufio"
	"os"
	"strings"
)

// Corpus maps an external text stream to the dense symbol ids the engine
// works on. Tokens are whitespace-separated; ids are assigned in order of
// first appearance. The engine references Seq but never mutates it.
type Corpus struct {
	Seq   []int
	Vocab []string
	ids   map[string]int
}

func NewCorpus() *Corpus {
	return &Corpus{ids: make(map[string]int)}
}

// NewCorpusFromFile reads a whitespace-tokenized text file.
func NewCorpusFromFile(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, configErrorf("open corpus %s: %v", path, err)
	}
	defer f.Close()

	c := NewCorpus()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		for _, tok := range strings.Fields(scanner.Text()) {
			c.Append(tok)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, configErrorf("read corpus %s: %v", path, err)
	}
	return c, nil
}

// Append adds one token to the sequence, assigning a fresh id on first
// sight, and returns the token's id.
func (c *Corpus) Append(tok string) int {
	id, ok := c.ids[tok]
	if !ok {
		id = len(c.Vocab)
		c.ids[tok] = id
		c.Vocab = append(c.Vocab, tok)
	}
	c.Seq = append(c.Seq, id)
	return id
}

// NumTypes returns the vocabulary size.
func (c *Corpus) NumTypes() int { return len(c.Vocab) }

// Token returns the token for an id, or the empty string when out of range.
func (c *Corpus) Token(id int) string {
	if id < 0 || id >= len(c.Vocab) {
		return ""
	}
	return c.Vocab[id]
}

// ID returns the id for a token and whether it is known.
func (c *Corpus) ID(tok string) (int, bool) {
	id, ok := c.ids[tok]
	return id, ok
}
