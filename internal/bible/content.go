package bible

import (
	"strings"

	"github.com/starford/verbo/internal/models"
)

// Node is one element of the chapter content tree.
type Node struct {
	Type    string            `json:"type"`
	Name    string            `json:"name,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Items   []Node            `json:"items,omitempty"`
	Text    string            `json:"text,omitempty"`
	VerseID string            `json:"verseId,omitempty"`
}

type chapterContent struct {
	Content []Node `json:"content"`
}

// ParseContent walks the content tree depth-first. A "verse" tag opens a verse;
// every following text run is appended to it until the next verse tag.
// A leading copy of the verse number inside a text run is dropped.
func ParseContent(chapterID string, nodes []Node) []models.Verse {
	p := contentParser{chapterID: chapterID, index: make(map[string]int)}
	p.walk(nodes)
	return p.verses
}

type contentParser struct {
	chapterID string
	current   string
	verses    []models.Verse
	index     map[string]int
}

func (p *contentParser) walk(nodes []Node) {
	for _, n := range nodes {
		if n.Type == "tag" && n.Name == "verse" {
			p.current = n.Attrs["number"]
		}
		if n.Text != "" && p.current != "" {
			p.add(n)
		}
		if len(n.Items) > 0 {
			p.walk(n.Items)
		}
	}
}

func (p *contentParser) add(n Node) {
	text := n.Text
	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, p.current) {
		text = strings.TrimLeft(strings.TrimPrefix(trimmed, p.current), " \t\n")
	}
	if i, ok := p.index[p.current]; ok {
		p.verses[i].Text += text
		return
	}
	id := n.VerseID
	if id == "" {
		id = p.chapterID + "-" + p.current
	}
	p.index[p.current] = len(p.verses)
	p.verses = append(p.verses, models.Verse{ID: id, Number: p.current, Text: text})
}
