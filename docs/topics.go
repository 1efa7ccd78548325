// Package docs holds the vme help topics, one markdown file each.
package docs

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

//go:embed *.md
var docs embed.FS

// index is the topic introducing vme. It is not listed among the topics.
const index = "readme"

// Topic describes one help topic.
type Topic struct {
	Name  string // as given to "vme topic"
	Title string // first heading of the topic
}

// Topics returns every topic but the index, sorted by name.
func Topics() ([]Topic, error) {
	files, err := fs.Glob(docs, "*.md")
	if err != nil {
		return nil, err
	}
	var topics []Topic
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".md")
		if name == index {
			continue
		}
		content, err := docs.ReadFile(f)
		if err != nil {
			return nil, err
		}
		topics = append(topics, Topic{Name: name, Title: title(content)})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name < topics[j].Name })
	return topics, nil
}

// title returns the text of the first level 1 heading of a markdown source.
func title(source []byte) string {
	root := goldmark.DefaultParser().Parse(text.NewReader(source))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			return string(h.Text(source))
		}
	}
	return ""
}

// GetTopic returns the content of a topic.
func GetTopic(name string) (string, error) {
	content, err := docs.ReadFile(name + ".md")
	if err != nil {
		return "", fmt.Errorf("no topic %q, run \"vme topic\" for the list", name)
	}
	return string(content), nil
}

// Index returns the introduction to vme followed by the list of topics.
func Index() (string, error) {
	var b strings.Builder
	intro, err := GetTopic(index)
	if err != nil {
		return "", err
	}
	topics, err := Topics()
	if err != nil {
		return "", err
	}
	b.WriteString(strings.TrimRight(intro, "\n"))
	b.WriteString("\n\nTopics:\n\n")
	for _, t := range topics {
		fmt.Fprintf(&b, "* %s: %s\n", t.Name, t.Title)
	}
	return b.String(), nil
}

// GetTopics returns the content of the topics concatenated. "all" stands for
// every topic.
func GetTopics(names ...string) (string, error) {
	var b strings.Builder
	for _, name := range names {
		if name == "all" {
			topics, err := Topics()
			if err != nil {
				return "", err
			}
			for _, t := range topics {
				content, _ := GetTopic(t.Name)
				b.WriteString(content)
				b.WriteString("\n")
			}
			continue
		}
		content, err := GetTopic(name)
		if err != nil {
			return "", err
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}
