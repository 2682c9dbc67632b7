package source

import (
	"encoding/json"
	"fmt"
	"strings"
)

// multiline is a notebook text field, stored either as one string or as a
// list of lines.
type multiline string

func (m *multiline) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = multiline(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*m = multiline(strings.Join(lines, ""))
	return nil
}

type notebook struct {
	Cells    []cell `json:"cells"`
	Metadata struct {
		Kernelspec struct {
			Language string `json:"language"`
		} `json:"kernelspec"`
		LanguageInfo struct {
			Name string `json:"name"`
		} `json:"language_info"`
	} `json:"metadata"`
}

type cell struct {
	CellType string    `json:"cell_type"`
	Source   multiline `json:"source"`
	Outputs  []output  `json:"outputs"`
}

type output struct {
	OutputType string               `json:"output_type"`
	Text       multiline            `json:"text"`
	Data       map[string]multiline `json:"data"`
	EName      string               `json:"ename"`
	EValue     string               `json:"evalue"`
}

// NotebookConverter renders Jupyter notebooks as markdown: markdown cells
// verbatim, code cells fenced with the kernel language, text outputs
// fenced without a language. A converter reuses its buffer and must not be
// shared between goroutines.
type NotebookConverter struct {
	buf strings.Builder
}

// NewNotebookConverter returns a converter for one unit of work.
func NewNotebookConverter() *NotebookConverter {
	return &NotebookConverter{}
}

// Convert renders the notebook JSON in data.
func (c *NotebookConverter) Convert(data []byte) (string, error) {
	var nb notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return "", fmt.Errorf("parse notebook: %w", err)
	}
	if nb.Cells == nil {
		return "", fmt.Errorf("parse notebook: no cells")
	}

	lang := nb.Metadata.Kernelspec.Language
	if lang == "" {
		lang = nb.Metadata.LanguageInfo.Name
	}
	if lang == "" {
		lang = "python"
	}

	c.buf.Reset()
	for _, cl := range nb.Cells {
		src := strings.TrimRight(string(cl.Source), "\n")
		switch cl.CellType {
		case "markdown":
			if strings.TrimSpace(src) == "" {
				continue
			}
			c.block(src)
		case "code":
			if strings.TrimSpace(src) != "" {
				c.fenced(lang, src)
			}
			for _, o := range cl.Outputs {
				c.output(o)
			}
		case "raw":
			if strings.TrimSpace(src) != "" {
				c.block(src)
			}
		}
	}
	return c.buf.String(), nil
}

func (c *NotebookConverter) output(o output) {
	switch o.OutputType {
	case "stream":
		if text := strings.TrimRight(string(o.Text), "\n"); text != "" {
			c.fenced("", text)
		}
	case "execute_result", "display_data":
		if md, ok := o.Data["text/markdown"]; ok && strings.TrimSpace(string(md)) != "" {
			c.block(strings.TrimRight(string(md), "\n"))
			return
		}
		if text, ok := o.Data["text/plain"]; ok && strings.TrimSpace(string(text)) != "" {
			c.fenced("", strings.TrimRight(string(text), "\n"))
		}
	case "error":
		c.fenced("", o.EName+": "+o.EValue)
	}
}

func (c *NotebookConverter) block(text string) {
	if c.buf.Len() > 0 {
		c.buf.WriteString("\n")
	}
	c.buf.WriteString(text)
	c.buf.WriteString("\n")
}

// fenced writes text in a code fence longer than any backtick run inside it.
func (c *NotebookConverter) fenced(lang, text string) {
	fence := "```"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	c.block(fence + lang + "\n" + text + "\n" + fence)
}
