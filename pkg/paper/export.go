package paper

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/segmentio/ksuid"

	"storyloom/pkg/apperr"
	"storyloom/pkg/store"
)

const (
	FormatStorybook = "storybook"
	FormatJSON      = "json"
	FormatMarkdown  = "markdown"
)

var allFormats = []string{FormatStorybook, FormatJSON, FormatMarkdown}

var storiesTemplate = template.Must(template.New("stories").Funcs(template.FuncMap{
	"js": func(s string) string {
		b, _ := json.Marshal(s)
		return string(b)
	},
	"inc": func(i int) int { return i + 1 },
}).Parse(`import type { Meta, StoryObj } from '@storybook/react';
import { Scene } from './Scene';

const meta: Meta<typeof Scene> = {
  title: {{ js .Title }},
  component: Scene,
};

export default meta;
type Story = StoryObj<typeof Scene>;
{{ range $i, $s := .Scenes }}
export const Scene{{ inc $i }}: Story = {
  args: {
    heading: {{ js $s.Heading }},
    body: {{ js $s.Body }},
  },
};
{{ end }}`))

// Exporter renders stories into files and keeps the zipped bundle for download.
type Exporter struct {
	kv     store.KV
	prefix string
}

// NewExporter serves archives under urlPrefix, e.g. "/api/export/".
func NewExporter(kv store.KV, urlPrefix string) *Exporter {
	return &Exporter{kv: kv, prefix: urlPrefix}
}

// Export renders the requested formats (all of them when none are named).
func (e *Exporter) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	formats := req.Formats
	if len(formats) == 0 {
		formats = allFormats
	}

	var files []File
	seen := map[string]bool{}
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if seen[f] {
			continue
		}
		seen[f] = true

		file, err := render(req.Story, f)
		if err != nil {
			return ExportResult{}, err
		}
		files = append(files, file)
	}

	archive, err := zipFiles(files)
	if err != nil {
		return ExportResult{}, fmt.Errorf("zipping export: %w", err)
	}
	// stored as a JSON string so document-only backends can hold it
	doc, err := json.Marshal(archive)
	if err != nil {
		return ExportResult{}, fmt.Errorf("encoding export: %w", err)
	}
	id := ksuid.New().String()
	if err := e.kv.Put(ctx, "export:"+id, doc); err != nil {
		return ExportResult{}, fmt.Errorf("storing export: %w", err)
	}
	return ExportResult{ZipURL: e.prefix + id, Files: files}, nil
}

// Archive returns a zip produced by Export, or store.ErrNotFound.
func (e *Exporter) Archive(ctx context.Context, id string) ([]byte, error) {
	doc, err := e.kv.Get(ctx, "export:"+id)
	if err != nil {
		return nil, err
	}
	var archive []byte
	if err := json.Unmarshal(doc, &archive); err != nil {
		return nil, fmt.Errorf("decoding export %s: %w", id, err)
	}
	return archive, nil
}

func render(s Story, format string) (File, error) {
	name := slug(s.Title)
	switch format {
	case FormatStorybook:
		buf := new(bytes.Buffer)
		if err := storiesTemplate.Execute(buf, s); err != nil {
			return File{}, fmt.Errorf("rendering storybook file: %w", err)
		}
		return File{Path: "stories/" + name + ".stories.tsx", Content: buf.String()}, nil
	case FormatJSON:
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return File{}, err
		}
		return File{Path: "story.json", Content: string(b)}, nil
	case FormatMarkdown:
		return File{Path: "README.md", Content: markdown(s)}, nil
	}
	return File{}, &apperr.ValidationError{Field: "formats", Reason: fmt.Sprintf("unknown export format %q", format)}
}

func markdown(s Story) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)
	if s.Paper.DOI != "" {
		fmt.Fprintf(&b, "DOI: %s\n\n", s.Paper.DOI)
	}
	for _, sc := range s.Scenes {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", sc.Heading, sc.Body)
	}
	return b.String()
}

func zipFiles(files []File) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, f := range files {
		w, err := zw.Create(f.Path)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(f.Content)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
