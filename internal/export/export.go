// Package export writes the tracked library to portable text formats.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/trackr/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format names accepted by Write
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
)

// Formats lists every supported format
var Formats = []string{FormatYAML, FormatTOML, FormatJSON}

// Entry is one exported library row
type Entry struct {
	ID             string     `json:"id" yaml:"id" toml:"id"`
	Title          string     `json:"title" yaml:"title" toml:"title"`
	Author         string     `json:"author,omitempty" yaml:"author,omitempty" toml:"author,omitempty"`
	Status         string     `json:"status" yaml:"status" toml:"status"`
	CurrentChapter int        `json:"current_chapter" yaml:"current_chapter" toml:"current_chapter"`
	CurrentVolume  int        `json:"current_volume,omitempty" yaml:"current_volume,omitempty" toml:"current_volume,omitempty"`
	Chapters       int        `json:"chapters,omitempty" yaml:"chapters,omitempty" toml:"chapters,omitempty"`
	Rating         *float64   `json:"rating,omitempty" yaml:"rating,omitempty" toml:"rating,omitempty"`
	Notes          string     `json:"notes,omitempty" yaml:"notes,omitempty" toml:"notes,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty" yaml:"start_date,omitempty" toml:"start_date,omitempty"`
	FinishDate     *time.Time `json:"finish_date,omitempty" yaml:"finish_date,omitempty" toml:"finish_date,omitempty"`
}

// Document is the top-level exported value
type Document struct {
	ExportedAt time.Time `json:"exported_at" yaml:"exported_at" toml:"exported_at"`
	Total      int       `json:"total" yaml:"total" toml:"total"`
	Books      []Entry   `json:"books" yaml:"books" toml:"book"`
}

// NewDocument converts tracked books into export rows sorted by title.
// Untracked or malformed entries are skipped.
func NewDocument(books []domain.TrackedBook, at time.Time) Document {
	doc := Document{ExportedAt: at.UTC(), Books: []Entry{}}
	for _, tb := range books {
		if !tb.Valid() || tb.TrackingStatus == nil {
			continue
		}
		t := tb.TrackingStatus
		doc.Books = append(doc.Books, Entry{
			ID:             tb.Book.ID,
			Title:          tb.Book.DisplayTitle(),
			Author:         tb.Book.Author,
			Status:         string(t.Status),
			CurrentChapter: t.CurrentChapter,
			CurrentVolume:  t.CurrentVolume,
			Chapters:       tb.Book.Chapters,
			Rating:         t.Rating,
			Notes:          t.Notes,
			StartDate:      t.StartDate,
			FinishDate:     t.FinishDate,
		})
	}
	sort.SliceStable(doc.Books, func(i, j int) bool {
		return strings.ToLower(doc.Books[i].Title) < strings.ToLower(doc.Books[j].Title)
	})
	doc.Total = len(doc.Books)
	return doc
}

// Write encodes doc to w in the named format
func Write(w io.Writer, format string, doc Document) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatYAML, "yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(doc); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	case FormatTOML:
		data, err = toml.Marshal(doc)
	case FormatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unsupported format: %s (choose %s)", format, strings.Join(Formats, ", "))
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}
