package importer

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// Backup is a parsed foreign backup.
type Backup struct {
	Entries []Entry
	// Malformed counts entries that could not be read.
	Malformed int
}

// Entry is one series of a backup.
type Entry struct {
	// Ref is the series URL on the source, or its slug.
	Ref          string `validate:"required"`
	Name         string `validate:"required"`
	ProviderCode string `validate:"required,numeric"`
}

type backupFile struct {
	Mangas []json.RawMessage `json:"mangas"`
}

// ParseFile reads a backup from disk.
func ParseFile(path string) (*Backup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFilesystem, "open backup")
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a backup. The JSON document may be gzip-compressed.
//
// The document has a top-level "mangas" array whose entries are arrays
// shaped [url_or_slug, name, provider_code, ...]; extra fields are ignored.
func Parse(r io.Reader) (*Backup, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(512)
	var src io.Reader = br
	if mimetype.Detect(head).Is("application/gzip") {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDecode, "open gzip backup")
		}
		defer gz.Close()
		src = gz
	}

	var file backupFile
	if err := json.NewDecoder(src).Decode(&file); err != nil {
		return nil, errors.Wrap(err, errors.CodeParse, "decode backup")
	}
	if file.Mangas == nil {
		return nil, errors.Parse("backup has no mangas array")
	}

	b := &Backup{Entries: make([]Entry, 0, len(file.Mangas))}
	for _, raw := range file.Mangas {
		e, err := parseEntry(raw)
		if err != nil {
			b.Malformed++
			continue
		}
		b.Entries = append(b.Entries, e)
	}
	return b, nil
}

func parseEntry(raw json.RawMessage) (Entry, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Entry{}, err
	}
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("entry has %d fields, want at least 3", len(fields))
	}
	var e Entry
	for i, dst := range []*string{&e.Ref, &e.Name, &e.ProviderCode} {
		if err := json.Unmarshal(fields[i], dst); err != nil {
			return Entry{}, fmt.Errorf("field %d: %w", i, err)
		}
	}
	if err := validate.Validate(e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
