package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/health-triage/internal/domain"
	"gopkg.in/yaml.v3"
)

// Base names of the files a FileSource reads.
const (
	FileRules         = "rules"
	FileDietTags      = "diet_tags"
	FileDepartmentMap = "department_map"
)

// catalogFiles maps option catalog file base names to catalog names.
var catalogFiles = []struct {
	base string
	name string
}{
	{"symptom_options", CatalogSymptoms},
	{"comorbidity_options", CatalogComorbidities},
	{"vitals_options", CatalogVitals},
}

// extensions are tried in order; the first existing file wins.
var extensions = []string{".json", ".yaml", ".yml"}

// FileSource reads configuration from JSON or YAML files in one directory.
type FileSource struct {
	dir string
}

// NewFileSource creates a source reading from dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Dir returns the directory the source reads from.
func (s *FileSource) Dir() string {
	return s.dir
}

// Version fingerprints the path, modification time and size of every
// configuration file.
func (s *FileSource) Version(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	names := []string{FileRules, FileDietTags, FileDepartmentMap}
	for _, c := range catalogFiles {
		names = append(names, c.base)
	}

	h := sha256.New()
	for _, base := range names {
		path, info, err := s.find(base)
		if err != nil {
			return "", err
		}
		if info == nil {
			fmt.Fprintf(h, "%s:-\n", base)
			continue
		}
		fmt.Fprintf(h, "%s:%d:%d\n", path, info.ModTime().UnixNano(), info.Size())
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// LoadRules reads the rules file.
func (s *FileSource) LoadRules(_ context.Context) ([]domain.Rule, error) {
	var out []domain.Rule
	if err := s.decodeRequired(FileRules, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadDietTags reads the diet tag catalog.
func (s *FileSource) LoadDietTags(_ context.Context) ([]domain.DietTag, error) {
	var out []domain.DietTag
	if err := s.decodeRequired(FileDietTags, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadDepartmentMap reads the department fallback table.
func (s *FileSource) LoadDepartmentMap(_ context.Context) ([]domain.DepartmentMapping, error) {
	var out []domain.DepartmentMapping
	if err := s.decodeRequired(FileDepartmentMap, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadCatalogs reads whichever option catalogs exist. YAML catalogs are
// converted to JSON.
func (s *FileSource) LoadCatalogs(_ context.Context) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(catalogFiles))
	for _, c := range catalogFiles {
		path, info, err := s.find(c.base)
		if err != nil {
			return nil, err
		}
		if info == nil {
			continue
		}

		var v any
		if err := decodeFile(path, &v); err != nil {
			return nil, err
		}
		body, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode catalog %s: %w", path, err)
		}
		out[c.name] = body
	}
	return out, nil
}

// find locates base with any supported extension. A nil FileInfo with a nil
// error means the file does not exist.
func (s *FileSource) find(base string) (string, fs.FileInfo, error) {
	for _, ext := range extensions {
		path := filepath.Join(s.dir, base+ext)
		info, err := os.Stat(path)
		if err == nil {
			return path, info, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", nil, nil
}

func (s *FileSource) decodeRequired(base string, v any) error {
	path, info, err := s.find(base)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("%s: no %s file (tried %s)", s.dir, base, strings.Join(extensions, ", "))
	}
	return decodeFile(path, v)
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = decodeYAML(data, v)
	default:
		err = decodeJSON(data, v)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// decodeJSON decodes data into v, rejecting keys v has no field for so a
// misspelled clause fails the load instead of being ignored.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after top-level value")
	}
	return nil
}

// decodeYAML is the YAML counterpart of decodeJSON. An empty document
// leaves v untouched.
func decodeYAML(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
