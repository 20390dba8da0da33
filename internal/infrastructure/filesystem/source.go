package filesystem

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"neonote/internal/domain/job"
)

var documentExts = map[string]string{
	".pdf":  job.MimePDF,
	".ppt":  job.MimePPT,
	".pptx": job.MimePPTX,
}

// Document is a local file that may be uploaded.
type Document struct {
	Path       string
	Name       string
	Size       int64
	MimeType   string
	ModifiedAt time.Time
}

// Open returns an upload reading from the file. The closer must be called
// once the upload has been submitted.
func (d Document) Open() (job.Upload, io.Closer, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return job.Upload{}, nil, err
	}
	return job.Upload{
		FileName: d.Name,
		Size:     d.Size,
		MimeType: d.MimeType,
		Body:     f,
	}, f, nil
}

// Source discovers documents on the local filesystem.
type Source struct {
	policy job.UploadPolicy
}

// NewSource creates a document source filtered by policy.
func NewSource(policy job.UploadPolicy) *Source {
	return &Source{policy: policy}
}

// Detect stats a file and sniffs its content type.
func (s *Source) Detect(filePath string) (Document, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return Document{}, err
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("%s is a directory", filePath)
	}
	mimeType, err := detectMime(filePath)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Path:       filePath,
		Name:       filepath.Base(filePath),
		Size:       info.Size(),
		MimeType:   mimeType,
		ModifiedAt: info.ModTime(),
	}, nil
}

// Collect expands paths into documents. Files are taken as given; directories
// are walked for supported document extensions, skipping hidden entries.
func (s *Source) Collect(paths []string) ([]Document, error) {
	docs := make([]Document, 0, len(paths))
	seen := map[string]struct{}{}

	add := func(doc Document) {
		abs, err := filepath.Abs(doc.Path)
		if err != nil {
			abs = doc.Path
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		docs = append(docs, doc)
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			doc, err := s.Detect(root)
			if err != nil {
				return nil, err
			}
			add(doc)
			continue
		}

		found, err := s.walk(root)
		if err != nil {
			return nil, err
		}
		for _, doc := range found {
			add(doc)
		}
	}
	return docs, nil
}

func (s *Source) walk(root string) ([]Document, error) {
	found := make([]Document, 0)
	err := filepath.WalkDir(root, func(filePath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if filePath != root && strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !isWithinDir(root, filePath) {
			return nil
		}
		if _, ok := documentExts[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			return nil
		}

		doc, err := s.Detect(filePath)
		if err != nil {
			return nil
		}
		if !s.policy.Supports(doc.MimeType) {
			return nil
		}
		found = append(found, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Path < found[j].Path
	})
	return found, nil
}

// detectMime sniffs content and falls back to the extension when the
// container format is ambiguous (e.g. legacy OLE files).
func detectMime(filePath string) (string, error) {
	mt, err := mimetype.DetectFile(filePath)
	if err != nil {
		return "", err
	}
	for m := mt; m != nil; m = m.Parent() {
		switch m.String() {
		case job.MimePDF, job.MimePPT, job.MimePPTX:
			return m.String(), nil
		}
	}
	if byExt, ok := documentExts[strings.ToLower(filepath.Ext(filePath))]; ok && (mt.Is("application/x-ole-storage") || mt.Is("application/zip")) {
		return byExt, nil
	}
	return job.NormalizeMime(mt.String()), nil
}

func isWithinDir(basePath, targetPath string) bool {
	baseAbs, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return false
	}
	sep := string(os.PathSeparator)
	if rel == ".." || strings.HasPrefix(rel, ".."+sep) {
		return false
	}
	return true
}
