package certissue

import (
	"bytes"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ukaji3/certissue-go/pkg/certissue/parser"
)

// File is one input blob of a batch.
type File interface {
	// Name returns the file name without directories.
	Name() string
	// ContentType returns the declared media type, without parameters.
	ContentType() string
	// Open returns the file content.
	Open() (io.ReadCloser, error)
}

// DiskFile is a File backed by the local file system.
type DiskFile struct {
	Path string
	Type string
}

// NewDiskFile creates a DiskFile, declaring its content type from the
// extension or, failing that, from the first bytes of the file.
func NewDiskFile(path string) *DiskFile {
	return &DiskFile{
		Path: path,
		Type: detectContentType(path),
	}
}

// Name returns the base name of the path.
func (f *DiskFile) Name() string {
	return filepath.Base(f.Path)
}

// ContentType returns the declared media type.
func (f *DiskFile) ContentType() string {
	return f.Type
}

// Open opens the file for reading.
func (f *DiskFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// MemFile is a File held in memory.
type MemFile struct {
	FileName string
	Type     string
	Data     []byte
}

// Name returns the file name.
func (f *MemFile) Name() string {
	return f.FileName
}

// ContentType returns the declared media type.
func (f *MemFile) ContentType() string {
	return f.Type
}

// Open returns a reader over the data.
func (f *MemFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// CollectFiles expands paths into files. Directories are walked
// recursively; hidden entries are skipped. The result is sorted by path.
func CollectFiles(paths ...string) ([]File, error) {
	var found []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			found = append(found, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(found)
	files := make([]File, 0, len(found))
	for _, path := range found {
		files = append(files, NewDiskFile(path))
	}
	return files, nil
}

// fileKind classifies batch inputs.
type fileKind int

const (
	kindIgnored fileKind = iota
	kindSpreadsheet
	kindImage
)

// classify sorts f into spreadsheet, image or ignored.
func classify(f File) fileKind {
	if parser.IsSpreadsheet(f.Name()) {
		return kindSpreadsheet
	}
	if strings.HasPrefix(f.ContentType(), "image/") {
		return kindImage
	}
	return kindIgnored
}

// detectContentType declares a media type for path.
func detectContentType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return stripParams(t)
	}

	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if n == 0 {
		return ""
	}
	return stripParams(http.DetectContentType(head[:n]))
}

func stripParams(t string) string {
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}
	return mediaType
}
