package integrations

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"
)

// Archive serializes the package directory into the final .epub container.
// The archive is recreated on every run; the directory tree is the durable
// state. The mimetype entry goes first and uncompressed, as the container
// format requires.
func (a *Assembler) Archive(outPath string) error {
	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove previous archive: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := a.writeArchive(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	defer os.Remove(tmpPath)

	// Some readers choke on streamed entries; rewrite the archive with the
	// data-descriptor flag cleared.
	if err := stripDataDescriptors(tmpPath, outPath); err != nil {
		return err
	}
	a.log.Info("created archive", zap.String("file", outPath))
	return nil
}

func (a *Assembler) writeArchive(tmpPath, outPath string) error {
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, mimetypeContent); err != nil {
		return err
	}

	err = filepath.WalkDir(a.bookDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(a.bookDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		// mimetype is already in; the output itself and its temp never are
		if rel == "mimetype" || path == tmpPath || path == outPath {
			return nil
		}
		return a.addFile(zw, rel, path)
	})
	if err != nil {
		return fmt.Errorf("failed to archive package directory: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return f.Close()
}

func (a *Assembler) addFile(zw *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func stripDataDescriptors(from, to string) error {
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("failed to create target archive %s: %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		file.Flags &= ^fixzip.FlagDataDescriptor
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("failed to write archive entry %s: %w", file.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return out.Close()
}

// EpubName is the archive filename for a book title.
func EpubName(title string) string {
	return sanitizeFilename(title) + ".epub"
}

// BookDirName is the package directory name for a book title.
func BookDirName(title string) string {
	return sanitizeFilename(title)
}

// sanitizeFilename drops characters that are invalid in filenames.
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	return strings.Trim(result, ".")
}
