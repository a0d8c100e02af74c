package integrations

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // cover probe support for webp covers

	"safaridl/pkg/sources"
)

const (
	mimetypeContent = "application/epub+zip"
	oebpsDir        = "OEBPS"
	stylesDir       = "Styles"
	imagesDir       = "Images"
)

// Assembler lays out the on-disk package directory and emits the manifest,
// spine and navigation documents from the crawled artifacts.
type Assembler struct {
	bookDir string
	log     *zap.Logger
}

func NewAssembler(bookDir string, log *zap.Logger) *Assembler {
	return &Assembler{bookDir: bookDir, log: log}
}

// Layout creates the package directory tree. Existing directories are left
// alone: the layout persists across runs and is only ever appended to.
func (a *Assembler) Layout() error {
	for _, dir := range []string{
		filepath.Join(a.bookDir, oebpsDir),
		filepath.Join(a.bookDir, oebpsDir, stylesDir),
		filepath.Join(a.bookDir, oebpsDir, imagesDir),
		filepath.Join(a.bookDir, "META-INF"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Assemble writes the package documents: mimetype, container, OPF and NCX.
// firstImage is the first discovered image reference, "" when none was seen.
func (a *Assembler) Assemble(bookID string, info *sources.BookInfo, chapters []sources.Chapter, firstImage string, nav *NavMap) error {
	if len(chapters) == 0 {
		return fmt.Errorf("assembler: no chapters, there is no package to build")
	}

	if err := os.WriteFile(filepath.Join(a.bookDir, "mimetype"), []byte(mimetypeContent), 0644); err != nil {
		return fmt.Errorf("failed to write mimetype: %w", err)
	}
	if err := a.writeContainer(); err != nil {
		return fmt.Errorf("failed to write container: %w", err)
	}
	if err := a.writeOPF(bookID, info, chapters, firstImage); err != nil {
		return fmt.Errorf("failed to write OPF: %w", err)
	}
	if err := a.writeNCX(bookID, info, nav); err != nil {
		return fmt.Errorf("failed to write NCX: %w", err)
	}
	return nil
}

func (a *Assembler) writeContainer() error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0"`)

	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")

	rootfile := container.CreateElement("rootfiles").CreateElement("rootfile")
	rootfile.CreateAttr("full-path", path.Join(oebpsDir, "content.opf"))
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")

	return a.writeXML(filepath.Join("META-INF", "container.xml"), doc)
}

func (a *Assembler) writeOPF(bookID string, info *sources.BookInfo, chapters []sources.Chapter, firstImage string) error {
	// Stylesheet and image manifest entries come from the materialized
	// directory listings, reconciling anything lost to fetch failures.
	styles, err := a.listDir(stylesDir)
	if err != nil {
		return err
	}
	images, err := a.listDir(imagesDir)
	if err != nil {
		return err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("unique-identifier", "bookid")
	pkg.CreateAttr("version", "2.0")

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	metadata.CreateElement("dc:title").SetText(info.Title)
	for _, author := range info.Authors {
		creator := metadata.CreateElement("dc:creator")
		creator.CreateAttr("opf:file-as", author.Name)
		creator.CreateAttr("opf:role", "aut")
		creator.SetText(author.Name)
	}
	metadata.CreateElement("dc:description").SetText(info.Description)
	for _, subject := range info.Subjects {
		metadata.CreateElement("dc:subject").SetText(subject.Name)
	}
	publishers := make([]string, len(info.Publishers))
	for i, p := range info.Publishers {
		publishers[i] = p.Name
	}
	metadata.CreateElement("dc:publisher").SetText(strings.Join(publishers, ", "))
	metadata.CreateElement("dc:rights").SetText(info.Rights)
	metadata.CreateElement("dc:language").SetText("en-US")
	identifier := metadata.CreateElement("dc:identifier")
	identifier.CreateAttr("id", "bookid")
	identifier.SetText(info.UID(bookID))

	manifest := pkg.CreateElement("manifest")

	ncxItem := manifest.CreateElement("item")
	ncxItem.CreateAttr("id", "ncx")
	ncxItem.CreateAttr("href", "toc.ncx")
	ncxItem.CreateAttr("media-type", "application/x-dtbncx+xml")

	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", "ncx")

	// Spine order is exactly the chapter list order, post cover-reordering.
	for _, ch := range chapters {
		filename := strings.ReplaceAll(ch.Filename, ".html", ".xhtml")
		id := manifestID(filename)

		item := manifest.CreateElement("item")
		item.CreateAttr("id", id)
		item.CreateAttr("href", filename)
		item.CreateAttr("media-type", "application/xhtml+xml")

		itemref := spine.CreateElement("itemref")
		itemref.CreateAttr("idref", id)
	}

	altCoverID := ""
	for _, img := range images {
		id := "img_" + manifestID(img)
		item := manifest.CreateElement("item")
		item.CreateAttr("id", id)
		item.CreateAttr("href", imagesDir+"/"+img)
		item.CreateAttr("media-type", imageMediaType(img))
		if altCoverID == "" {
			altCoverID = id
		}
	}

	for i, style := range styles {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", fmt.Sprintf("style_%02d", i+1))
		item.CreateAttr("href", stylesDir+"/"+style)
		item.CreateAttr("media-type", "text/css")
	}

	// The package always declares exactly one cover: the first discovered
	// image wins, the first image manifest entry is the fallback.
	coverID := altCoverID
	if firstImage != "" {
		coverID = "img_" + manifestID(path.Base(firstImage))
	}
	coverMeta := metadata.CreateElement("meta")
	coverMeta.CreateAttr("name", "cover")
	coverMeta.CreateAttr("content", coverID)
	a.probeCover(firstImage, images)

	guideRef := pkg.CreateElement("guide").CreateElement("reference")
	guideRef.CreateAttr("href", strings.ReplaceAll(chapters[0].Filename, ".html", ".xhtml"))
	guideRef.CreateAttr("title", "Cover")
	guideRef.CreateAttr("type", "cover")

	return a.writeXML(filepath.Join(oebpsDir, "content.opf"), doc)
}

func (a *Assembler) writeNCX(bookID string, info *sources.BookInfo, nav *NavMap) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="no"`)

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")

	head := ncx.CreateElement("head")
	for _, meta := range [][2]string{
		{"dtb:uid", "ID:ISBN:" + info.UID(bookID)},
		{"dtb:depth", strconv.Itoa(nav.MaxDepth)},
		{"dtb:totalPageCount", "0"},
		{"dtb:maxPageNumber", "0"},
	} {
		m := head.CreateElement("meta")
		m.CreateAttr("content", meta[1])
		m.CreateAttr("name", meta[0])
	}

	ncx.CreateElement("docTitle").CreateElement("text").SetText(info.Title)
	ncx.CreateElement("docAuthor").CreateElement("text").SetText(info.AuthorNames())

	ncx.AddChild(nav.Root)

	return a.writeXML(filepath.Join(oebpsDir, "toc.ncx"), doc)
}

// probeCover decodes the cover image header for the log. Failures are not
// fatal: a broken or missing cover file still ships.
func (a *Assembler) probeCover(firstImage string, images []string) {
	name := ""
	if firstImage != "" {
		name = path.Base(firstImage)
	} else if len(images) > 0 {
		name = images[0]
	}
	if name == "" {
		return
	}

	raw, err := os.ReadFile(filepath.Join(a.bookDir, oebpsDir, imagesDir, name))
	if err != nil {
		a.log.Warn("cover image not materialized", zap.String("file", name))
		return
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		a.log.Warn("cover image not decodable", zap.String("file", name), zap.Error(err))
		return
	}
	a.log.Debug("cover image",
		zap.String("file", name), zap.String("format", format),
		zap.Int("width", cfg.Width), zap.Int("height", cfg.Height))
}

func (a *Assembler) listDir(sub string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.bookDir, oebpsDir, sub))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", sub, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (a *Assembler) writeXML(name string, doc *etree.Document) error {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(a.bookDir, name), buf.Bytes(), 0644)
}

// manifestID derives a manifest identifier from a filename: every extension
// segment stripped, remaining dots collapsed. XML escaping happens at
// serialization.
func manifestID(filename string) string {
	parts := strings.Split(filename, ".")
	if len(parts) > 1 {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, "")
}

func imageMediaType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if strings.Contains(ext, "jp") {
		ext = "jpeg"
	}
	return "image/" + ext
}
