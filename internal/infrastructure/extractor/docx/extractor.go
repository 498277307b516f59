package docx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval/internal/core/ports"
)

// Options tune how embedded images are turned into content units.
type Options struct {
	// Concurrency bounds how many OCR calls run at once per file.
	Concurrency int
	// MinTextLength rejects recognition output shorter than this.
	MinTextLength int
	// MinAlnumRatio rejects output whose alphanumeric share is at or
	// below this ratio; it filters garbage recognition results.
	MinAlnumRatio float64
	// MinConfidence rejects low-confidence recognition output.
	MinConfidence float64
}

func (o Options) normalize() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
	if o.MinTextLength <= 0 {
		o.MinTextLength = 10
	}
	if o.MinAlnumRatio <= 0 {
		o.MinAlnumRatio = 0.3
	}
	return o
}

// Extractor handles DOCX files: the paragraph stream split on
// blank-line boundaries plus one unit per embedded image that survives
// OCR validation.
type Extractor struct {
	ocr    ports.OCRRecognizer
	opts   Options
	logger *slog.Logger
}

func New(ocr ports.OCRRecognizer, opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		ocr:    ocr,
		opts:   opts.normalize(),
		logger: logger,
	}
}

func (e *Extractor) Extensions() []string {
	return []string{".docx"}
}

func (e *Extractor) Extract(ctx context.Context, filePath string) (domain.Extraction, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrExtraction, "open docx", err)
	}
	defer reader.Close()

	paragraphs, err := documentParagraphs(&reader.Reader)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrExtraction, "parse docx body", err)
	}
	units := paragraphUnits(paragraphs)

	images := mediaImages(&reader.Reader)
	imageUnits := e.recognizeImages(ctx, images)
	units = append(units, imageUnits...)

	return domain.Extraction{
		Units:  units,
		Pages:  1,
		Images: len(images),
	}, nil
}

// paragraphUnits groups consecutive non-empty paragraphs into content
// units, with empty paragraphs acting as unit boundaries.
func paragraphUnits(paragraphs []string) []domain.ContentUnit {
	var units []domain.ContentUnit
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(current, "\n"))
		current = current[:0]
		if text == "" {
			return
		}
		units = append(units, domain.ContentUnit{
			Text:       text,
			OriginKind: domain.UnitText,
		})
	}

	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			flush()
			continue
		}
		current = append(current, p)
	}
	flush()
	return units
}

// recognizeImages runs OCR over every embedded image with bounded
// fan-out. Results preserve the image index ordering; failed or
// rejected recognitions are dropped silently apart from a log line.
func (e *Extractor) recognizeImages(ctx context.Context, images []mediaImage) []domain.ContentUnit {
	if len(images) == 0 || e.ocr == nil {
		return nil
	}

	results := make([]domain.OCRResult, len(images))
	ok := make([]bool, len(images))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			result, err := e.ocr.Recognize(groupCtx, img.data)
			if err != nil {
				e.logger.Warn("ocr_failed", "image", img.name, "error", err)
				return nil
			}
			results[i] = result
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var units []domain.ContentUnit
	for i := range images {
		if !ok[i] {
			continue
		}
		if !e.acceptRecognition(results[i]) {
			e.logger.Debug("ocr_rejected", "image", images[i].name, "length", len(results[i].Text))
			continue
		}
		units = append(units, domain.ContentUnit{
			Text:       results[i].Text,
			OriginKind: domain.UnitImage,
			ImageIndex: i,
		})
	}
	return units
}

func (e *Extractor) acceptRecognition(result domain.OCRResult) bool {
	if len(result.Text) < e.opts.MinTextLength {
		return false
	}
	if result.Confidence < e.opts.MinConfidence {
		return false
	}
	return alnumRatio(result.Text) > e.opts.MinAlnumRatio
}

// alnumRatio is the share of letters and digits among all runes.
func alnumRatio(s string) float64 {
	if s == "" {
		return 0
	}
	total, alnum := 0, 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	return float64(alnum) / float64(total)
}

type mediaImage struct {
	name string
	data []byte
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
}

// mediaImages reads embedded images in name order so image indices are
// stable across extractions of the same file.
func mediaImages(reader *zip.Reader) []mediaImage {
	var files []*zip.File
	for _, f := range reader.File {
		if !strings.HasPrefix(f.Name, "word/media/") {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(path.Ext(f.Name))]; !ok {
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	out := make([]mediaImage, 0, len(files))
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		out = append(out, mediaImage{name: f.Name, data: data})
	}
	return out
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraphXML `xml:"p"`
	} `xml:"body"`
}

type paragraphXML struct {
	Runs []struct {
		Texts []string `xml:"t"`
	} `xml:"r"`
}

func documentParagraphs(reader *zip.Reader) ([]string, error) {
	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}

		var doc documentXML
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}

		paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
		for _, p := range doc.Body.Paragraphs {
			var b strings.Builder
			for _, run := range p.Runs {
				for _, t := range run.Texts {
					b.WriteString(t)
				}
			}
			paragraphs = append(paragraphs, b.String())
		}
		return paragraphs, nil
	}
	return nil, nil
}
