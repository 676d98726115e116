package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

const sourceURLPrefix = "Source URL:"

// CorpusLoader enumerates the scraped case studies.
type CorpusLoader interface {
	Load(ctx context.Context) ([]models.Document, error)
}

type dirCorpusLoader struct {
	root     string
	maxBytes int64
}

// NewCorpusLoader reads .txt, .md and .pdf files below cfg.Path.
func NewCorpusLoader(cfg config.CorpusConfig) CorpusLoader {
	return &dirCorpusLoader{root: cfg.Path, maxBytes: cfg.MaxDocumentBytes}
}

// ConfigurePDFLicense registers the UniPDF metered key. Without one, PDF
// files in the corpus fail to extract and are skipped.
func ConfigurePDFLicense(key string) error {
	if key == "" {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("set unidoc license key: %w", err)
	}
	return nil
}

// Load returns the documents in a stable order: article numbers ascending,
// then file names. Unreadable files are logged and skipped.
func (l *dirCorpusLoader) Load(ctx context.Context) ([]models.Document, error) {
	logger := zerolog.Ctx(ctx)
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("corpus directory %s: %w", l.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory", l.root)
	}

	var paths []string
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && isSupportedFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus %s: %w", l.root, err)
	}

	docs := make([]models.Document, 0, len(paths))
	for _, path := range paths {
		if l.maxBytes > 0 {
			if fi, err := os.Stat(path); err == nil && fi.Size() > l.maxBytes {
				logger.Warn().Str("file", path).Int64("bytes", fi.Size()).Msg("CORPUS: file exceeds size limit, skipping")
				continue
			}
		}
		text, err := ExtractTextFromFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("CORPUS: could not read file, skipping")
			continue
		}
		url, body := parseScrapedArticle(text)
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		docs = append(docs, models.Document{
			ID:       documentID(filepath.Base(path)),
			URL:      url,
			Text:     body,
			Filename: filepath.ToSlash(rel),
		})
	}
	sortDocuments(docs)
	uniqueDocumentIDs(ctx, docs)
	logger.Info().Int("documents", len(docs)).Str("path", l.root).Msg("CORPUS: loaded documents")
	return docs, nil
}

// parseScrapedArticle splits the scraper's header off a case study. The
// header is a "Source URL:" line followed, some lines later, by a line of
// "=" characters; everything after that line is the body.
func parseScrapedArticle(content string) (url, body string) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], sourceURLPrefix) {
		return "", content
	}
	url = strings.TrimSpace(strings.TrimPrefix(lines[0], sourceURLPrefix))
	for i := 1; i < len(lines); i++ {
		if strings.Contains(lines[i], "=") && len(lines[i]) > 10 {
			return url, strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
	}
	return url, content
}

// documentID maps article_12.txt to "12" and anything else to its file stem.
func documentID(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return strings.TrimPrefix(stem, "article_")
}

// uniqueDocumentIDs renames every document whose ID was already taken by an
// earlier one (article_1.txt next to article_1.md, or the same name in two
// subdirectories). Entry IDs derive from document IDs, so they must not repeat.
func uniqueDocumentIDs(ctx context.Context, docs []models.Document) {
	seen := make(map[string]bool, len(docs))
	for i := range docs {
		id := docs[i].ID
		if seen[id] {
			id = docs[i].Filename
			for n := 2; seen[id]; n++ {
				id = docs[i].Filename + "#" + strconv.Itoa(n)
			}
			zerolog.Ctx(ctx).Warn().Str("file", docs[i].Filename).Str("id", id).
				Str("duplicate_of", docs[i].ID).Msg("CORPUS: document ID already in use, renamed")
			docs[i].ID = id
		}
		seen[id] = true
	}
}

func sortDocuments(docs []models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		ni, errI := strconv.Atoi(docs[i].ID)
		nj, errJ := strconv.Atoi(docs[j].ID)
		switch {
		case errI == nil && errJ == nil && ni != nj:
			return ni < nj
		case errI == nil && errJ != nil:
			return true
		case errI != nil && errJ == nil:
			return false
		}
		return docs[i].Filename < docs[j].Filename
	})
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".pdf":
		return true
	default:
		return false
	}
}

// ExtractTextFromFile reads a file and returns its text content.
func ExtractTextFromFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(content), nil
	case ".pdf":
		return extractTextFromPDF(path)
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
}

// extractTextFromPDF uses UniPDF to get all text from a PDF file.
func extractTextFromPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return "", err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", err
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", err
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return sb.String(), nil
}
