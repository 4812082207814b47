// Package reports renders a downloadable PDF summary of a completed
// analysis session: a cover page plus one page per detected face with its
// crop image, verdict and per-model score table.
package reports

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/veralens/veralensbackend/analysis"
	"github.com/veralens/veralensbackend/models"
	"github.com/veralens/veralensbackend/upstream"
)

const (
	cropMaxWidth  = 800
	cropMaxHeight = 800
	cropQuality   = 85

	pageImageWidthMM = 80
)

// ImageFetcher pulls binaries out of upstream storage. *upstream.Client
// satisfies it; tests substitute a stub.
type ImageFetcher interface {
	FetchStorage(ctx context.Context, kind upstream.StorageKind, filename string) (*upstream.StorageObject, error)
}

// Builder writes report PDFs into OutputDir.
type Builder struct {
	Fetcher   ImageFetcher
	OutputDir string
}

// NewBuilder creates a report builder saving into outputDir.
func NewBuilder(fetcher ImageFetcher, outputDir string) *Builder {
	return &Builder{Fetcher: fetcher, OutputDir: outputDir}
}

// Build renders the report for a session and returns the filename relative
// to OutputDir. Face crops that cannot be fetched are skipped with a note on
// the page rather than failing the whole report.
func (b *Builder) Build(ctx context.Context, sessionUUID string, session *models.Session, results []analysis.Result) (string, error) {
	if err := os.MkdirAll(b.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", b.OutputDir, err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Deepfake Analysis Report", false)

	b.coverPage(pdf, sessionUUID, session, len(results))
	for i := range results {
		b.facePage(ctx, pdf, sessionUUID, &results[i])
	}

	filename := fmt.Sprintf("report_%s_%d.pdf", sessionUUID, time.Now().Unix())
	savePath := filepath.Join(b.OutputDir, filename)
	if err := pdf.OutputFileAndClose(savePath); err != nil {
		return "", fmt.Errorf("failed to write report pdf %s: %w", savePath, err)
	}

	log.Printf("reports: generated %s (%d faces)", savePath, len(results))
	return filename, nil
}

func (b *Builder) coverPage(pdf *fpdf.Fpdf, sessionUUID string, session *models.Session, faceCount int) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 14, "Deepfake Analysis Report", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
	}

	line("Session", sessionUUID)
	line("Status", string(session.Status))
	if session.SHA256 != "" {
		line("Source SHA-256", session.SHA256)
	}
	line("Faces analyzed", fmt.Sprintf("%d", faceCount))
	line("Generated", time.Now().UTC().Format(time.RFC3339))

	if faceCount == 0 {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "I", 12)
		pdf.CellFormat(0, 10, "No faces were detected in the submitted image.", "", 1, "L", false, 0, "")
	}
}

func (b *Builder) facePage(ctx context.Context, pdf *fpdf.Fpdf, sessionUUID string, result *analysis.Result) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Face %d", result.FaceIndex), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	crop := b.fetchCrop(ctx, result)
	if crop != nil {
		imageName := fmt.Sprintf("%s_face_%d", sessionUUID, result.FaceIndex)
		pdf.RegisterImageOptionsReader(imageName, fpdf.ImageOptions{ImageType: "JPG"}, bytes.NewReader(crop))
		pdf.ImageOptions(imageName, pdf.GetX(), pdf.GetY(), pageImageWidthMM, 0, true, fpdf.ImageOptions{ImageType: "JPG"}, 0, "")
		pdf.Ln(4)
	} else {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 8, "(face image unavailable)", "", 1, "L", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 9, fmt.Sprintf("Verdict: %s", result.Verdict), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Ensemble: %.1f%% real / %.1f%% fake",
		result.Ensemble.Real*100, result.Ensemble.Fake*100), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// per-model table
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(60, 7, "Model", "B", 0, "L", false, 0, "")
	pdf.CellFormat(35, 7, "Real", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Fake", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, m := range result.Models {
		pdf.CellFormat(60, 6, m.Model, "", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f%%", m.RealProbability*100), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f%%", m.FakeProbability*100), "", 1, "R", false, 0, "")
	}
}

// fetchCrop pulls the face crop from upstream storage and re-encodes it as a
// bounded JPEG for embedding. Returns nil when the path is suspicious or the
// fetch fails; the report degrades instead of aborting.
func (b *Builder) fetchCrop(ctx context.Context, result *analysis.Result) []byte {
	if b.Fetcher == nil || result.FacePath == "" {
		return nil
	}
	if !analysis.IsAllowedStoragePath(result.FacePath) {
		log.Printf("reports: refusing suspicious face path %q", result.FacePath)
		return nil
	}

	obj, err := b.Fetcher.FetchStorage(ctx, upstream.StorageFaces, analysis.StorageFilename(result.FacePath))
	if err != nil {
		log.Printf("reports: failed to fetch crop for face %d: %v", result.FaceIndex, err)
		return nil
	}

	img, err := utilsDecodeFit(obj.Data)
	if err != nil {
		log.Printf("reports: failed to decode crop for face %d: %v", result.FaceIndex, err)
		return nil
	}
	return img
}
