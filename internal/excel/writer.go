package excel

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/artifact"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var resultHeaders = []string{"Gamma Deck URL", "Generation Status", "PPTX Download URL", "Error"}

// Writer copies the uploaded workbook and appends one result column group,
// filled by sheet row number.
type Writer struct {
	store     artifact.Store
	outputDir string
	now       func() time.Time
}

var _ pipeline.ResultWriter = (*Writer)(nil)

func NewWriter(store artifact.Store, outputDir string) *Writer {
	return &Writer{store: store, outputDir: outputDir, now: time.Now}
}

// WithClock replaces the clock used for output file names.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

func (w *Writer) WriteResults(ctx context.Context, job model.Job, rows []model.Row) (string, error) {
	f, stem, err := w.openSource(ctx, job)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if job.OriginalFileRef == "" {
		if err := writeCompanies(f, sheet, rows); err != nil {
			return "", err
		}
	}
	existing, err := f.GetRows(sheet)
	if err != nil {
		return "", errors.Wrapf(err, "reading sheet %q", sheet)
	}
	firstCol := 1
	if len(existing) > 0 {
		firstCol = len(existing[0]) + 1
	}

	for i, h := range resultHeaders {
		if err := setCell(f, sheet, firstCol+i, 1, h); err != nil {
			return "", err
		}
	}

	for _, r := range rows {
		if r.RowIndex < 2 {
			continue
		}
		values := []string{r.ArtifactURL, string(r.Status), r.ExportURL, r.Error}
		for i, v := range values {
			if err := setCell(f, sheet, firstCol+i, r.RowIndex, v); err != nil {
				return "", err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return "", errors.Wrap(err, "encoding result workbook")
	}

	name := fmt.Sprintf("%s_with_decks_%s.xlsx", stem, w.now().Format("20060102_150405"))
	key := path.Join(w.outputDir, name)
	ref, err := w.store.Save(ctx, key, &buf, int64(buf.Len()))
	if err != nil {
		return "", errors.Wrapf(err, "saving result workbook to %s", w.store.Type())
	}

	zap.S().Named("excel").Infow("result workbook written", "job_id", job.ID, "ref", ref, "rows", len(rows))
	return ref, nil
}

// openSource opens the uploaded workbook, or a fresh one when the job did not
// come from a file.
func (w *Writer) openSource(ctx context.Context, job model.Job) (*excelize.File, string, error) {
	if job.OriginalFileRef == "" {
		return excelize.NewFile(), "job_" + job.ID, nil
	}

	rc, err := w.store.Open(ctx, job.OriginalFileRef)
	if err != nil {
		return nil, "", errors.Wrapf(err, "opening original workbook %s", job.OriginalFileRef)
	}
	defer func() {
		_ = rc.Close()
	}()

	f, err := excelize.OpenReader(rc)
	if err != nil {
		return nil, "", errors.Wrap(err, "parsing original workbook")
	}
	stem := strings.TrimSuffix(path.Base(job.OriginalFileRef), path.Ext(job.OriginalFileRef))
	return f, stem, nil
}

func writeCompanies(f *excelize.File, sheet string, rows []model.Row) error {
	if err := setCell(f, sheet, 1, 1, "Company Name"); err != nil {
		return err
	}
	for _, r := range rows {
		if r.RowIndex < 2 {
			continue
		}
		if err := setCell(f, sheet, 1, r.RowIndex, r.CompanyName); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value string) error {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return errors.Wrap(err, "computing cell name")
	}
	if err := f.SetCellValue(sheet, ref, value); err != nil {
		return errors.Wrapf(err, "writing cell %s", ref)
	}
	return nil
}
