package documents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/nordstift/foundation-console/internal/application/port"
	appworkflow "github.com/nordstift/foundation-console/internal/application/workflow"
	"github.com/nordstift/foundation-console/internal/domain/compliance"
	"github.com/nordstift/foundation-console/internal/domain/workflow"
	"github.com/nordstift/foundation-console/pkg/utils"
)

// Generator produces the regulatory document set for a workflow as
// Excel workbooks on local disk. The returned document IDs are the
// written file paths.
type Generator struct {
	outputDir string
	logger    *zap.Logger
}

// NewGenerator creates a document generator writing under outputDir
func NewGenerator(outputDir string, logger *zap.Logger) (*Generator, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Generator{
		outputDir: outputDir,
		logger:    logger,
	}, nil
}

// Generate implements port.DocumentGenerator
func (g *Generator) Generate(ctx context.Context, kind workflow.SideEffectKind, instance *workflow.Instance) ([]string, error) {
	g.logger.Info("Generating documents",
		zap.Int64("instance_id", instance.ID),
		zap.String("kind", string(kind)))

	switch kind {
	case workflow.SideEffectRegistrationDocuments:
		return g.registrationSet(instance)
	case workflow.SideEffectMeetingMinutes:
		return g.meetingMinutes(instance)
	default:
		return nil, fmt.Errorf("no document template for side effect kind %s", kind)
	}
}

// registrationSet writes the three documents the registration
// authority requires: statutes, board resolution and bank certificate.
func (g *Generator) registrationSet(instance *workflow.Instance) ([]string, error) {
	snap := instance.Snapshot()
	name := snap.GetString(compliance.KeyName)
	board := snap.GetStringSlice(compliance.KeyBoardMembers)

	var paths []string

	statutes, err := g.write(instance, "statutes", func(f *excelize.File, sheet string) {
		g.setCell(f, sheet, "A1", "Foundation Statutes")
		g.setCell(f, sheet, "B3", name)
		g.setCell(f, sheet, "B4", snap.GetString(compliance.KeyPurpose))
		g.setCell(f, sheet, "B5", fmt.Sprintf("%d SEK", snap.GetInt(compliance.KeyCapitalSEK)))
	})
	if err != nil {
		return nil, err
	}
	paths = append(paths, statutes)

	resolution, err := g.write(instance, "board_resolution", func(f *excelize.File, sheet string) {
		g.setCell(f, sheet, "A1", "Board Resolution")
		g.setCell(f, sheet, "B3", name)
		for i, member := range board {
			g.setCell(f, sheet, fmt.Sprintf("B%d", 5+i), member)
		}
	})
	if err != nil {
		return nil, err
	}
	paths = append(paths, resolution)

	certificate, err := g.write(instance, "bank_certificate", func(f *excelize.File, sheet string) {
		g.setCell(f, sheet, "A1", "Bank Certificate of Deposited Capital")
		g.setCell(f, sheet, "B3", name)
		g.setCell(f, sheet, "B4", fmt.Sprintf("%d SEK", snap.GetInt(compliance.KeyCapitalSEK)))
		g.setCell(f, sheet, "B5", time.Now().Format("2006-01-02"))
	})
	if err != nil {
		return nil, err
	}
	paths = append(paths, certificate)

	return paths, nil
}

// meetingMinutes writes the minutes document that attendees sign.
func (g *Generator) meetingMinutes(instance *workflow.Instance) ([]string, error) {
	snap := instance.Snapshot()

	path, err := g.write(instance, "meeting_minutes", func(f *excelize.File, sheet string) {
		g.setCell(f, sheet, "A1", "Meeting Minutes")
		g.setCell(f, sheet, "B3", snap.GetString("meeting_title"))
		g.setCell(f, sheet, "B4", snap.GetString(appworkflow.KeyChairID))
		for i, attendee := range snap.GetStringSlice(appworkflow.KeyAttendeeIDs) {
			g.setCell(f, sheet, fmt.Sprintf("B%d", 6+i), attendee)
		}
	})
	if err != nil {
		return nil, err
	}

	return []string{path}, nil
}

// write builds a single-sheet workbook and saves it under the
// instance's directory.
func (g *Generator) write(instance *workflow.Instance, docName string, fill func(f *excelize.File, sheet string)) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	fill(f, sheet)

	dir := filepath.Join(g.outputDir, fmt.Sprintf("instance_%d", instance.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create instance directory: %w", err)
	}

	path := filepath.Join(dir, docName+".xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", docName, err)
	}

	g.logger.Info("Document written", zap.String("path", path))
	return path, nil
}

// setCell sets a cell value, logging instead of failing on errors.
// String values are sanitized since they come from user input.
func (g *Generator) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if s, ok := value.(string); ok {
		value = utils.SanitizeString(s)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		g.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

// Verify interface compliance
var _ port.DocumentGenerator = (*Generator)(nil)
