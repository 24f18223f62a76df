package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// GenerateBOM aggregates every stats file under dir into a bill of materials
// CSV, written to <dir>/<BOMDirName>/BOM_<name>_<timestamp>.csv. Stats files
// that fail to parse are skipped with a warning rather than failing the
// whole BOM. Returns the CSV path, or "" when no stats files were found.
func (s *Service) GenerateBOM(dir *Path) (string, error) {
	if !dir.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", dir.String())
	}

	files, err := s.fsmgr.FindFiles(dir, true)
	if err != nil {
		return "", fmt.Errorf("listing stats files: %w", err)
	}

	var parts []*SliceMetrics
	for _, f := range files {
		if !strings.HasSuffix(f.String(), "_stats.json") {
			continue
		}
		m, err := s.readStats(f)
		if err != nil {
			s.logger.Warn("skipping unreadable stats file", "path", f.String(), "error", err)
			continue
		}
		parts = append(parts, m)
	}

	if len(parts) == 0 {
		s.logger.Info("no stats files found, skipping BOM", "dir", dir.String())
		return "", nil
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].PartName < parts[j].PartName })

	timestamp := s.clock.Now().Format("20060102_150405")
	name := fmt.Sprintf("BOM_%s_%s.csv", filepath.Base(dir.String()), timestamp)
	bomPath := filepath.Join(dir.String(), s.opts.BOMDirName, name)

	data, err := renderBOM(parts)
	if err != nil {
		return "", fmt.Errorf("rendering BOM: %w", err)
	}
	if err := s.fsmgr.WriteFile(bomPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing BOM: %w", err)
	}

	s.logger.Info("BOM generated", "path", bomPath, "parts", len(parts))
	return bomPath, nil
}

// readStats decodes a single stats file.
func (s *Service) readStats(p *Path) (*SliceMetrics, error) {
	f, err := s.fsmgr.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var m SliceMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.PartName == "" {
		return nil, errors.New("stats file has no part name")
	}
	return &m, nil
}

// renderBOM writes the parts table plus a totals row as CSV.
func renderBOM(parts []*SliceMetrics) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"Part Name",
		"Object Weight (g)",
		"Supports Weight (g)",
		"Total Weight (g)",
		"Price",
		"Dimensions (mm)",
		"Print Time",
		"Print Settings",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	var totalWeight, totalPrice float64
	for _, p := range parts {
		totalWeight += p.TotalWeightG
		totalPrice += p.Price
		row := []string{
			p.PartName,
			fmt.Sprintf("%.4f", p.ObjectWeightG),
			fmt.Sprintf("%.4f", p.SupportWeightG),
			fmt.Sprintf("%.4f", p.TotalWeightG),
			fmt.Sprintf("%.2f", p.Price),
			orNA(p.DimensionsMM),
			orNA(p.PrintTime),
			orNA(p.PrintSettings),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	totals := []string{
		fmt.Sprintf("TOTAL (%d parts)", len(parts)),
		"", "",
		fmt.Sprintf("%.4f", totalWeight),
		fmt.Sprintf("%.2f", totalPrice),
		"", "", "",
	}
	if err := w.Write(totals); err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
