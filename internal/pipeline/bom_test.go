package pipeline_test

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"testing"
)

func addStats(e *env, dir, part string, totalG, price float64) {
	e.fs.AddFile(dir+"/Slicer_Stats/"+part+"_stats.json", []byte(`{
		"part_name": "`+part+`",
		"dimensions_mm": "10.00 x 20.00 x 30.00",
		"object_weight_g": `+floatJSON(totalG-5)+`,
		"supports_weight_g": 5,
		"total_weight_g": `+floatJSON(totalG)+`,
		"print_time": "1h 5m",
		"price_egp": `+floatJSON(price)+`
	}`))
}

func floatJSON(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func TestService_GenerateBOM(t *testing.T) {
	t.Run("aggregates stats into a CSV with totals", func(t *testing.T) {
		e := newEnv(t, nil)
		e.fs.AddDirectory("/repo/STEP_Exports")
		addStats(e, "/repo/STEP_Exports", "Mount", 20, 20)
		addStats(e, "/repo/STEP_Exports", "Bracket", 30, 30)

		dir, _ := e.fs.Resolve("/repo/STEP_Exports")
		bomPath, err := e.svc.GenerateBOM(dir)
		if err != nil {
			t.Fatalf("GenerateBOM() error = %v", err)
		}

		want := "/repo/STEP_Exports/BOM/BOM_STEP_Exports_20240115_103000.csv"
		if bomPath != want {
			t.Fatalf("bomPath = %q, want %q", bomPath, want)
		}

		rows, err := csv.NewReader(bytes.NewReader(e.fs.Content(bomPath))).ReadAll()
		if err != nil {
			t.Fatalf("parsing BOM: %v", err)
		}

		// Header, two parts sorted by name, totals.
		if len(rows) != 4 {
			t.Fatalf("got %d rows, want 4", len(rows))
		}
		if rows[1][0] != "Bracket" || rows[2][0] != "Mount" {
			t.Errorf("parts out of order: %v, %v", rows[1][0], rows[2][0])
		}
		if rows[3][0] != "TOTAL (2 parts)" {
			t.Errorf("totals label = %q", rows[3][0])
		}
		if rows[3][3] != "50.0000" {
			t.Errorf("total weight = %q, want 50.0000", rows[3][3])
		}
		if rows[3][4] != "50.00" {
			t.Errorf("total price = %q, want 50.00", rows[3][4])
		}
	})

	t.Run("skips unreadable stats files", func(t *testing.T) {
		e := newEnv(t, nil)
		e.fs.AddDirectory("/repo/STEP_Exports")
		addStats(e, "/repo/STEP_Exports", "Bracket", 30, 30)
		e.fs.AddFile("/repo/STEP_Exports/Slicer_Stats/Broken_stats.json", []byte("{not json"))

		dir, _ := e.fs.Resolve("/repo/STEP_Exports")
		bomPath, err := e.svc.GenerateBOM(dir)
		if err != nil {
			t.Fatalf("GenerateBOM() error = %v", err)
		}

		rows, _ := csv.NewReader(bytes.NewReader(e.fs.Content(bomPath))).ReadAll()
		if len(rows) != 3 {
			t.Fatalf("got %d rows, want header + Bracket + totals", len(rows))
		}
	})

	t.Run("returns empty path when no stats exist", func(t *testing.T) {
		e := newEnv(t, nil)
		e.fs.AddDirectory("/repo/STEP_Exports")

		dir, _ := e.fs.Resolve("/repo/STEP_Exports")
		bomPath, err := e.svc.GenerateBOM(dir)
		if err != nil {
			t.Fatalf("GenerateBOM() error = %v", err)
		}
		if bomPath != "" {
			t.Errorf("bomPath = %q, want empty", bomPath)
		}
	})

	t.Run("missing fields render as N/A", func(t *testing.T) {
		e := newEnv(t, nil)
		e.fs.AddDirectory("/repo/STEP_Exports")
		e.fs.AddFile("/repo/STEP_Exports/Slicer_Stats/Bare_stats.json",
			[]byte(`{"part_name": "Bare", "total_weight_g": 10}`))

		dir, _ := e.fs.Resolve("/repo/STEP_Exports")
		bomPath, err := e.svc.GenerateBOM(dir)
		if err != nil {
			t.Fatalf("GenerateBOM() error = %v", err)
		}

		rows, _ := csv.NewReader(bytes.NewReader(e.fs.Content(bomPath))).ReadAll()
		if rows[1][5] != "N/A" || rows[1][6] != "N/A" {
			t.Errorf("missing dimensions/time = %q, %q, want N/A", rows[1][5], rows[1][6])
		}
	})
}
