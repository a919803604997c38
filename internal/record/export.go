package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// CSVHeader はエクスポートの列名
var CSVHeader = []string{"ID", "Plate Number", "Confidence", "Timestamp", "Processed", "Notes"}

// WriteCSV は記録をCSV形式で書き出す
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("CSVヘッダーの書き込みに失敗: %w", err)
	}

	for _, rec := range records {
		notes := ""
		if rec.Notes != nil {
			notes = *rec.Notes
		}
		row := []string{
			rec.ID,
			rec.PlateNumber,
			strconv.FormatFloat(rec.Confidence, 'f', -1, 64),
			rec.Timestamp.Format(time.RFC3339),
			strconv.Itoa(rec.Processed),
			notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("CSVの書き込みに失敗: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename はダウンロード時のファイル名を返す
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("plate_records_%s.csv", now.Format(dateLayout))
}
