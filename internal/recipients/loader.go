package recipients

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/sms-campaign/internal/models"
)

// ErrMissingColumns is returned when the recipient file lacks the required
// Name / Phone Number headers.
var ErrMissingColumns = errors.New("recipients: file must contain 'Name' and 'Phone Number' columns")

// Read parses a CSV recipient list. The first row must be a header containing
// 'Name' and 'Phone Number' columns (case-insensitive); extra columns are
// ignored. Row order is preserved and rows are not deduplicated.
func Read(r io.Reader) ([]models.Recipient, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingColumns
		}
		return nil, fmt.Errorf("recipients: read header: %w", err)
	}

	nameIdx, phoneIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "name":
			if nameIdx == -1 {
				nameIdx = i
			}
		case "phone number", "phone":
			if phoneIdx == -1 {
				phoneIdx = i
			}
		}
	}
	if nameIdx == -1 || phoneIdx == -1 {
		return nil, ErrMissingColumns
	}

	var out []models.Recipient
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("recipients: read row: %w", err)
		}
		if nameIdx >= len(row) || phoneIdx >= len(row) {
			continue
		}
		out = append(out, models.Recipient{
			Name:  strings.TrimSpace(row[nameIdx]),
			Phone: strings.TrimSpace(row[phoneIdx]),
		})
	}

	return out, nil
}

// ReadOptOuts parses an opt-out list with one phone number per line. Blank
// lines and '#' comments are ignored.
func ReadOptOuts(r io.Reader) (*models.OptOutSet, error) {
	set := models.NewOptOutSet()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("recipients: read opt-outs: %w", err)
	}
	return set, nil
}

// LoadFile reads a recipient CSV from disk.
func LoadFile(path string) ([]models.Recipient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recipients: open file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// LoadOptOutFile reads an opt-out list from disk.
func LoadOptOutFile(path string) (*models.OptOutSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recipients: open opt-out file: %w", err)
	}
	defer f.Close()
	return ReadOptOuts(f)
}
