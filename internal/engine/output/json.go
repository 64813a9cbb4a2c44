package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/averix/trustscan/internal/model"
)

// WriteJSON serializes a ResultSet to the given path as an indented JSON
// envelope: {total, pages, status, businesses:[...]}.
func WriteJSON(path string, rs *model.ResultSet) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rs); err != nil {
		return fmt.Errorf("encoding result set: %w", err)
	}

	return nil
}
