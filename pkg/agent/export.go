package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/llm"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ExportHistory writes the transcript as an indented JSON array or a YAML
// sequence.
func ExportHistory(w io.Writer, msgs []llm.Message, format string) error {
	if msgs == nil {
		msgs = []llm.Message{}
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return errorsx.Wrap(enc.Encode(msgs), errorsx.ReasonHistoryExport)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(msgs); err != nil {
			return errorsx.Wrap(err, errorsx.ReasonHistoryExport)
		}
		return errorsx.Wrap(enc.Close(), errorsx.ReasonHistoryExport)
	default:
		return errorsx.Errorf(errorsx.ReasonHistoryExport, "unsupported export format %q", format)
	}
}

// FormatForPath picks the export format from a file extension.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ExportFileName is the default transcript name for a given moment.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("conversation_history_%s.json", now.Format("20060102_150405"))
}
