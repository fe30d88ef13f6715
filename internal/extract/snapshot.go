package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/models"
)

// SnapshotWriter persists raw page bytes plus a sidecar metadata file,
// keyed by SHA-256 of the URL and partitioned by domain. Snapshots are
// append-only; an existing snapshot is never rewritten in place.
type SnapshotWriter struct {
	root    string
	enabled bool
	version string
	logger  arbor.ILogger
}

type snapshotMeta struct {
	URL              string                   `json:"url"`
	Domain           string                   `json:"domain"`
	SnapshotAt       time.Time                `json:"snapshot_at"`
	HTMLSize         int                      `json:"html_size"`
	ExtractionResult *models.ExtractionResult `json:"extraction_result"`
	PipelineVersion  string                   `json:"pipeline_version"`
}

// NewSnapshotWriter creates a writer rooted at the snapshot path. When
// disabled, Write is a no-op.
func NewSnapshotWriter(root string, enabled bool, version string, logger arbor.ILogger) *SnapshotWriter {
	return &SnapshotWriter{
		root:    root,
		enabled: enabled,
		version: version,
		logger:  logger,
	}
}

// Write stores the raw body and sidecar under snapshots/<domain>/. Write
// failures log and return; they never fail the crawl.
func (w *SnapshotWriter) Write(url string, body []byte, result *models.ExtractionResult) {
	if w == nil || !w.enabled {
		return
	}

	domain := common.HostOf(url)
	if domain == "" {
		domain = "unknown"
	}
	sum := sha256.Sum256([]byte(url))
	name := hex.EncodeToString(sum[:])

	dir := filepath.Join(w.root, domain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logger.Warn().Err(err).Str("dir", dir).Msg("Snapshot directory creation failed")
		return
	}

	htmlPath := filepath.Join(dir, name+".html")
	if err := os.WriteFile(htmlPath, body, 0o644); err != nil {
		w.logger.Warn().Err(err).Str("path", htmlPath).Msg("Snapshot write failed")
		return
	}

	meta := snapshotMeta{
		URL:              url,
		Domain:           domain,
		SnapshotAt:       time.Now().UTC(),
		HTMLSize:         len(body),
		ExtractionResult: result,
		PipelineVersion:  w.version,
	}
	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		w.logger.Warn().Err(err).Msg("Snapshot metadata encode failed")
		return
	}
	metaPath := filepath.Join(dir, name+".meta.json")
	if err := os.WriteFile(metaPath, encoded, 0o644); err != nil {
		w.logger.Warn().Err(err).Str("path", metaPath).Msg("Snapshot metadata write failed")
		return
	}

	w.logger.Debug().
		Str("domain", domain).
		Str("snapshot", fmt.Sprintf("%s.html", name[:12])).
		Msg("Snapshot written")
}
