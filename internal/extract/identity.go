package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/models"
)

// CanonicalID derives the stable posting identity: the first 16 hex
// characters of SHA-256 over host+path plus any id-like query parameter.
// Tracking parameters never change the ID.
func CanonicalID(rawURL string) string {
	identity := common.CanonicalIdentity(rawURL)
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])[:16]
}

// DedupeHash hashes the lowercased employer|title|location|application_url
// tuple. Two postings with the same hash are the same vacancy regardless
// of which source surfaced them.
func DedupeHash(employer, title, location, applicationURL string) string {
	key := strings.ToLower(fmt.Sprintf("%s|%s|%s|%s",
		strings.TrimSpace(employer),
		strings.TrimSpace(title),
		strings.TrimSpace(location),
		strings.TrimSpace(applicationURL),
	))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// applyIdentity stamps identity hashes onto a finished result.
func applyIdentity(result *models.ExtractionResult) {
	target := result.Field(models.FieldApplicationURL)
	if target == "" {
		target = result.URL
	}
	result.CanonicalID = CanonicalID(target)
	result.DedupeHash = DedupeHash(
		result.Field(models.FieldEmployer),
		result.Field(models.FieldTitle),
		result.Field(models.FieldLocation),
		target,
	)
}
