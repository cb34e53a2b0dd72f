package engine

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/recall/pkg/types"
)

// techAliases maps common shorthand to the canonical technology name.
// Keys are already normalized (lowercase, trimmed).
var techAliases = map[string]string{
	"k8s":            "kubernetes",
	"js":             "javascript",
	"ts":             "typescript",
	"py":             "python",
	"golang":         "go",
	"docker-compose": "docker compose",
	"postgres":       "postgresql",
}

// orgSuffixes are corporate suffixes stripped from organization names.
var orgSuffixes = []string{"inc", "llc", "ltd", "corp", "corporation"}

// versionSuffix matches a trailing version token ("python 3.12", "node 18").
var versionSuffix = regexp.MustCompile(`\s+v?\d+(\.\d+)*$`)

var whitespace = regexp.MustCompile(`\s+`)

// CanonicalName normalizes an entity name for identity matching. All names
// are lowercased with collapsed whitespace; TECH names additionally lose
// version suffixes and resolve through the alias table, ORG names lose
// corporate suffixes. The function is idempotent.
func CanonicalName(name, entityType string) string {
	canonical := strings.ToLower(strings.TrimSpace(name))
	canonical = whitespace.ReplaceAllString(canonical, " ")

	switch entityType {
	case types.EntityTypeTech:
		canonical = versionSuffix.ReplaceAllString(canonical, "")
		if alias, ok := techAliases[canonical]; ok {
			canonical = alias
		}
	case types.EntityTypeOrg:
		canonical = stripOrgSuffix(canonical)
	}

	return canonical
}

// stripOrgSuffix removes a single trailing corporate suffix, with or
// without surrounding punctuation ("Acme Inc." and "Acme, Inc" both
// canonicalize to "acme").
func stripOrgSuffix(name string) string {
	for _, suffix := range orgSuffixes {
		trimmed := strings.TrimSuffix(name, ".")
		if strings.HasSuffix(trimmed, " "+suffix) {
			trimmed = strings.TrimSuffix(trimmed, " "+suffix)
			return strings.TrimRight(trimmed, " ,")
		}
	}
	return name
}

// ToEntity converts an extraction result into a persistable entity record.
func ToEntity(extracted types.ExtractedEntity, now time.Time) types.Entity {
	return types.Entity{
		ID:            uuid.NewString(),
		Name:          extracted.Name,
		CanonicalName: CanonicalName(extracted.Name, extracted.Type),
		Type:          extracted.Type,
		FirstSeen:     now,
		LastSeen:      now,
		ValidAt:       now,
		MentionCount:  1,
		Confidence:    extracted.Confidence,
	}
}
