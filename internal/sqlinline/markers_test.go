package sqlinline

import (
	"regexp"
	"strings"
	"testing"
)

var markerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestQueriesCarryUniqueMarkers(t *testing.T) {
	queries := map[string]string{
		"QCreateSchema":           QCreateSchema,
		"QInsertJob":              QInsertJob,
		"QSelectJob":              QSelectJob,
		"QUpdateJobProgress":      QUpdateJobProgress,
		"QFinishJob":              QFinishJob,
		"QListFinishedJobsBefore": QListFinishedJobsBefore,
		"QDeleteJob":              QDeleteJob,
		"QInsertUpload":           QInsertUpload,
		"QSelectUpload":           QSelectUpload,
		"QListUploadsBefore":      QListUploadsBefore,
		"QDeleteUpload":           QDeleteUpload,
	}
	seen := make(map[string]string)
	for name, q := range queries {
		first, _, _ := strings.Cut(q, "\n")
		if !markerPattern.MatchString(first) {
			t.Fatalf("%s: first line %q is not a --sql marker", name, first)
		}
		if other, dup := seen[first]; dup {
			t.Fatalf("%s reuses the marker of %s", name, other)
		}
		seen[first] = name
	}
}
