package migrate

import (
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"github.com/serenize/snaker"
)

// VersionLayout is the time layout of a migration version
const VersionLayout = "20060102150405"

// Scaffold returns file names for a new migration titled title, versioned
// at t. "Add moderation" becomes <version>_add_moderation.sql.
func Scaffold(t time.Time, title string) (up, down string, err error) {
	words := strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for k, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[k] = string(runes)
	}

	name := snaker.CamelToSnake(strings.Join(words, ""))
	version := t.UTC().Format(VersionLayout)
	up = version + "_" + name + ".sql"
	if !filenameMatcher.MatchString(up) {
		return "", "", errors.Errorf("invalid migration title %q", title)
	}
	return up, version + "_" + name + ".down.sql", nil
}
