package db

import (
	"net/url"
	"regexp"
)

var dsnMasker = regexp.MustCompile("(.)(?:.*)(.):(.)(?:.*)(.)@")

// MaskDSN hides user and password in a DSN for logging
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		u.User = url.UserPassword("****", "****")
		return u.String()
	}
	return dsnMasker.ReplaceAllString(dsn, "$1****$2:$3****$4@")
}
