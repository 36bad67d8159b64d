package events

import (
	"errors"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// truncateError bounds last_error text to maxBytes without splitting a
// UTF-8 sequence.
func truncateError(err error, maxBytes int) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	b := []byte(s[:maxBytes])
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}

func logrusNop() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}
