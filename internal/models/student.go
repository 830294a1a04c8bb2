package models

import (
	"strings"
	"unicode"
)

// StudentRecord is one student entry taken from the upstream card API.
type StudentRecord struct {
	DisplayName      string `json:"name"`
	FullName         string `json:"full_name"`
	MatriculationRaw string `json:"matriculation"`
	Email            string `json:"email"`
	ExternalID       int    `json:"id_user"`
	Course           string `json:"course"`
	Blocked          int    `json:"bloqueado"`
}

// NumericMatriculation keeps only the digits of the raw matriculation.
func (r StudentRecord) NumericMatriculation() string {
	return DigitsOnly(r.MatriculationRaw)
}

// IsBlocked reports whether the card should be refused.
func (r StudentRecord) IsBlocked() bool {
	return r.Blocked == 1
}

// DigitsOnly strips every non-digit rune from s.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
