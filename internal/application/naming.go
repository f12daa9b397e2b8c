package application

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// I18NString is a non-ASCII value used to check that text survives a round
// trip through the API unchanged.
const I18NString = "Iñtërnâtiônàlizætiøn"

// Sequence yields "<prefix> <n>" names with n counting up from a start value.
// It is safe for concurrent use.
type Sequence struct {
	prefix string

	mu   sync.Mutex
	next int
}

// PrefixedCounter returns a Sequence whose first name is "<prefix> <start>".
func PrefixedCounter(prefix string, start int) *Sequence {
	return &Sequence{prefix: prefix, next: start}
}

// Next returns the next name in the sequence.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("%s %d", s.prefix, s.next)
	s.next++
	return name
}

// Take returns the next n names.
func (s *Sequence) Take(n int) []string {
	names := make([]string, 0, n)
	for range n {
		names = append(names, s.Next())
	}
	return names
}

// MethodName returns the last segment of a dotted or slash-separated test
// identifier, e.g. "TestWorksheet/update_cell" becomes "update_cell".
func MethodName(testID string) string {
	if i := strings.LastIndexAny(testID, "./"); i >= 0 {
		return testID[i+1:]
	}
	return testID
}

// TemporarySpreadsheetTitle names the spreadsheet a test suite works in.
func TemporarySpreadsheetTitle(suiteName string) string {
	return "Test " + suiteName
}

// TestNamer is the part of testing.TB that SequenceFor needs.
type TestNamer interface {
	Name() string
}

// SequenceFor returns a counter prefixed with the running test's own name.
func SequenceFor(t TestNamer) *Sequence {
	return PrefixedCounter(MethodName(t.Name()), 1)
}

// UniqueTitle appends a short random suffix to prefix, for runs against the
// live API where titles from earlier runs may still exist.
func UniqueTitle(prefix string) string {
	return prefix + " " + uuid.NewString()[:8]
}
