package protocol

import "strings"

// Classification vocabularies, checked in order. The order is a tie-break
// policy: a message matching both timeout and syntax vocabulary classifies as
// timeout because that check runs first.
var (
	timeoutPhrases = []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"interrupted",
		"execution time limit",
	}
	syntaxPhrases = []string{
		"syntaxerror",
		"syntax error",
		"unexpected token",
		"unexpected end of input",
		"parse error",
		"invalid syntax",
		"unexpected eof",
		"indentationerror",
	}
	securityPhrases = []string{
		"permission denied",
		"permissionerror",
		"forbidden",
		"security",
		"not allowed",
		"access denied",
		"operation not permitted",
	}
)

// ClassifyError maps a raw guest error message to an ErrKind using ordered
// substring heuristics. Anything unrecognized is a runtime error.
func ClassifyError(message string) ErrKind {
	m := strings.ToLower(message)
	for _, p := range timeoutPhrases {
		if strings.Contains(m, p) {
			return ErrTimeout
		}
	}
	for _, p := range syntaxPhrases {
		if strings.Contains(m, p) {
			return ErrSyntax
		}
	}
	for _, p := range securityPhrases {
		if strings.Contains(m, p) {
			return ErrSecurity
		}
	}
	return ErrRuntime
}
