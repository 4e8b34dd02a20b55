package jsvm

import "regexp"

// resultVar is the sentinel global the rewritten program assigns its result
// to. The interpreter has no module system, so the conventional
// `export default <expr>` form is rewritten into a plain assignment.
const resultVar = "__runbox_result__"

var exportDefaultRe = regexp.MustCompile(`(?m)^\s*export\s+default\s+`)

// rewrite prepares guest source so that evaluating it yields a result value.
//
// A top-level `export default` statement becomes an assignment to the
// sentinel result variable. Code without that convention is wrapped in an
// immediately-invoked function so a trailing `return` still produces a
// value. In both cases the completion value of the returned program is the
// guest result.
func rewrite(code string) string {
	if exportDefaultRe.MatchString(code) {
		rewritten := exportDefaultRe.ReplaceAllString(code, resultVar+" = ")
		return "var " + resultVar + ";\n" + rewritten + "\n;" + resultVar + ";"
	}
	return "(function() {\n" + code + "\n})();"
}
