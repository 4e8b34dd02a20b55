package jsvm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewrite(t *testing.T) {
	t.Run("export default becomes sentinel assignment", func(t *testing.T) {
		out := rewrite(`export default {a: 1}`)
		assert.NotContains(t, out, "export default")
		assert.Contains(t, out, resultVar+" = {a: 1}")
		assert.True(t, strings.HasSuffix(out, resultVar+";"))
	})

	t.Run("indented export default is still rewritten", func(t *testing.T) {
		out := rewrite("const x = 1;\n  export default x;")
		assert.NotContains(t, out, "export default")
	})

	t.Run("plain code is wrapped in an IIFE", func(t *testing.T) {
		out := rewrite(`return 42;`)
		assert.True(t, strings.HasPrefix(out, "(function() {"))
		assert.True(t, strings.HasSuffix(out, "})();"))
	})

	t.Run("export default mid-expression is left alone", func(t *testing.T) {
		code := `const s = "export default nothing"; return s;`
		out := rewrite(code)
		assert.Contains(t, out, code)
	})
}
