package pyworker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInstallPlan(t *testing.T) {
	t.Run("aliases are rewritten and noted", func(t *testing.T) {
		plan := buildInstallPlan([]string{"bs4"})
		assert.Empty(t, plan.install) // beautifulsoup4 is prebuilt
		assert.Contains(t, plan.notes[0], "bs4 -> beautifulsoup4")
	})

	t.Run("incompatible packages are never attempted", func(t *testing.T) {
		plan := buildInstallPlan([]string{"psycopg2", "requests"})
		assert.Equal(t, []string{"requests"}, plan.install)
		assert.Contains(t, plan.notes[0], "skipped psycopg2")
	})

	t.Run("duplicates collapse after alias resolution", func(t *testing.T) {
		plan := buildInstallPlan([]string{"requests", "Requests", "requests"})
		assert.Equal(t, []string{"requests"}, plan.install)
	})

	t.Run("unrecognized names are noted, not installed", func(t *testing.T) {
		plan := buildInstallPlan([]string{"not a package!"})
		assert.Empty(t, plan.install)
		assert.Contains(t, plan.notes[0], "unrecognized")
	})
}
