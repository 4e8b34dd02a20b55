package pypkg_test

import (
	"testing"

	"github.com/codename-co/runbox/internal/pypkg"
	"github.com/stretchr/testify/assert"
)

func TestResolveAlias(t *testing.T) {
	t.Run("import name maps to distribution name", func(t *testing.T) {
		assert.Equal(t, "opencv-python", pypkg.ResolveAlias("cv2"))
		assert.Equal(t, "scikit-learn", pypkg.ResolveAlias("sklearn"))
		assert.Equal(t, "beautifulsoup4", pypkg.ResolveAlias("bs4"))
	})

	t.Run("exact case match wins over lowercase", func(t *testing.T) {
		assert.Equal(t, "pillow", pypkg.ResolveAlias("PIL"))
		assert.Equal(t, "pycryptodome", pypkg.ResolveAlias("Crypto"))
	})

	t.Run("unmapped names lowercase", func(t *testing.T) {
		assert.Equal(t, "requests", pypkg.ResolveAlias("Requests"))
		assert.Equal(t, "flask", pypkg.ResolveAlias(" Flask "))
	})
}

func TestClassify(t *testing.T) {
	t.Run("alias and canonical classify identically", func(t *testing.T) {
		assert.Equal(t, pypkg.Classify("opencv-python"), pypkg.Classify("cv2"))
		assert.Equal(t, pypkg.Prebuilt, pypkg.Classify("cv2"))
	})

	t.Run("prebuilt", func(t *testing.T) {
		assert.Equal(t, pypkg.Prebuilt, pypkg.Classify("numpy"))
		assert.Equal(t, pypkg.Prebuilt, pypkg.Classify("Pandas"))
	})

	t.Run("incompatible", func(t *testing.T) {
		assert.Equal(t, pypkg.Incompatible, pypkg.Classify("psycopg2"))
		assert.Equal(t, pypkg.Incompatible, pypkg.Classify("torch"))
		assert.Equal(t, pypkg.Incompatible, pypkg.Classify("selenium"))
		assert.NotEmpty(t, pypkg.IncompatibleReason("tensorflow"))
	})

	t.Run("pure python falls through to installable", func(t *testing.T) {
		assert.Equal(t, pypkg.Installable, pypkg.Classify("requests"))
		assert.Equal(t, pypkg.Installable, pypkg.Classify("some-unheard-of-lib"))
	})

	t.Run("unrecognizable names are unknown", func(t *testing.T) {
		assert.Equal(t, pypkg.Unknown, pypkg.Classify(""))
		assert.Equal(t, pypkg.Unknown, pypkg.Classify("not a package!!"))
		assert.Equal(t, pypkg.Unknown, pypkg.Classify("-leading-dash"))
	})
}
