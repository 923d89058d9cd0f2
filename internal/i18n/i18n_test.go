package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslations(t *testing.T) {
	require.NoError(t, Initialize("en"))

	assert.Equal(t, []string{"en", "ro"}, GetSupportedLanguages())
	assert.Equal(t, "This download link has expired", T("en", KeyDownloadExpired))
	assert.Equal(t, "Acest link de descărcare a expirat", T("ro", KeyDownloadExpired))
	assert.Equal(t, "Invalid order ID", T("en", KeyInvalidIdentifier, "order"))
}

func TestFallbacks(t *testing.T) {
	require.NoError(t, Initialize("en"))

	assert.Equal(t, "Order not found", T("de", KeyOrderNotFound))
	assert.Equal(t, "missing.key", T("ro", "missing.key"))
	assert.True(t, IsSupported("ro"))
	assert.False(t, IsSupported("de"))
}

func TestLocalesDefineTheSameKeys(t *testing.T) {
	require.NoError(t, Initialize("en"))

	en := instance.translations["en"]
	ro := instance.translations["ro"]
	for key := range en {
		_, ok := ro[key]
		assert.True(t, ok, "ro locale is missing %q", key)
	}
	assert.Len(t, ro, len(en))
}
