package vector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateForLocalShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "short text", truncateForLocal("short text"))
}

func TestTruncateForLocalLongTextTrimmed(t *testing.T) {
	long := strings.Repeat("a", LocalTextTruncateChars+100)
	truncated := truncateForLocal(long)
	assert.Len(t, truncated, LocalTextTruncateChars)
}

func TestJitteredLocalDelayWithinBounds(t *testing.T) {
	for i := 0; i < 20; i++ {
		d := jitteredLocalDelay()
		assert.GreaterOrEqual(t, d, LocalRequestMinDelay)
		assert.LessOrEqual(t, d, LocalRequestMaxDelay)
	}
}
