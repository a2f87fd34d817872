package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateTextsMD5(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", CalculateTextsMD5("hello"))
	assert.NotEqual(t, CalculateTextsMD5("ab", "c"), CalculateTextsMD5("a", "bc"), "分段不同结果应不同")
	assert.Equal(t, CalculateTextsMD5("a", "b"), CalculateTextsMD5("a", "b"))
}

func TestConvertArrayToJSON(t *testing.T) {
	assert.Equal(t, "[]", string(ConvertArrayToJSON(nil)))
	assert.Equal(t, `["python","aws"]`, string(ConvertArrayToJSON([]string{"python", "aws"})))
}

func TestTimePtr(t *testing.T) {
	assert.Nil(t, TimePtr(time.Time{}))
	now := time.Now()
	assert.Equal(t, now, *TimePtr(now))
}
