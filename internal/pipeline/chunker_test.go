package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildText 生成长度为 n 的确定性文本，便于按位置断言分块边界。
func buildText(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteRune(rune('A' + i%26))
	}
	return sb.String()
}

// TestSplitTextOverlapBoundaries 验证分块的核心约定：
// 5000 字符按 2000/200 切分得到 3 个分块，相邻分块恰好共享 200 个字符。
func TestSplitTextOverlapBoundaries(t *testing.T) {
	text := buildText(5000)

	chunks := SplitText(text, 2000, 200)

	require.Len(t, chunks, 3)
	assert.Equal(t, 2000, len([]rune(chunks[0])))
	assert.Equal(t, 2000, len([]rune(chunks[1])))
	assert.Equal(t, 1400, len([]rune(chunks[2])))

	// 相邻分块的尾部与头部是同一段文本
	first := []rune(chunks[0])
	second := []rune(chunks[1])
	third := []rune(chunks[2])
	assert.Equal(t, string(first[1800:]), string(second[:200]))
	assert.Equal(t, string(second[1800:]), string(third[:200]))

	// 去掉重叠后重新拼接应当还原出原文
	rebuilt := chunks[0] + string(second[200:]) + string(third[200:])
	assert.Equal(t, text, rebuilt)
}

func TestSplitTextEmpty(t *testing.T) {
	assert.Nil(t, SplitText("", 2000, 200))
}

func TestSplitTextShorterThanChunkSize(t *testing.T) {
	chunks := SplitText("short text", 2000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestSplitTextExactChunkSize(t *testing.T) {
	text := buildText(2000)
	chunks := SplitText(text, 2000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

// TestSplitTextRuneBoundaries 验证多字节字符不会被切在字节中间。
func TestSplitTextRuneBoundaries(t *testing.T) {
	text := "产品保修期为两年自购买日起算"

	chunks := SplitText(text, 4, 1)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %q should be valid UTF-8", chunk)
	}
	// 步长 3：相邻分块共享最后一个字
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		curr := []rune(chunks[i])
		assert.Equal(t, prev[len(prev)-1:], curr[:1])
	}
}

// TestSplitTextInvalidOverlap 验证 overlap >= chunkSize 时退化为不重叠切分而不是死循环。
func TestSplitTextInvalidOverlap(t *testing.T) {
	chunks := SplitText("abcdefgh", 3, 3)

	require.Equal(t, []string{"abc", "def", "gh"}, chunks)
}

func TestSplitTextOrderIsDeterministic(t *testing.T) {
	text := buildText(777)
	first := SplitText(text, 100, 20)
	second := SplitText(text, 100, 20)
	assert.Equal(t, first, second)
}
