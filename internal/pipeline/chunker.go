package pipeline

// SplitText 将长文本按指定大小和重叠切分成有序的分块序列。
// 每个分块是 runes[i : i+chunkSize]，步长为 chunkSize-chunkOverlap，
// 相邻分块共享恰好 chunkOverlap 个字符，避免一条事实被边界完全切断；
// 最后一个分块可以更短。空文本返回空序列，不是错误。
func SplitText(text string, chunkSize int, chunkOverlap int) []string {
	if chunkSize <= chunkOverlap {
		// 重叠配置不合法时退化为不重叠切分，避免死循环
		return simpleSplit(text, chunkSize)
	}

	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := chunkSize - chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func simpleSplit(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
