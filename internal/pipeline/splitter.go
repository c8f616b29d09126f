package pipeline

import "strings"

// Splitter 按字符（rune）将文本切分为固定大小、相互重叠的分块。
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewSplitter 创建一个 Splitter。
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Split 将长文本按指定大小和重叠进行切分。相邻分块中，前一块的最后 overlap 个字符
// 与后一块的前 overlap 个字符相同。空白文本不产生分块。
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" || s.ChunkSize <= 0 {
		return nil
	}
	if s.ChunkSize <= s.ChunkOverlap || s.ChunkOverlap < 0 {
		// overlap 非法时退化为不重叠切分
		return simpleSplit(text, s.ChunkSize)
	}

	var chunks []string
	runes := []rune(text)
	step := s.ChunkSize - s.ChunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + s.ChunkSize
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
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
