package answer

import (
	"fmt"
	"strings"

	"rbac-rag-api/internal/application/retrieval"
	"rbac-rag-api/internal/domain/entity"
)

// Source 答案引用的来源，精确到文件内的分块序号
type Source struct {
	SourceFile string            `json:"source_file"`
	Department entity.Department `json:"department"`
	ChunkIndex int64             `json:"chunk_index"`
}

// groundingContext 实际注入 Prompt 的证据块及其来源
type groundingContext struct {
	text    string
	sources []Source
}

// buildGroundingContext 选取前 maxChunks 条证据，按总字数预算均分截断
//
// 返回的来源只来自被写入 Prompt 的证据，按首次出现顺序去重。
func buildGroundingContext(evidence []retrieval.Evidence, maxChunks, maxRunes int) groundingContext {
	if maxChunks <= 0 {
		maxChunks = 5
	}
	if maxRunes <= 0 {
		maxRunes = 6000
	}

	picked := make([]retrieval.Evidence, 0, maxChunks)
	for _, ev := range evidence {
		if len(picked) == maxChunks {
			break
		}
		if strings.TrimSpace(ev.Text) == "" {
			continue
		}
		picked = append(picked, ev)
	}
	if len(picked) == 0 {
		return groundingContext{}
	}

	perChunk := maxRunes / len(picked)
	blocks := make([]string, 0, len(picked))
	sources := make([]Source, 0, len(picked))
	seen := make(map[Source]struct{}, len(picked))

	for i, ev := range picked {
		src := Source{SourceFile: sourceID(ev), Department: ev.Department, ChunkIndex: ev.ChunkIndex}
		txt := truncateRunes(compactOneLine(ev.Text), perChunk)
		if txt == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Document chunk %d (source_file: %s, chunk_index: %d, department: %s):\n%s",
			i+1, src.SourceFile, src.ChunkIndex, src.Department.DisplayName(), txt))

		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}

	return groundingContext{text: strings.Join(blocks, "\n\n"), sources: sources}
}

func sourceID(ev retrieval.Evidence) string {
	if s := strings.TrimSpace(ev.SourceFile); s != "" {
		return s
	}
	return ev.ChunkID
}

func formatSources(sources []Source) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, fmt.Sprintf("%s#%d (%s)", s.SourceFile, s.ChunkIndex, s.Department.DisplayName()))
	}
	return strings.Join(parts, "; ")
}

func compactOneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}
