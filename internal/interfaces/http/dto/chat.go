package dto

import (
	"rbac-rag-api/internal/application/qa"
)

// ChatRequest 问答请求
type ChatRequest struct {
	Query string `json:"query" binding:"max=4000"`
}

// SourceDTO 答案来源
type SourceDTO struct {
	SourceFile string `json:"source_file"`
	Department string `json:"department"`
	ChunkIndex int64  `json:"chunk_index"`
}

// ChatResponse 问答响应；outcome 为 denied / no_evidence / answer
type ChatResponse struct {
	Outcome           string      `json:"outcome"`
	Message           string      `json:"message"`
	Sources           []SourceDTO `json:"sources"`
	DeniedDepartments []string    `json:"denied_departments,omitempty"`
}

// ToChatResponse 转换查询结果
func ToChatResponse(r *qa.Result) *ChatResponse {
	sources := make([]SourceDTO, 0, len(r.Sources))
	for _, s := range r.Sources {
		sources = append(sources, SourceDTO{SourceFile: s.SourceFile, Department: string(s.Department), ChunkIndex: s.ChunkIndex})
	}
	return &ChatResponse{
		Outcome:           string(r.Outcome),
		Message:           r.Message,
		Sources:           sources,
		DeniedDepartments: departmentStrings(r.DeniedDepartments),
	}
}
