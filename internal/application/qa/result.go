package qa

import (
	"rbac-rag-api/internal/application/answer"
	"rbac-rag-api/internal/application/intent"
	"rbac-rag-api/internal/application/rbac"
	"rbac-rag-api/internal/domain/entity"
)

// Outcome 一次查询的终态
type Outcome string

const (
	OutcomeDenied     Outcome = "denied"
	OutcomeNoEvidence Outcome = "no_evidence"
	OutcomeAnswer     Outcome = "answer"
)

// Result 查询结果，Outcome 决定哪些字段有效
type Result struct {
	Outcome Outcome
	// Message 拒绝原因 / 固定无证据回复 / 生成的答案
	Message string
	// Sources 仅 answer 时非空
	Sources []answer.Source
	// DeniedDepartments 仅 denied 时非空
	DeniedDepartments []entity.Department
	// Intent 分类器命中的部门
	Intent []entity.Department
}

func denied(in intent.Intent, d rbac.Decision) *Result {
	return &Result{
		Outcome:           OutcomeDenied,
		Message:           d.Reason,
		Sources:           []answer.Source{},
		DeniedDepartments: d.Denied,
		Intent:            in.Departments,
	}
}

func noEvidence(in intent.Intent) *Result {
	return &Result{
		Outcome: OutcomeNoEvidence,
		Message: answer.NoEvidenceMessage,
		Sources: []answer.Source{},
		Intent:  in.Departments,
	}
}
