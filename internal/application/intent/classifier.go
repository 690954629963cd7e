// Package intent 根据关键词表推断查询涉及的部门
//
// 这是启发式判断，用于提前给出可解释的拒绝，不构成安全边界。
package intent

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"rbac-rag-api/internal/domain/entity"
)

// ErrInvalidKeywords 关键词表不合法（启动期配置错误）
var ErrInvalidKeywords = errors.New("invalid department keyword table")

// Intent 查询意图
type Intent struct {
	// Departments 命中的部门（固定顺序），为空表示未分类
	Departments []entity.Department
	// Matches 各部门命中的关键词
	Matches map[entity.Department][]string
}

// IsUnclassified 是否未命中任何部门
func (i Intent) IsUnclassified() bool {
	return len(i.Departments) == 0
}

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

// Classifier 关键词意图分类器，构建后只读
type Classifier struct {
	patterns map[entity.Department][]keywordPattern
}

// DefaultKeywords 内置部门关键词表
func DefaultKeywords() map[string][]string {
	return map[string][]string{
		"finance": {
			"revenue", "expense", "budget", "financial", "income", "profit", "audit",
			"cash flow", "balance sheet", "tax", "quarterly report", "earnings",
		},
		"marketing": {
			"campaign", "acquisition", "customer", "brand", "market", "advertising", "sales pipeline",
			"lead generation", "promotional", "digital marketing", "media spend", "target audience", "social media",
		},
		"hr": {
			"employee", "hr", "human resources", "policy", "onboarding", "leave", "benefits",
			"recruitment", "training", "payroll", "workforce",
		},
		"engineering": {
			"architecture", "microservices", "development", "tech stack", "deployment", "software",
			"product roadmap", "system design", "code", "infrastructure", "backend", "frontend",
		},
	}
}

// FromConfig 从配置构建分类器；配置为空时使用内置关键词表
func FromConfig(keywords map[string][]string) (*Classifier, error) {
	if len(keywords) == 0 {
		return NewClassifier(DefaultKeywords())
	}
	return NewClassifier(keywords)
}

// NewClassifier 校验关键词表并编译匹配规则
//
// 关键词不区分大小写，必须从词首开始匹配（允许词尾变化，如 revenue 命中 revenues），
// 多词关键词之间允许任意空白。
func NewClassifier(table map[string][]string) (*Classifier, error) {
	var problems []string
	patterns := make(map[entity.Department][]keywordPattern, len(table))

	for name, keywords := range table {
		dept, ok := entity.ParseDepartment(name)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown department %q", name))
			continue
		}
		for _, raw := range keywords {
			kw := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
			if kw == "" {
				problems = append(problems, fmt.Sprintf("department %q has a blank keyword", dept))
				continue
			}
			patterns[dept] = append(patterns[dept], keywordPattern{keyword: kw, re: compileKeyword(kw)})
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("%w: %s", ErrInvalidKeywords, strings.Join(problems, "; "))
	}
	return &Classifier{patterns: patterns}, nil
}

func compileKeyword(kw string) *regexp.Regexp {
	words := strings.Fields(kw)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`))
}

// Classify 推断查询涉及的部门，可能命中零个、一个或多个
func (c *Classifier) Classify(query string) Intent {
	out := Intent{Matches: map[entity.Department][]string{}}
	if c == nil || strings.TrimSpace(query) == "" {
		return out
	}

	for dept, patterns := range c.patterns {
		for _, p := range patterns {
			if p.re.MatchString(query) {
				out.Matches[dept] = append(out.Matches[dept], p.keyword)
			}
		}
		if len(out.Matches[dept]) > 0 {
			out.Departments = append(out.Departments, dept)
		}
	}
	entity.SortDepartments(out.Departments)
	return out
}

// Keywords 返回部门的关键词（副本）
func (c *Classifier) Keywords(d entity.Department) []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.patterns[d]))
	for _, p := range c.patterns[d] {
		out = append(out, p.keyword)
	}
	return out
}
