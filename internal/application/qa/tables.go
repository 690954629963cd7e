package qa

import (
	"rbac-rag-api/internal/application/intent"
	"rbac-rag-api/internal/application/rbac"
	"rbac-rag-api/internal/config"
	apperrors "rbac-rag-api/pkg/errors"
)

// LoadTables 从配置构建并校验权限表与关键词表；任一张表非法则整体失败
//
// 错误为 CodeInvalidPolicy，并保留 rbac.ErrInvalidPolicy / intent.ErrInvalidKeywords 以便 errors.Is 判断。
func LoadTables(cfg config.AccessConfig) (*Tables, error) {
	policy, err := rbac.PolicyFromConfig(cfg)
	if err != nil {
		return nil, apperrors.ErrInvalidPolicy.WithError(err)
	}
	classifier, err := intent.FromConfig(cfg.Keywords)
	if err != nil {
		return nil, apperrors.ErrInvalidPolicy.WithError(err)
	}
	return &Tables{Policy: policy, Classifier: classifier}, nil
}
