package retrieval

import "errors"

var (
	// ErrRetrievalUnavailable 表示向量化或索引调用失败/超时，不返回部分或未过滤结果。
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrEmptyQuery 查询为空
	ErrEmptyQuery = errors.New("query is empty")
)
