package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// DefaultChunkCollection 文档分块集合
	DefaultChunkCollection = "document_chunks"

	FieldID         = "id"
	FieldDepartment = "department"
	FieldSourceFile = "source_file"
	FieldChunkIndex = "chunk_index"
	FieldText       = "text"
	FieldVector     = "vector"
)

// DocumentChunksSchema 文档分块 Collection Schema
//
// department 为权限过滤字段，每个分块有且仅有一个部门标签。
func DocumentChunksSchema(collection string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: collection,
		Description:    "Department-labelled document chunks for filtered semantic search",
		Fields: []*entity.Field{
			{
				Name:       FieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       FieldDepartment,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:       FieldSourceFile,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:     FieldChunkIndex,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       FieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
			{
				Name:       FieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dim)},
			},
		},
	}
}

func outputFields() []string {
	return []string{FieldID, FieldDepartment, FieldSourceFile, FieldChunkIndex, FieldText}
}
