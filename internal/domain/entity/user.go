// Package entity 定义领域实体
package entity

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User 身份存储中的用户
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string     `json:"username" gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string     `json:"-" gorm:"not null"`
	Role         Role       `json:"role" gorm:"size:32;not null;default:employee"`
	Department   Department `json:"department" gorm:"size:32;not null;default:general"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// NewUser 创建新用户，默认员工角色与 general 部门
func NewUser(username string) *User {
	now := time.Now()
	return &User{
		Username:   username,
		Role:       RoleEmployee,
		Department: DepartmentGeneral,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsAdmin 检查用户是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal 转换为请求主体
func (u *User) Principal() Principal {
	return Principal{
		UserID:     u.ID,
		Username:   u.Username,
		Role:       u.Role,
		Department: u.Department,
	}
}

// SetPassword 设置并散列密码
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword 校验密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
