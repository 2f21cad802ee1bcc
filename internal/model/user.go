package model

// 用户角色
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

// User 用户信息
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	GroupID   *int   `json:"group_id,omitempty"`
	GroupName string `json:"group_name,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// IsSuperAdmin 是否为超级管理员
func (u *User) IsSuperAdmin() bool {
	return u != nil && u.Role == RoleSuperAdmin
}

// IsAdmin 是否为管理员（包括超级管理员）
func (u *User) IsAdmin() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleSuperAdmin)
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// UserList 用户列表
type UserList struct {
	Users   []*User `json:"users"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
}

// UserCreateRequest 创建用户
type UserCreateRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role" binding:"omitempty,oneof=super_admin admin user"`
	GroupID  int    `json:"group_id" binding:"required"`
}

// UserUpdateRequest 更新用户，只提交非空字段
type UserUpdateRequest struct {
	Username *string `json:"username,omitempty" binding:"omitempty,min=3"`
	Email    *string `json:"email,omitempty"`
	Role     *string `json:"role,omitempty" binding:"omitempty,oneof=super_admin admin user"`
	GroupID  *int    `json:"group_id,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// PasswordResetRequest 重置密码
type PasswordResetRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=6"`
}
