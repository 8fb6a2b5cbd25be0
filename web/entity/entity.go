// Package entity defines the request and response shapes of the web layer.
package entity

// Msg is the envelope of every JSON response.
type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj"`
}

// LoginForm is posted by the login page.
type LoginForm struct {
	Email    string `form:"email" json:"email" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
	Remember bool   `form:"remember" json:"remember"`
}

// CodeForm carries a six digit TOTP code.
type CodeForm struct {
	Code string `form:"code" json:"code" binding:"required"`
}

type RoleForm struct {
	Role string `form:"role" json:"role" binding:"required"`
}

type CommentForm struct {
	Content string `form:"content" json:"content"`
}

// DeleteFileForm names a staged upload to remove.
type DeleteFileForm struct {
	File string `form:"file" json:"file" binding:"required"`
}
