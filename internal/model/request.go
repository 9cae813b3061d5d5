package model

type RegisterRequest struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullname"`
}

// LoginRequest accepts the identifier under any of its historical names.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Handle     string `json:"handle"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

func (r LoginRequest) LoginIdentifier() string {
	for _, candidate := range []string{r.Identifier, r.Email, r.Handle, r.Username} {
		if candidate != "" {
			return candidate
		}
	}

	return ""
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ChangePasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type ProfileUpdateRequest struct {
	FullName *string `json:"fullname"`
	Handle   *string `json:"handle"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	Avatar   *string `json:"avatar"`
}

type CreateUserRequest struct {
	FullName string `json:"fullname"`
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type UpdateUserRequest struct {
	FullName *string `json:"fullname"`
	Handle   *string `json:"handle"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	Avatar   *string `json:"avatar"`
}

type UserStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

type RoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	IsActive    *bool    `json:"isActive"`
}

type PermissionRequest struct {
	Name        string `json:"name"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Description string `json:"description"`
	IsActive    *bool  `json:"isActive"`
}

type CreateOrderRequest struct {
	Items         []OrderItem `json:"items"`
	Address       string      `json:"address"`
	Phone         string      `json:"phone"`
	PaymentMethod string      `json:"paymentMethod"`
}
