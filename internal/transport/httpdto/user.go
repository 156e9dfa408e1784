package httpdto

import "relaychat/internal/domain/user"

// UserSummaryDTO is the public view of a user embedded in other payloads
type UserSummaryDTO struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func FromUser(u user.User) UserSummaryDTO {
	return UserSummaryDTO{
		ID:          u.ID.String(),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// ListUsersResponse is returned by GET /users/search
type ListUsersResponse struct {
	Users []UserSummaryDTO `json:"users"`
	Total int64            `json:"total"`
}
