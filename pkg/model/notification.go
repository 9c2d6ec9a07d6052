package model

import "time"

// NotificationType classifies a notification.
type NotificationType string

// notification types
const (
	NotificationAlert   NotificationType = "alert"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
)

// Notification is a message addressed to a single user.
type Notification struct {
	ID        string           `json:"id,omitempty" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	DeviceID  string           `json:"device_id" db:"device_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// UserRole is the role of a registered user.
type UserRole string

// user roles
const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// UserProfile is a registered dashboard user.
type UserProfile struct {
	ID       string   `json:"id" db:"id"`
	Email    string   `json:"email" db:"email"`
	FullName string   `json:"full_name" db:"full_name"`
	Role     UserRole `json:"role" db:"role"`
}
