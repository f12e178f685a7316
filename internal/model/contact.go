package model

type ContactStatus string

const (
	ContactStatusNew     ContactStatus = "new"
	ContactStatusReplied ContactStatus = "replied"
)

// ContactQuery is a message submitted through the public contact form.
type ContactQuery struct {
	Base
	FullName     string        `db:"full_name" json:"full_name"`
	Email        string        `db:"email" json:"email"`
	Phone        *string       `db:"phone" json:"phone,omitempty"`
	Message      string        `db:"message" json:"message"`
	ReplyMessage *string       `db:"reply_message" json:"reply_message,omitempty"`
	Status       ContactStatus `db:"status" json:"status"`
}

type CreateContactQueryRequest struct {
	FullName string  `json:"full_name" binding:"required,max=100"`
	Email    string  `json:"email" binding:"required,email"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	Message  string  `json:"message" binding:"required"`
}

type ReplyContactQueryRequest struct {
	ReplyMessage string `json:"reply_message" binding:"required"`
}
