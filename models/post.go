package models

import "time"

// Post is an ingested content record tracked for retention. The ingestion
// pipeline that populates these rows is external; this system only ages
// them out and extends their retention.
type Post struct {
	PostID        int        `gorm:"primaryKey;column:post_id" json:"post_id"`
	WPPostID      *int       `gorm:"column:wp_post_id" json:"wp_post_id,omitempty"`
	Title         string     `gorm:"column:title" json:"title"`
	Author        *string    `gorm:"column:author" json:"author,omitempty"`
	PublishedAt   time.Time  `gorm:"column:published_at" json:"published_at"`
	RetentionDays int        `gorm:"column:retention_days" json:"retention_days"`
	ExpiresAt     time.Time  `gorm:"column:expires_at" json:"expires_at"`
	CreateAt      time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt      time.Time  `gorm:"column:update_at" json:"update_at"`
	DeleteAt      *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// TableName specifies the table name for Post.
func (Post) TableName() string {
	return "posts"
}
