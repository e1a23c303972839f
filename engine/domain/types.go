// Package domain defines the core social-media graph entities and the
// validation gate at pipeline entry points.
package domain

import "time"

// User is a social-media account node.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	Followers      int64     `json:"followers"`
	AccountCreated time.Time `json:"account_created"`
	Verified       bool      `json:"verified"`
	Location       string    `json:"location,omitempty"`
}

// Post is a social-media post node.
type Post struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Likes        int64     `json:"likes"`
	Shares       int64     `json:"shares"`
	Comments     int64     `json:"comments"`
	Platform     string    `json:"platform"`
	Timestamp    time.Time `json:"timestamp"`
	AuthorID     string    `json:"author_id"`
	Tags         []string  `json:"tags,omitempty"`
	SharedPostID string    `json:"shared_post_id,omitempty"`
	FactCheckID  string    `json:"fact_check_id,omitempty"`
}

// FactCheck is a fact-check verdict node attached to a post.
type FactCheck struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // True, False, Misleading, Unverified
	Comments string `json:"comments,omitempty"`
}

// Relationship kinds in the graph. SHARED is directed User to Post: the
// user who authored a re-share points at the original post.
const (
	RelCreated    = "CREATED"     // (User)-[:CREATED]->(Post)
	RelVerifiedBy = "VERIFIED_BY" // (Post)-[:VERIFIED_BY]->(FactCheck)
	RelShared     = "SHARED"      // (User)-[:SHARED]->(Post)
)
