// Package graph provides the Neo4j store for the social-media fact-check graph.
package graph

import (
	"time"

	"github.com/PulseGraphAI/pulsegraph-mvp/engine/domain"
)

// UserToMap converts a User to node properties.
func UserToMap(u domain.User) map[string]any {
	return map[string]any{
		"id":              u.ID,
		"name":            u.Name,
		"username":        u.Username,
		"email":           u.Email,
		"followers":       u.Followers,
		"account_created": u.AccountCreated,
		"verified":        u.Verified,
		"location":        u.Location,
	}
}

// UserFromProps constructs a User from node properties.
func UserFromProps(props map[string]any) domain.User {
	return domain.User{
		ID:             strProp(props, "id"),
		Name:           strProp(props, "name"),
		Username:       strProp(props, "username"),
		Email:          strProp(props, "email"),
		Followers:      intProp(props, "followers"),
		AccountCreated: timeProp(props, "account_created"),
		Verified:       boolProp(props, "verified"),
		Location:       strProp(props, "location"),
	}
}

// PostToMap converts a Post to node properties. Relationship-bearing fields
// (author, shared post, fact check) are kept as plain properties too so the
// loader can derive edges from already-merged nodes.
func PostToMap(p domain.Post) map[string]any {
	m := map[string]any{
		"id":        p.ID,
		"content":   p.Content,
		"likes":     p.Likes,
		"shares":    p.Shares,
		"comments":  p.Comments,
		"platform":  p.Platform,
		"timestamp": p.Timestamp,
		"author_id": p.AuthorID,
	}
	if len(p.Tags) > 0 {
		m["tags"] = p.Tags
	}
	if p.SharedPostID != "" {
		m["shared_post_id"] = p.SharedPostID
	}
	if p.FactCheckID != "" {
		m["fact_check_id"] = p.FactCheckID
	}
	return m
}

// PostFromProps constructs a Post from node properties.
func PostFromProps(props map[string]any) domain.Post {
	p := domain.Post{
		ID:           strProp(props, "id"),
		Content:      strProp(props, "content"),
		Likes:        intProp(props, "likes"),
		Shares:       intProp(props, "shares"),
		Comments:     intProp(props, "comments"),
		Platform:     strProp(props, "platform"),
		Timestamp:    timeProp(props, "timestamp"),
		AuthorID:     strProp(props, "author_id"),
		SharedPostID: strProp(props, "shared_post_id"),
		FactCheckID:  strProp(props, "fact_check_id"),
	}
	if raw, ok := props["tags"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				p.Tags = append(p.Tags, s)
			}
		}
	}
	return p
}

// FactCheckToMap converts a FactCheck to node properties.
func FactCheckToMap(f domain.FactCheck) map[string]any {
	return map[string]any{
		"id":       f.ID,
		"status":   f.Status,
		"comments": f.Comments,
	}
}

// FactCheckFromProps constructs a FactCheck from node properties.
func FactCheckFromProps(props map[string]any) domain.FactCheck {
	return domain.FactCheck{
		ID:       strProp(props, "id"),
		Status:   strProp(props, "status"),
		Comments: strProp(props, "comments"),
	}
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func intProp(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func boolProp(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}

func timeProp(props map[string]any, key string) time.Time {
	if t, ok := props[key].(time.Time); ok {
		return t
	}
	return time.Time{}
}
