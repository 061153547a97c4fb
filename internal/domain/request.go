package domain

import (
	"sort"
	"time"
)

// BookRequest is a crowd-voted request to acquire a book.
// Likes always equals len(LikedBy); use ToggleLike to change either.
type BookRequest struct {
	ID          string    `json:"id"`
	BookID      string    `json:"book_id"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
	Likes       int       `json:"likes"`
	LikedBy     []string  `json:"liked_by"`
}

// HasLiked reports whether userID is in the liking set.
func (r BookRequest) HasLiked(userID string) bool {
	i := sort.SearchStrings(r.LikedBy, userID)
	return i < len(r.LikedBy) && r.LikedBy[i] == userID
}

// ToggleLike removes userID from the liking set if present, adds it otherwise,
// and returns whether the user likes the request afterwards.
func (r *BookRequest) ToggleLike(userID string) bool {
	liked := false
	i := sort.SearchStrings(r.LikedBy, userID)
	if i < len(r.LikedBy) && r.LikedBy[i] == userID {
		r.LikedBy = append(r.LikedBy[:i:i], r.LikedBy[i+1:]...)
	} else {
		r.LikedBy = append(r.LikedBy[:i:i], append([]string{userID}, r.LikedBy[i:]...)...)
		liked = true
	}
	r.Likes = len(r.LikedBy)
	return liked
}

// Clone returns a copy that shares no slice memory with r.
func (r BookRequest) Clone() BookRequest {
	out := r
	out.LikedBy = append([]string(nil), r.LikedBy...)
	return out
}
