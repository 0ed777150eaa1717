package domain

import "github.com/google/uuid"

// Aggregate identifiers are opaque 128-bit values rendered as UUID
// strings. They are never parsed for meaning outside the binary record
// codec, which needs the raw 16 bytes.
type (
	UserID         string
	PostID         string
	RelationshipID string
)

func NewUserID() UserID                 { return UserID(uuid.NewString()) }
func NewPostID() PostID                 { return PostID(uuid.NewString()) }
func NewRelationshipID() RelationshipID { return RelationshipID(uuid.NewString()) }

func (id UserID) String() string         { return string(id) }
func (id PostID) String() string         { return string(id) }
func (id RelationshipID) String() string { return string(id) }
