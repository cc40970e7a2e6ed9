package domain

// GroupCollection mongo collection of groups
const GroupCollection = "groups"

// Group chat group; membership is managed elsewhere and read at join time
type Group struct {
	ID        string   `bson:"_id" json:"id"`
	Name      string   `bson:"name" json:"name"`
	Avatar    string   `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Creator   string   `bson:"creator" json:"creator"`
	Members   []string `bson:"members" json:"members"`
	CreatedAt int64    `bson:"created_at" json:"createdAt"`
}
