package models

import "time"

// SavedEmbed is a message composed on the dashboard. Payload holds the JSON array of embeds.
type SavedEmbed struct {
	ID        string    `bson:"_id" json:"id" gorm:"primaryKey"`
	GuildID   string    `bson:"guildId" json:"guildId" gorm:"index"`
	Name      string    `bson:"name" json:"name"`
	ChannelID string    `bson:"channelId" json:"channelId"`
	MessageID string    `bson:"messageId" json:"messageId"`
	Content   string    `bson:"content" json:"content"`
	Payload   string    `bson:"payload" json:"-"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
