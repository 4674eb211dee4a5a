package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
)

// Request topics answered by the bot
const (
	TopicLevelRank = "levels/rank"
	TopicLevelTop  = "levels/top"
)

const (
	requestTimeout = 5 * time.Second
	maxTopLimit    = 50
)

// RankReply is the answer to levels/rank
type RankReply struct {
	GuildID       string `json:"guildId"`
	UserID        string `json:"userId"`
	TotalXp       int    `json:"totalXp"`
	Rank          int    `json:"rank"`
	CurrentRoleID string `json:"currentRoleId"`
}

// RegisterLevelHandlers answers level queries from other services
func (mc *MqttCommunicator) RegisterLevelHandlers(store database.LedgerStore) {
	mc.On(TopicLevelRank, RankHandler(store))
	mc.On(TopicLevelTop, TopHandler(store))
}

func stringField(payload map[string]interface{}, key string) (string, error) {
	v, ok := payload[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("falta el campo %s", key)
	}
	return v, nil
}

// RankHandler answers {guildId, userId} with the member XP and position
func RankHandler(store database.LedgerStore) RequestHandler {
	return func(payload map[string]interface{}) (interface{}, error) {
		guildID, err := stringField(payload, "guildId")
		if err != nil {
			return nil, err
		}
		userID, err := stringField(payload, "userId")
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		member, err := store.GetMember(ctx, guildID, userID)
		if errors.Is(err, database.ErrNotFound) {
			return RankReply{GuildID: guildID, UserID: userID}, nil
		}
		if err != nil {
			return nil, err
		}
		rank, err := store.MemberRank(ctx, guildID, userID)
		if err != nil {
			return nil, err
		}
		return RankReply{
			GuildID:       guildID,
			UserID:        userID,
			TotalXp:       member.TotalXp,
			Rank:          rank,
			CurrentRoleID: member.CurrentRoleID,
		}, nil
	}
}

// TopHandler answers {guildId, limit} with the leaderboard head
func TopHandler(store database.LedgerStore) RequestHandler {
	return func(payload map[string]interface{}) (interface{}, error) {
		guildID, err := stringField(payload, "guildId")
		if err != nil {
			return nil, err
		}
		limit := 10
		// JSON numbers decode as float64
		if v, ok := payload["limit"].(float64); ok && v > 0 {
			limit = int(v)
		}
		if limit > maxTopLimit {
			limit = maxTopLimit
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return store.TopMembers(ctx, guildID, limit, 0)
	}
}
