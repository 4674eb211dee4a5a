package mqtt

import (
	"context"
	"errors"
	"testing"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database/sqlstore"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for user, xp := range map[string]int{"a": 300, "b": 100, "c": 200} {
		if _, err := store.AddXp(ctx, "g1", user, xp); err != nil {
			t.Fatalf("AddXp: %v", err)
		}
	}
	return store
}

func TestHandleRequest(t *testing.T) {
	echo := func(payload map[string]interface{}) (interface{}, error) {
		return payload["_topic"], nil
	}

	resp, ok := handleRequest("levels/rank", []byte(`{"correlationId":"c1","payload":{"guildId":"g1"}}`), echo)
	if !ok || resp.CorrelationID != "c1" || resp.Data != "levels/rank" || resp.Error != "" {
		t.Errorf("response = %+v ok=%v", resp, ok)
	}

	failing := func(map[string]interface{}) (interface{}, error) { return nil, errors.New("boom") }
	resp, ok = handleRequest("levels/rank", []byte(`{"correlationId":"c2"}`), failing)
	if !ok || resp.Error != "boom" || resp.Data != nil {
		t.Errorf("error response = %+v", resp)
	}

	if _, ok := handleRequest("levels/rank", []byte(`not json`), echo); ok {
		t.Error("invalid requests must not be answered")
	}
	if _, ok := handleRequest("levels/rank", []byte(`{"payload":{}}`), echo); ok {
		t.Error("requests without correlation id must not be answered")
	}
}

func TestRankHandler(t *testing.T) {
	handler := RankHandler(newTestStore(t))

	got, err := handler(map[string]interface{}{"guildId": "g1", "userId": "c"})
	if err != nil {
		t.Fatalf("RankHandler: %v", err)
	}
	reply := got.(RankReply)
	if reply.TotalXp != 200 || reply.Rank != 2 {
		t.Errorf("reply = %+v, want 200 XP at #2", reply)
	}

	got, err = handler(map[string]interface{}{"guildId": "g1", "userId": "nobody"})
	if err != nil || got.(RankReply).Rank != 0 {
		t.Errorf("unknown member = %+v, %v", got, err)
	}

	if _, err := handler(map[string]interface{}{"guildId": "g1"}); err == nil {
		t.Error("missing userId should fail")
	}
}

func TestTopHandler(t *testing.T) {
	handler := TopHandler(newTestStore(t))

	got, err := handler(map[string]interface{}{"guildId": "g1", "limit": float64(2)})
	if err != nil {
		t.Fatalf("TopHandler: %v", err)
	}
	members := got.([]models.MemberXp)
	if len(members) != 2 || members[0].UserID != "a" || members[1].UserID != "c" {
		t.Errorf("top = %+v", members)
	}
}

func TestXpEventTopic(t *testing.T) {
	if got := XpEventTopic("g1"); got != "pancycommunity/events/xp/g1" {
		t.Errorf("XpEventTopic = %s", got)
	}
}
