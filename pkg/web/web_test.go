package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database/sqlstore"
	"github.com/PancyStudios/PancyCommunityGo/pkg/embeds"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/PancyStudios/PancyCommunityGo/pkg/onboarding"
	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	guildID      = "100000000000000001"
	foreignGuild = "100000000000000002"
	botlessGuild = "100000000000000003"
	userID       = "200000000000000001"
	roleA        = "300000000000000001"
	roleB        = "300000000000000002"
	channelID    = "400000000000000001"
	otherChannel = "400000000000000002"
	token        = "session-token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeIdentity struct {
	mu     sync.Mutex
	calls  int
	guilds []*discordgo.UserGuild
}

func (f *fakeIdentity) AuthURL(state string) string {
	return "https://discord.test/authorize?state=" + state
}

func (f *fakeIdentity) Exchange(ctx context.Context, code string) (string, error) {
	if code != "good" {
		return "", errors.New("bad code")
	}
	return "access", nil
}

func (f *fakeIdentity) User(ctx context.Context, accessToken string) (*discordgo.User, error) {
	return &discordgo.User{ID: userID, Username: "pancy"}, nil
}

func (f *fakeIdentity) Guilds(ctx context.Context, accessToken string) ([]*discordgo.UserGuild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.guilds, nil
}

type fakeGuild struct {
	id    string
	mu    sync.Mutex
	calls []string
}

func (g *fakeGuild) ID() string { return g.id }

func (g *fakeGuild) Member(ctx context.Context, userID string) (*discordgo.Member, error) {
	return &discordgo.Member{User: &discordgo.User{ID: userID}}, nil
}

func (g *fakeGuild) AddRole(ctx context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "add:"+roleID)
	return nil
}

func (g *fakeGuild) RemoveRole(ctx context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "remove:"+roleID)
	return nil
}

func (g *fakeGuild) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	return nil
}

func (g *fakeGuild) called() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return strings.Join(g.calls, ",")
}

type fakeChannels struct {
	mu   sync.Mutex
	sent int
}

func (f *fakeChannels) ChannelGuildID(ctx context.Context, id string) (string, error) {
	switch id {
	case channelID:
		return guildID, nil
	case otherChannel:
		return foreignGuild, nil
	}
	return "", errors.New("unknown channel")
}

func (f *fakeChannels) Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	return "500000000000000001", nil
}

func (f *fakeChannels) Edit(ctx context.Context, channelID, messageID string, msg *discordgo.MessageEdit) error {
	return nil
}

type testEnv struct {
	server   *Server
	store    *sqlstore.Store
	guild    *fakeGuild
	identity *fakeIdentity
	channels *fakeChannels
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlstore.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store: store,
		guild: &fakeGuild{id: guildID},
		identity: &fakeIdentity{guilds: []*discordgo.UserGuild{
			{ID: guildID, Name: "Pancy", Permissions: discordgo.PermissionManageGuild},
			{ID: foreignGuild, Name: "Ajeno", Permissions: discordgo.PermissionSendMessages},
			{ID: botlessGuild, Name: "Sin bot", Owner: true},
		}},
		channels: &fakeChannels{},
	}

	engine := leveling.NewEngine(store, leveling.Options{})
	env.server = NewServer(Dependencies{
		Store:      store,
		Engine:     engine,
		Onboarding: onboarding.NewService(store, nil),
		Embeds:     embeds.NewService(store, env.channels),
		Guilds: func(id string) leveling.Guild {
			if id == guildID || id == foreignGuild {
				return env.guild
			}
			return nil
		},
		Identity: env.identity,
	}, Options{BaseURL: "http://localhost:3000"})
	engine.AddPublisher(env.server.Live())

	if err := store.SaveSession(context.Background(), &models.Session{
		Token:       token,
		UserID:      userID,
		Username:    "pancy",
		AccessToken: "access",
		ExpiresAt:   time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	return env
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.server.Engine().ServeHTTP(w, req)

	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: invalid envelope %q: %v", method, path, w.Body.String(), err)
	}
	if resp.Success != (w.Code < 400) {
		t.Errorf("%s %s: success=%v with status %d", method, path, resp.Success, w.Code)
	}
	return w.Code, resp
}

func decodeData(t *testing.T, resp envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", resp.Data, err)
	}
}

func guildPath(suffix string) string {
	return "/api/guilds/" + guildID + suffix
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	if code, _ := env.do(t, http.MethodGet, "/api/health", nil); code != http.StatusOK {
		t.Errorf("health = %d", code)
	}
	code, resp := env.do(t, http.MethodGet, "/api/nope", nil)
	if code != http.StatusNotFound || resp.Error == "" {
		t.Errorf("unknown route = %d %+v", code, resp)
	}
}

func TestSessionRequired(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()
	env.server.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no session = %d, want 401", w.Code)
	}

	_ = env.store.SaveSession(context.Background(), &models.Session{Token: "old", UserID: userID, ExpiresAt: time.Now().Add(-time.Minute)})
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "old"})
	w = httptest.NewRecorder()
	env.server.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expired session = %d, want 401", w.Code)
	}
	if _, err := env.store.GetSession(context.Background(), "old"); err == nil {
		t.Error("expired session should be deleted")
	}

	code, resp := env.do(t, http.MethodGet, "/api/me", nil)
	var me models.Session
	decodeData(t, resp, &me)
	if code != http.StatusOK || me.Username != "pancy" || me.AccessToken != "" {
		t.Errorf("me = %d %+v", code, me)
	}
}

func TestOAuthCallbackCreatesSession(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	w := httptest.NewRecorder()
	env.server.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("login = %d, want 302", w.Code)
	}
	var state string
	for _, c := range w.Result().Cookies() {
		if c.Name == stateCookie {
			state = c.Value
		}
	}
	if state == "" || !strings.HasSuffix(w.Header().Get("Location"), state) {
		t.Fatalf("state cookie %q, location %q", state, w.Header().Get("Location"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=good&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: state})
	w = httptest.NewRecorder()
	env.server.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("forged state = %d, want 400", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=good&state="+state, nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: state})
	w = httptest.NewRecorder()
	env.server.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("callback = %d, want 302", w.Code)
	}
	var sessionToken string
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			sessionToken = c.Value
		}
	}
	session, err := env.store.GetSession(context.Background(), sessionToken)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if session.UserID != userID || session.AccessToken != "access" {
		t.Errorf("session = %+v", session)
	}
}

func TestGuildAccess(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/guilds/abc/level", http.StatusBadRequest},
		{"/api/guilds/" + foreignGuild + "/level", http.StatusForbidden},
		{"/api/guilds/100000000000000009/level", http.StatusForbidden},
		{"/api/guilds/" + botlessGuild + "/level", http.StatusBadRequest},
		{guildPath("/level"), http.StatusOK},
	}
	for _, tt := range tests {
		if code, _ := env.do(t, http.MethodGet, tt.path, nil); code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, code, tt.want)
		}
	}

	code, resp := env.do(t, http.MethodGet, "/api/guilds", nil)
	var guilds []ManagedGuild
	decodeData(t, resp, &guilds)
	if code != http.StatusOK || len(guilds) != 2 {
		t.Fatalf("guilds = %d %+v", code, guilds)
	}
	if !guilds[0].BotPresent || guilds[1].BotPresent {
		t.Errorf("bot presence = %+v", guilds)
	}
	if env.identity.calls != 1 {
		t.Errorf("Discord guild list fetched %d times, want 1 (cached)", env.identity.calls)
	}
}

func TestLevelConfigRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.do(t, http.MethodGet, guildPath("/level"), nil)
	var cfg models.LevelConfig
	decodeData(t, resp, &cfg)
	if cfg.MinXpPerMessage != 15 || cfg.GuildID != guildID {
		t.Fatalf("default config = %+v", cfg)
	}

	cfg.MinXpPerMessage = 5
	cfg.MaxXpPerMessage = 10
	cfg.ChannelWhitelist = []string{channelID}
	cfg.SimilaritySeverity = models.SimilarityStrict
	cfg.GuildID = "ignored"
	if code, resp := env.do(t, http.MethodPut, guildPath("/level"), cfg); code != http.StatusOK {
		t.Fatalf("PUT level = %d %s", code, resp.Error)
	}

	_, resp = env.do(t, http.MethodGet, guildPath("/level"), nil)
	var got models.LevelConfig
	decodeData(t, resp, &got)
	if got.GuildID != guildID || got.MinXpPerMessage != 5 || got.MaxXpPerMessage != 10 ||
		got.SimilaritySeverity != models.SimilarityStrict || len(got.ChannelWhitelist) != 1 {
		t.Errorf("round trip = %+v", got)
	}

	got.MinXpPerMessage = 50
	if code, _ := env.do(t, http.MethodPut, guildPath("/level"), got); code != http.StatusBadRequest {
		t.Errorf("min > max = %d, want 400", code)
	}
}

func TestLevelRoles(t *testing.T) {
	env := newTestEnv(t)

	if code, resp := env.do(t, http.MethodPost, guildPath("/level/roles"), gin.H{"roleId": roleA, "xpRequired": 100}); code != http.StatusCreated {
		t.Fatalf("create = %d %s", code, resp.Error)
	}
	if code, _ := env.do(t, http.MethodPost, guildPath("/level/roles"), gin.H{"roleId": roleB, "xpRequired": 100}); code != http.StatusBadRequest {
		t.Errorf("duplicate threshold = %d, want 400", code)
	}
	if code, _ := env.do(t, http.MethodPost, guildPath("/level/roles"), gin.H{"roleId": roleA, "xpRequired": 300}); code != http.StatusBadRequest {
		t.Errorf("duplicate role = %d, want 400", code)
	}
	if code, _ := env.do(t, http.MethodPost, guildPath("/level/roles"), gin.H{"roleId": "x", "xpRequired": 5}); code != http.StatusBadRequest {
		t.Errorf("invalid role id = %d, want 400", code)
	}
	if code, _ := env.do(t, http.MethodPost, guildPath("/level/roles"), gin.H{"roleId": roleB, "xpRequired": 50}); code != http.StatusCreated {
		t.Fatalf("create second = %d", code)
	}

	if code, _ := env.do(t, http.MethodPut, guildPath("/level/roles/"+roleB), gin.H{"xpRequired": 100}); code != http.StatusBadRequest {
		t.Errorf("update onto used threshold = %d, want 400", code)
	}
	if code, _ := env.do(t, http.MethodPut, guildPath("/level/roles/"+roleB), gin.H{"xpRequired": 500}); code != http.StatusOK {
		t.Errorf("update = %d", code)
	}

	_, resp := env.do(t, http.MethodGet, guildPath("/level/roles"), nil)
	var roles []models.LevelRole
	decodeData(t, resp, &roles)
	if len(roles) != 2 || roles[0].RoleID != roleA || roles[1].XpRequired != 500 {
		t.Errorf("roles = %+v", roles)
	}

	if code, _ := env.do(t, http.MethodDelete, guildPath("/level/roles/"+roleA), nil); code != http.StatusOK {
		t.Errorf("delete = %d", code)
	}
	if code, _ := env.do(t, http.MethodDelete, guildPath("/level/roles/"+roleA), nil); code != http.StatusNotFound {
		t.Errorf("delete twice = %d, want 404", code)
	}
	if code, _ := env.do(t, http.MethodPut, guildPath("/level/roles/"+roleA), gin.H{"xpRequired": 1}); code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", code)
	}
}

func TestAdjustMemberXp(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, guildPath("/level/roles"), gin.H{"roleId": roleA, "xpRequired": 100})

	if code, _ := env.do(t, http.MethodGet, guildPath("/leaderboard/"+userID), nil); code != http.StatusNotFound {
		t.Errorf("unknown member = %d, want 404", code)
	}
	if code, _ := env.do(t, http.MethodPatch, guildPath("/leaderboard/"+userID), gin.H{"amount": 0}); code != http.StatusBadRequest {
		t.Errorf("zero amount = %d, want 400", code)
	}

	code, resp := env.do(t, http.MethodPatch, guildPath("/leaderboard/"+userID), gin.H{"amount": 150})
	var up AdjustResult
	decodeData(t, resp, &up)
	if code != http.StatusOK || up.OldXp != 0 || up.NewXp != 150 || !up.RoleChanged || up.Change != "promotion" {
		t.Fatalf("promotion = %d %+v", code, up)
	}

	_, resp = env.do(t, http.MethodGet, guildPath("/leaderboard/"+userID), nil)
	var entry LeaderboardEntry
	decodeData(t, resp, &entry)
	if entry.Rank != 1 || entry.TotalXp != 150 || entry.CurrentRoleID != roleA {
		t.Errorf("member = %+v", entry)
	}

	_, resp = env.do(t, http.MethodPatch, guildPath("/leaderboard/"+userID), gin.H{"amount": -500})
	var down AdjustResult
	decodeData(t, resp, &down)
	if down.NewXp != 0 || down.Change != "loss" {
		t.Errorf("clamped loss = %+v", down)
	}
	if got := env.guild.called(); got != "add:"+roleA+",remove:"+roleA {
		t.Errorf("role calls = %s", got)
	}

	_, resp = env.do(t, http.MethodGet, guildPath("/leaderboard?limit=500"), nil)
	var page struct {
		Limit   int                `json:"limit"`
		Members []LeaderboardEntry `json:"members"`
	}
	decodeData(t, resp, &page)
	if page.Limit != maxPageSize || len(page.Members) != 1 || page.Members[0].Rank != 1 {
		t.Errorf("leaderboard = %+v", page)
	}
}

func TestLeaderboardRejectsHugePage(t *testing.T) {
	env := newTestEnv(t)

	for _, page := range []string{"9223372036854775807", "10001"} {
		if code, _ := env.do(t, http.MethodGet, guildPath("/leaderboard?limit=100&page="+page), nil); code != http.StatusBadRequest {
			t.Errorf("page=%s = %d, want 400", page, code)
		}
	}
	if code, _ := env.do(t, http.MethodGet, guildPath("/leaderboard?page=10000"), nil); code != http.StatusOK {
		t.Errorf("last allowed page = %d, want 200", code)
	}
}

func TestForceMonthlyHelper(t *testing.T) {
	env := newTestEnv(t)

	if code, _ := env.do(t, http.MethodPost, guildPath("/level/monthly-helper"), nil); code != http.StatusBadRequest {
		t.Errorf("disabled feature = %d, want 400", code)
	}

	cfg := models.DefaultLevelConfig(guildID)
	cfg.MonthlyHelper.Enabled = true
	cfg.MonthlyHelper.ChannelID = channelID
	env.do(t, http.MethodPut, guildPath("/level"), cfg)

	code, resp := env.do(t, http.MethodPost, guildPath("/level/monthly-helper"), nil)
	var mh models.MonthlyHelperSettings
	decodeData(t, resp, &mh)
	if code != http.StatusOK || !mh.ForceRun {
		t.Fatalf("force = %d %+v", code, mh)
	}

	// a later settings save must not cancel the pending run
	env.do(t, http.MethodPut, guildPath("/level"), cfg)
	stored, err := env.store.GetLevelConfig(context.Background(), guildID)
	if err != nil {
		t.Fatalf("GetLevelConfig: %v", err)
	}
	if !stored.MonthlyHelper.ForceRun || !leveling.Due(stored, time.Now()) {
		t.Errorf("stored monthly helper = %+v, want a due forced run", stored.MonthlyHelper)
	}
}

func TestOnboardingRoutes(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.do(t, http.MethodGet, guildPath("/onboarding"), nil)
	var cfg models.OnboardingConfig
	decodeData(t, resp, &cfg)
	if cfg.Enabled || cfg.RetentionDays != 7 {
		t.Errorf("default onboarding = %+v", cfg)
	}

	cfg.Enabled = true
	if code, _ := env.do(t, http.MethodPut, guildPath("/onboarding"), cfg); code != http.StatusBadRequest {
		t.Errorf("enabled without channel = %d, want 400", code)
	}
	cfg.ChannelID = channelID
	cfg.RetentionDays = 1
	if code, resp := env.do(t, http.MethodPut, guildPath("/onboarding"), cfg); code != http.StatusOK {
		t.Errorf("PUT onboarding = %d %s", code, resp.Error)
	}

	messages := []models.OnboardingMessage{
		{Content: "¡Hola {user}!"},
		{EmbedTitle: "Roles", RoleMenu: &models.RoleMenu{MaxValues: 1, Options: []models.RoleOption{{RoleID: roleA, Label: "Go"}}}},
	}
	code, resp := env.do(t, http.MethodPut, guildPath("/onboarding/messages"), messages)
	if code != http.StatusOK {
		t.Fatalf("PUT messages = %d %s", code, resp.Error)
	}

	_, resp = env.do(t, http.MethodGet, guildPath("/onboarding/messages"), nil)
	var got []models.OnboardingMessage
	decodeData(t, resp, &got)
	if len(got) != 2 || got[0].ID == "" || got[1].Position != 1 || got[1].RoleMenu == nil {
		t.Errorf("messages = %+v", got)
	}

	bad := []models.OnboardingMessage{{RoleMenu: &models.RoleMenu{MaxValues: 3, Options: []models.RoleOption{{RoleID: roleA, Label: "Go"}}}}}
	if code, _ := env.do(t, http.MethodPut, guildPath("/onboarding/messages"), bad); code != http.StatusBadRequest {
		t.Errorf("invalid menu = %d, want 400", code)
	}
	if code, _ := env.do(t, http.MethodPut, guildPath("/onboarding/messages"), []models.OnboardingMessage{{}}); code != http.StatusBadRequest {
		t.Errorf("empty message = %d, want 400", code)
	}
}

func TestEmbedRoutes(t *testing.T) {
	env := newTestEnv(t)

	draft := embeds.Draft{
		Name:   "Reglas",
		Embeds: []*discordgo.MessageEmbed{{Title: "Reglas", Description: "Sé amable"}},
	}
	code, resp := env.do(t, http.MethodPost, guildPath("/embeds"), draft)
	var view embeds.View
	decodeData(t, resp, &view)
	if code != http.StatusCreated || view.ID == "" {
		t.Fatalf("create = %d %+v", code, view)
	}

	if code, _ := env.do(t, http.MethodPost, guildPath("/embeds"), embeds.Draft{Name: "vacío"}); code != http.StatusBadRequest {
		t.Errorf("empty draft = %d, want 400", code)
	}
	if code, _ := env.do(t, http.MethodPost, guildPath("/embeds/"+view.ID+"/send"), nil); code != http.StatusBadRequest {
		t.Errorf("send without channel = %d, want 400", code)
	}
	if code, _ := env.do(t, http.MethodPost, guildPath("/embeds/"+view.ID+"/send"), gin.H{"channelId": otherChannel}); code != http.StatusBadRequest {
		t.Errorf("send to foreign channel = %d, want 400", code)
	}

	code, resp = env.do(t, http.MethodPost, guildPath("/embeds/"+view.ID+"/send"), gin.H{"channelId": channelID})
	var sent embeds.View
	decodeData(t, resp, &sent)
	if code != http.StatusOK || sent.MessageID == "" || sent.ChannelID != channelID {
		t.Errorf("send = %d %+v", code, sent)
	}

	_, resp = env.do(t, http.MethodGet, guildPath("/embeds"), nil)
	var list []embeds.View
	decodeData(t, resp, &list)
	if len(list) != 1 || len(list[0].Embeds) != 1 {
		t.Errorf("list = %+v", list)
	}

	if code, _ := env.do(t, http.MethodDelete, guildPath("/embeds/"+view.ID), nil); code != http.StatusOK {
		t.Errorf("delete = %d", code)
	}
	if code, _ := env.do(t, http.MethodGet, guildPath("/embeds/"+view.ID), nil); code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", code)
	}
}

func TestLiveFeed(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Engine())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + guildPath("/live")
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + token}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.server.Live().Subscribers(guildID) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	env.do(t, http.MethodPatch, guildPath("/leaderboard/"+userID), gin.H{"amount": 40})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event leveling.XpEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.GuildID != guildID || event.UserID != userID || event.NewXp != 40 || event.Source != leveling.SourceDashboard {
		t.Errorf("event = %+v", event)
	}
}

func TestLiveHubFiltersByGuild(t *testing.T) {
	hub := NewLiveHub()
	a, _ := hub.subscribe(guildID)
	b, _ := hub.subscribe(foreignGuild)

	hub.PublishXpEvent(leveling.XpEvent{GuildID: guildID, NewXp: 1})

	if len(a.events) != 1 || len(b.events) != 0 {
		t.Errorf("delivered a=%d b=%d, want 1 and 0", len(a.events), len(b.events))
	}

	for i := 0; i < liveBuffer*2; i++ {
		hub.PublishXpEvent(leveling.XpEvent{GuildID: guildID})
	}
	if len(a.events) != liveBuffer {
		t.Errorf("buffer = %d, want %d", len(a.events), liveBuffer)
	}

	hub.unsubscribe(a)
	if hub.Subscribers(guildID) != 0 {
		t.Error("unsubscribe should remove the client")
	}
	hub.Close()
	if _, open := hub.subscribe(guildID); open {
		t.Error("closed hub accepted a subscriber")
	}
	select {
	case <-b.done:
	default:
		t.Error("Close should disconnect remaining clients")
	}
}
