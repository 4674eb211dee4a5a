package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	sessionCookie = "pancy_session"
	stateCookie   = "pancy_oauth_state"
	stateTTL      = 10 * time.Minute
	guildCacheTTL = 30 * time.Second

	sessionKey = "session"
	guildKey   = "guild"
)

var errLoginDisabled = errors.New("el login con Discord no está configurado")

// DiscordEndpoint is the OAuth2 endpoint of Discord
var DiscordEndpoint = oauth2.Endpoint{
	AuthURL:   "https://discord.com/oauth2/authorize",
	TokenURL:  "https://discord.com/api/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Identity is the Discord OAuth2 API used by the dashboard login
type Identity interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (accessToken string, err error)
	User(ctx context.Context, accessToken string) (*discordgo.User, error)
	Guilds(ctx context.Context, accessToken string) ([]*discordgo.UserGuild, error)
}

// DiscordOAuth implements Identity with golang.org/x/oauth2 and a Bearer discordgo session
type DiscordOAuth struct {
	config *oauth2.Config
}

// NewDiscordOAuth creates the login flow of the Discord application clientID
func NewDiscordOAuth(clientID, clientSecret, redirectURL string) *DiscordOAuth {
	return &DiscordOAuth{config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"identify", "guilds"},
		Endpoint:     DiscordEndpoint,
	}}
}

func (d *DiscordOAuth) AuthURL(state string) string {
	return d.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "none"))
}

func (d *DiscordOAuth) Exchange(ctx context.Context, code string) (string, error) {
	token, err := d.config.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (d *DiscordOAuth) bearer(accessToken string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bearer " + accessToken)
	if err != nil {
		return nil, err
	}
	s.StateEnabled = false
	return s, nil
}

func (d *DiscordOAuth) User(ctx context.Context, accessToken string) (*discordgo.User, error) {
	s, err := d.bearer(accessToken)
	if err != nil {
		return nil, err
	}
	return s.User("@me", discordgo.WithContext(ctx))
}

func (d *DiscordOAuth) Guilds(ctx context.Context, accessToken string) ([]*discordgo.UserGuild, error) {
	s, err := d.bearer(accessToken)
	if err != nil {
		return nil, err
	}
	return s.UserGuilds(200, "", "", false, discordgo.WithContext(ctx))
}

// CanManage reports whether the user may configure g from the dashboard
func CanManage(g *discordgo.UserGuild) bool {
	return g.Owner || g.Permissions&(discordgo.PermissionManageGuild|discordgo.PermissionAdministrator) != 0
}

// isSnowflake reports whether id looks like a Discord ID
func isSnowflake(id string) bool {
	if len(id) < 15 || len(id) > 21 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// guildCache keeps the guild list of a session for a short time so every
// dashboard request does not hit the Discord API
type guildCache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]guildCacheEntry
}

type guildCacheEntry struct {
	guilds  []*discordgo.UserGuild
	expires time.Time
}

func newGuildCache(ttl time.Duration) *guildCache {
	return &guildCache{ttl: ttl, entries: make(map[string]guildCacheEntry)}
}

func (gc *guildCache) get(token string, now time.Time) ([]*discordgo.UserGuild, bool) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	entry, ok := gc.entries[token]
	if !ok || now.After(entry.expires) {
		delete(gc.entries, token)
		return nil, false
	}
	return entry.guilds, true
}

func (gc *guildCache) set(token string, guilds []*discordgo.UserGuild, now time.Time) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.entries[token] = guildCacheEntry{guilds: guilds, expires: now.Add(gc.ttl)}
}

func (gc *guildCache) drop(token string) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	delete(gc.entries, token)
}

func (s *Server) userGuilds(ctx context.Context, session *models.Session) ([]*discordgo.UserGuild, error) {
	if s.deps.Identity == nil {
		return nil, errLoginDisabled
	}
	now := s.now()
	if guilds, ok := s.guilds.get(session.Token, now); ok {
		return guilds, nil
	}
	guilds, err := s.deps.Identity.Guilds(ctx, session.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("listar servidores de %s: %w", session.UserID, err)
	}
	s.guilds.set(session.Token, guilds, now)
	return guilds, nil
}

func sessionToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	token, _ := c.Cookie(sessionCookie)
	return token
}

// requireSession loads the dashboard session from the cookie or the Bearer header
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			fail(c, http.StatusUnauthorized, "No has iniciado sesión")
			return
		}

		session, err := s.deps.Store.GetSession(c.Request.Context(), token)
		if errors.Is(err, database.ErrNotFound) {
			fail(c, http.StatusUnauthorized, "Sesión inválida")
			return
		}
		if err != nil {
			failErr(c, err)
			return
		}
		if session.Expired(s.now()) {
			_ = s.deps.Store.DeleteSession(c.Request.Context(), token)
			fail(c, http.StatusUnauthorized, "La sesión ha expirado")
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// requireGuild checks that the session user manages :guildId and that the bot is in it
func (s *Server) requireGuild() gin.HandlerFunc {
	return func(c *gin.Context) {
		guildID := c.Param("guildId")
		if !isSnowflake(guildID) {
			fail(c, http.StatusBadRequest, "guildId inválido")
			return
		}

		guilds, err := s.userGuilds(c.Request.Context(), currentSession(c))
		if err != nil {
			failErr(c, err)
			return
		}

		allowed := false
		for _, g := range guilds {
			if g.ID == guildID {
				allowed = CanManage(g)
				break
			}
		}
		if !allowed {
			fail(c, http.StatusForbidden, "No tienes permiso para administrar este servidor")
			return
		}

		guild := s.deps.Guilds(guildID)
		if guild == nil {
			fail(c, http.StatusBadRequest, "El bot no está en este servidor")
			return
		}

		c.Set(guildKey, guild)
		c.Next()
	}
}

func currentSession(c *gin.Context) *models.Session {
	return c.MustGet(sessionKey).(*models.Session)
}

func (s *Server) secureCookies() bool {
	return strings.HasPrefix(s.opts.BaseURL, "https://")
}

// loginHandler redirects to the Discord consent screen
func (s *Server) loginHandler(c *gin.Context) {
	if s.deps.Identity == nil {
		fail(c, http.StatusServiceUnavailable, errLoginDisabled.Error())
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int(stateTTL.Seconds()), "/api/auth", "", s.secureCookies(), true)
	c.Redirect(http.StatusFound, s.deps.Identity.AuthURL(state))
}

// callbackHandler exchanges the code and opens a dashboard session
func (s *Server) callbackHandler(c *gin.Context) {
	if s.deps.Identity == nil {
		fail(c, http.StatusServiceUnavailable, errLoginDisabled.Error())
		return
	}
	state, _ := c.Cookie(stateCookie)
	if state == "" || c.Query("state") != state {
		fail(c, http.StatusBadRequest, "Estado OAuth inválido")
		return
	}
	code := c.Query("code")
	if code == "" {
		fail(c, http.StatusBadRequest, "Falta el código de autorización")
		return
	}

	ctx := c.Request.Context()
	accessToken, err := s.deps.Identity.Exchange(ctx, code)
	if err != nil {
		logger.Warn("Fallo el intercambio OAuth: "+err.Error(), "WebServer")
		fail(c, http.StatusUnauthorized, "No se pudo iniciar sesión con Discord")
		return
	}
	user, err := s.deps.Identity.User(ctx, accessToken)
	if err != nil {
		logger.Warn("No se pudo leer el usuario OAuth: "+err.Error(), "WebServer")
		fail(c, http.StatusUnauthorized, "No se pudo iniciar sesión con Discord")
		return
	}

	session := &models.Session{
		Token:       uuid.NewString(),
		UserID:      user.ID,
		Username:    user.Username,
		Avatar:      user.Avatar,
		AccessToken: accessToken,
		ExpiresAt:   s.now().Add(s.opts.SessionTTL),
	}
	if err := s.deps.Store.SaveSession(ctx, session); err != nil {
		failErr(c, err)
		return
	}
	logger.Info(fmt.Sprintf("Sesión iniciada en el dashboard: %s (%s)", user.Username, user.ID), "WebServer")

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, "", -1, "/api/auth", "", s.secureCookies(), true)
	c.SetCookie(sessionCookie, session.Token, int(s.opts.SessionTTL.Seconds()), "/", "", s.secureCookies(), true)
	c.Redirect(http.StatusFound, s.opts.BaseURL+"/")
}

func (s *Server) logoutHandler(c *gin.Context) {
	session := currentSession(c)
	if err := s.deps.Store.DeleteSession(c.Request.Context(), session.Token); err != nil && !errors.Is(err, database.ErrNotFound) {
		failErr(c, err)
		return
	}
	s.guilds.drop(session.Token)
	c.SetCookie(sessionCookie, "", -1, "/", "", s.secureCookies(), true)
	ok(c, http.StatusOK, gin.H{"loggedOut": true})
}

func (s *Server) meHandler(c *gin.Context) {
	ok(c, http.StatusOK, currentSession(c))
}

// ManagedGuild is a guild listed on the dashboard
type ManagedGuild struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	BotPresent bool   `json:"botPresent"`
}

func (s *Server) guildsHandler(c *gin.Context) {
	guilds, err := s.userGuilds(c.Request.Context(), currentSession(c))
	if err != nil {
		failErr(c, err)
		return
	}

	managed := make([]ManagedGuild, 0, len(guilds))
	for _, g := range guilds {
		if !CanManage(g) {
			continue
		}
		managed = append(managed, ManagedGuild{
			ID:         g.ID,
			Name:       g.Name,
			Icon:       g.Icon,
			BotPresent: s.deps.Guilds(g.ID) != nil,
		})
	}
	ok(c, http.StatusOK, managed)
}
