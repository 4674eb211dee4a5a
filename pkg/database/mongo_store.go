package database

import (
	"context"
	"errors"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB
type MongoStore struct {
	db                *Database
	levelConfigs      *DataManager[models.LevelConfig]
	onboardingConfigs *DataManager[models.OnboardingConfig]
	sessions          *DataManager[models.Session]
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore wraps a connected Database
func NewMongoStore(db *Database) *MongoStore {
	return &MongoStore{
		db:                db,
		levelConfigs:      NewDataManager[models.LevelConfig](CollectionLevelConfigs, db),
		onboardingConfigs: NewDataManager[models.OnboardingConfig](CollectionOnboardingConfigs, db),
		sessions:          NewDataManager[models.Session](CollectionSessions, db, DataManagerOptions{MaxCacheSize: 500}),
	}
}

func (s *MongoStore) col(name string) (*mongo.Collection, error) {
	if !s.db.Connected() {
		return nil, ErrNotConnected
	}
	col := s.db.GetCollection(name)
	if col == nil {
		return nil, ErrNotConnected
	}
	return col, nil
}

// Status returns the connection status line shown by /utils status
func (s *MongoStore) Status(ctx context.Context) (string, bool) {
	return s.db.GetStatus()
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	return s.db.Disconnect()
}

// ===== Level config =====

func (s *MongoStore) GetLevelConfig(ctx context.Context, guildID string) (*models.LevelConfig, error) {
	cfg, err := s.levelConfigs.Get(ctx, bson.M{"guildId": guildID})
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotFound
	}
	out := *cfg
	out.Normalize()
	return &out, nil
}

func (s *MongoStore) SaveLevelConfig(ctx context.Context, cfg *models.LevelConfig) error {
	cfg.Normalize()
	_, err := s.levelConfigs.Set(ctx, bson.M{"guildId": cfg.GuildID}, cfg)
	return err
}

func (s *MongoStore) ListLevelConfigs(ctx context.Context) ([]*models.LevelConfig, error) {
	configs, err := s.levelConfigs.GetAll(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	for _, cfg := range configs {
		cfg.Normalize()
	}
	return configs, nil
}

func (s *MongoStore) ListLevelRoles(ctx context.Context, guildID string) ([]models.LevelRole, error) {
	col, err := s.col(CollectionLevelRoles)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "xpRequired", Value: 1}, {Key: "order", Value: 1}, {Key: "roleId", Value: 1}})
	cursor, err := col.Find(ctx, bson.M{"guildId": guildID}, opts)
	if err != nil {
		return nil, err
	}
	roles := make([]models.LevelRole, 0)
	if err := cursor.All(ctx, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *MongoStore) SaveLevelRole(ctx context.Context, role *models.LevelRole) error {
	col, err := s.col(CollectionLevelRoles)
	if err != nil {
		return err
	}
	_, err = col.UpdateOne(ctx,
		bson.M{"guildId": role.GuildID, "roleId": role.RoleID},
		bson.M{"$set": role},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) DeleteLevelRole(ctx context.Context, guildID, roleID string) error {
	col, err := s.col(CollectionLevelRoles)
	if err != nil {
		return err
	}
	res, err := col.DeleteOne(ctx, bson.M{"guildId": guildID, "roleId": roleID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ===== Ledger =====

func memberFilter(guildID, userID string) bson.M {
	return bson.M{"guildId": guildID, "userId": userID}
}

func (s *MongoStore) GetMember(ctx context.Context, guildID, userID string) (*models.MemberXp, error) {
	col, err := s.col(CollectionMemberXp)
	if err != nil {
		return nil, err
	}
	var member models.MemberXp
	if err := col.FindOne(ctx, memberFilter(guildID, userID)).Decode(&member); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (s *MongoStore) GetOrCreateMember(ctx context.Context, guildID, userID string) (MemberResult, error) {
	col, err := s.col(CollectionMemberXp)
	if err != nil {
		return MemberResult{}, err
	}

	fresh := models.MemberXp{GuildID: guildID, UserID: userID}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)

	var existing models.MemberXp
	err = col.FindOneAndUpdate(ctx, memberFilter(guildID, userID), bson.M{"$setOnInsert": fresh}, opts).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return MemberResult{Member: &fresh, Created: true}, nil
	}
	if err != nil {
		return MemberResult{}, err
	}
	return MemberResult{Member: &existing}, nil
}

// AddXp uses an update pipeline so the read and the clamped write happen in one statement
func (s *MongoStore) AddXp(ctx context.Context, guildID, userID string, delta int) (LedgerUpdate, error) {
	col, err := s.col(CollectionMemberXp)
	if err != nil {
		return LedgerUpdate{}, err
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "totalXp", Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$add", Value: bson.A{
					bson.D{{Key: "$ifNull", Value: bson.A{"$totalXp", 0}}},
					delta,
				}}},
			}}}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)

	var before models.MemberXp
	err = col.FindOneAndUpdate(ctx, memberFilter(guildID, userID), update, opts).Decode(&before)
	created := false
	if errors.Is(err, mongo.ErrNoDocuments) {
		created = true
		before = models.MemberXp{GuildID: guildID, UserID: userID}
	} else if err != nil {
		return LedgerUpdate{}, err
	}

	after := before
	after.TotalXp = ClampXp(before.TotalXp, delta)
	return LedgerUpdate{Member: &after, OldXp: before.TotalXp, NewXp: after.TotalXp, Created: created}, nil
}

func (s *MongoStore) SetCurrentRole(ctx context.Context, guildID, userID, roleID string) error {
	col, err := s.col(CollectionMemberXp)
	if err != nil {
		return err
	}
	_, err = col.UpdateOne(ctx, memberFilter(guildID, userID), bson.M{"$set": bson.M{"currentRoleId": roleID}})
	return err
}

func (s *MongoStore) SaveRateCounters(ctx context.Context, member *models.MemberXp) error {
	col, err := s.col(CollectionMemberXp)
	if err != nil {
		return err
	}
	_, err = col.UpdateOne(ctx, memberFilter(member.GuildID, member.UserID), bson.M{"$set": bson.M{
		"hourlyXp":      member.HourlyXp,
		"dailyXp":       member.DailyXp,
		"lastHourReset": member.LastHourReset,
		"lastDayReset":  member.LastDayReset,
		"lastMessageAt": member.LastMessageAt,
	}}, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) IncrementHelperCount(ctx context.Context, guildID, userID string, delta int) error {
	col, err := s.col(CollectionMemberXp)
	if err != nil {
		return err
	}
	_, err = col.UpdateOne(ctx, memberFilter(guildID, userID),
		bson.M{"$inc": bson.M{"monthlyHelperCount": delta}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) findMembers(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.MemberXp, error) {
	col, err := s.col(CollectionMemberXp)
	if err != nil {
		return nil, err
	}
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	members := make([]models.MemberXp, 0)
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *MongoStore) TopMembers(ctx context.Context, guildID string, limit, offset int) ([]models.MemberXp, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "totalXp", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return s.findMembers(ctx, bson.M{"guildId": guildID}, opts)
}

func (s *MongoStore) TopHelpers(ctx context.Context, guildID string, limit int) ([]models.MemberXp, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "monthlyHelperCount", Value: -1}}).
		SetLimit(int64(limit))
	return s.findMembers(ctx, bson.M{"guildId": guildID, "monthlyHelperCount": bson.M{"$gt": 0}}, opts)
}

func (s *MongoStore) ResetHelperCounts(ctx context.Context, guildID string) error {
	col, err := s.col(CollectionMemberXp)
	if err != nil {
		return err
	}
	_, err = col.UpdateMany(ctx, bson.M{"guildId": guildID}, bson.M{"$set": bson.M{"monthlyHelperCount": 0}})
	return err
}

func (s *MongoStore) MemberRank(ctx context.Context, guildID, userID string) (int, error) {
	member, err := s.GetMember(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	col, err := s.col(CollectionMemberXp)
	if err != nil {
		return 0, err
	}
	ahead, err := col.CountDocuments(ctx, bson.M{"guildId": guildID, "totalXp": bson.M{"$gt": member.TotalXp}})
	if err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

// ===== Onboarding =====

func (s *MongoStore) GetOnboardingConfig(ctx context.Context, guildID string) (*models.OnboardingConfig, error) {
	cfg, err := s.onboardingConfigs.Get(ctx, bson.M{"guildId": guildID})
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotFound
	}
	out := *cfg
	if out.JoinRoleIDs == nil {
		out.JoinRoleIDs = []string{}
	}
	return &out, nil
}

func (s *MongoStore) SaveOnboardingConfig(ctx context.Context, cfg *models.OnboardingConfig) error {
	_, err := s.onboardingConfigs.Set(ctx, bson.M{"guildId": cfg.GuildID}, cfg)
	return err
}

func (s *MongoStore) ListOnboardingMessages(ctx context.Context, guildID string) ([]models.OnboardingMessage, error) {
	col, err := s.col(CollectionOnboardingMessages)
	if err != nil {
		return nil, err
	}
	cursor, err := col.Find(ctx, bson.M{"guildId": guildID}, options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, err
	}
	messages := make([]models.OnboardingMessage, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MongoStore) ReplaceOnboardingMessages(ctx context.Context, guildID string, messages []models.OnboardingMessage) error {
	col, err := s.col(CollectionOnboardingMessages)
	if err != nil {
		return err
	}
	if _, err := col.DeleteMany(ctx, bson.M{"guildId": guildID}); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(messages))
	for i := range messages {
		messages[i].GuildID = guildID
		docs = append(docs, messages[i])
	}
	_, err = col.InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) SaveOnboardingThread(ctx context.Context, thread *models.OnboardingThread) error {
	col, err := s.col(CollectionOnboardingThreads)
	if err != nil {
		return err
	}
	_, err = col.ReplaceOne(ctx, bson.M{"_id": thread.ThreadID}, thread, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) ListExpiredOnboardingThreads(ctx context.Context, before int64) ([]models.OnboardingThread, error) {
	col, err := s.col(CollectionOnboardingThreads)
	if err != nil {
		return nil, err
	}
	cursor, err := col.Find(ctx, bson.M{"deleteAt": bson.M{"$lte": time.UnixMilli(before)}})
	if err != nil {
		return nil, err
	}
	threads := make([]models.OnboardingThread, 0)
	if err := cursor.All(ctx, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

func (s *MongoStore) DeleteOnboardingThread(ctx context.Context, threadID string) error {
	col, err := s.col(CollectionOnboardingThreads)
	if err != nil {
		return err
	}
	_, err = col.DeleteOne(ctx, bson.M{"_id": threadID})
	return err
}

// ===== Saved embeds =====

func (s *MongoStore) ListEmbeds(ctx context.Context, guildID string) ([]models.SavedEmbed, error) {
	col, err := s.col(CollectionSavedEmbeds)
	if err != nil {
		return nil, err
	}
	cursor, err := col.Find(ctx, bson.M{"guildId": guildID}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	embeds := make([]models.SavedEmbed, 0)
	if err := cursor.All(ctx, &embeds); err != nil {
		return nil, err
	}
	return embeds, nil
}

func (s *MongoStore) GetEmbed(ctx context.Context, guildID, id string) (*models.SavedEmbed, error) {
	col, err := s.col(CollectionSavedEmbeds)
	if err != nil {
		return nil, err
	}
	var embed models.SavedEmbed
	if err := col.FindOne(ctx, bson.M{"_id": id, "guildId": guildID}).Decode(&embed); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &embed, nil
}

func (s *MongoStore) SaveEmbed(ctx context.Context, embed *models.SavedEmbed) error {
	col, err := s.col(CollectionSavedEmbeds)
	if err != nil {
		return err
	}
	_, err = col.ReplaceOne(ctx, bson.M{"_id": embed.ID}, embed, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) DeleteEmbed(ctx context.Context, guildID, id string) error {
	col, err := s.col(CollectionSavedEmbeds)
	if err != nil {
		return err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": id, "guildId": guildID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ===== Sessions =====

func (s *MongoStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	session, err := s.sessions.Get(ctx, bson.M{"_id": token})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotFound
	}
	return session, nil
}

func (s *MongoStore) SaveSession(ctx context.Context, session *models.Session) error {
	_, err := s.sessions.Set(ctx, bson.M{"_id": session.Token}, session)
	return err
}

func (s *MongoStore) DeleteSession(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, bson.M{"_id": token})
}
