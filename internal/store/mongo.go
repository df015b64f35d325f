package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const defaultMongoDatabase = "wisepal"

// MongoStore keeps users and conversations as documents. Each conversation is a
// single document with its messages embedded.
type MongoStore struct {
	client        *mongo.Client
	users         *mongo.Collection
	conversations *mongo.Collection
}

type mongoUser struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Email          string             `bson:"email"`
	HashedPassword string             `bson:"hashed_password"`
	IsActive       bool               `bson:"is_active"`
	IsVerified     bool               `bson:"is_verified"`
	IsSuperuser    bool               `bson:"is_superuser"`
	CreatedAt      time.Time          `bson:"created_at"`
}

type mongoMessage struct {
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	Timestamp time.Time `bson:"timestamp"`
}

type mongoConversation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id"`
	Messages  []mongoMessage     `bson:"messages"`
	CreatedAt time.Time          `bson:"created_at"`
}

// NewMongoStore connects to uri. When database is empty the name from the URI path
// is used, falling back to "wisepal".
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		cs, err := connstring.ParseAndValidate(uri)
		if err != nil {
			return nil, fmt.Errorf("invalid mongodb uri: %w", err)
		}
		database = cs.Database
	}
	if database == "" {
		database = defaultMongoDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:        client,
		users:         db.Collection("users"),
		conversations: db.Collection("conversations"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create conversations index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func parseMongoUserID(id UserID) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func (d *mongoUser) toUser() *User {
	return &User{
		ID:             UserID(d.ID.Hex()),
		Email:          d.Email,
		HashedPassword: d.HashedPassword,
		IsActive:       d.IsActive,
		IsVerified:     d.IsVerified,
		IsSuperuser:    d.IsSuperuser,
		CreatedAt:      d.CreatedAt,
	}
}

func (s *MongoStore) CreateUser(ctx context.Context, u *User) error {
	u.Email = normalizeEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	doc := mongoUser{
		ID:             primitive.NewObjectID(),
		Email:          u.Email,
		HashedPassword: u.HashedPassword,
		IsActive:       u.IsActive,
		IsVerified:     u.IsVerified,
		IsSuperuser:    u.IsSuperuser,
		CreatedAt:      u.CreatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = UserID(doc.ID.Hex())
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.D) (*User, error) {
	var doc mongoUser
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toUser(), nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: normalizeEmail(email)}})
}

func (s *MongoStore) GetUserByID(ctx context.Context, id UserID) (*User, error) {
	oid, err := parseMongoUserID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *MongoStore) UpdateUser(ctx context.Context, u *User) error {
	oid, err := parseMongoUserID(u.ID)
	if err != nil {
		return err
	}
	u.Email = normalizeEmail(u.Email)

	res, err := s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "email", Value: u.Email},
		{Key: "hashed_password", Value: u.HashedPassword},
		{Key: "is_active", Value: u.IsActive},
		{Key: "is_verified", Value: u.IsVerified},
		{Key: "is_superuser", Value: u.IsSuperuser},
	}}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) CreateConversation(ctx context.Context, c *Conversation) error {
	uid, err := parseMongoUserID(c.UserID)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	doc := mongoConversation{
		ID:        primitive.NewObjectID(),
		UserID:    uid,
		CreatedAt: c.CreatedAt,
		Messages:  make([]mongoMessage, 0, len(c.Messages)),
	}
	for _, m := range c.Messages {
		doc.Messages = append(doc.Messages, mongoMessage{Role: string(m.Role), Content: m.Content, Timestamp: m.Timestamp})
	}

	if _, err := s.conversations.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	c.ID = doc.ID.Hex()
	return nil
}

func (s *MongoStore) ListConversationsByUser(ctx context.Context, userID UserID) ([]Conversation, error) {
	uid, err := parseMongoUserID(userID)
	if err != nil {
		return []Conversation{}, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.conversations.Find(ctx, bson.D{{Key: "user_id", Value: uid}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}

	var docs []mongoConversation
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}

	conversations := make([]Conversation, 0, len(docs))
	for _, d := range docs {
		conv := Conversation{
			ID:        d.ID.Hex(),
			UserID:    UserID(d.UserID.Hex()),
			CreatedAt: d.CreatedAt,
			Messages:  make([]Message, 0, len(d.Messages)),
		}
		for _, m := range d.Messages {
			conv.Messages = append(conv.Messages, Message{Role: Role(m.Role), Content: m.Content, Timestamp: m.Timestamp})
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}
