package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"vidshare/internal/domain/models"
	"vidshare/internal/storage"
)

type Storage struct {
	client   *mongo.Client
	database *mongo.Database
	accounts *mongo.Collection
}

type accountDoc struct {
	ID           bson.ObjectID `bson:"_id"`
	Username     string        `bson:"username"`
	Email        string        `bson:"email"`
	FullName     string        `bson:"full_name"`
	Avatar       string        `bson:"avatar,omitempty"`
	CoverImage   string        `bson:"cover_image,omitempty"`
	PassHash     []byte        `bson:"pass_hash,omitempty"`
	RefreshToken string        `bson:"refresh_token,omitempty"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

func (d accountDoc) account() models.Account {
	return models.Account{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		Avatar:       d.Avatar,
		CoverImage:   d.CoverImage,
		PassHash:     d.PassHash,
		RefreshToken: d.RefreshToken,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// profileProjection keeps credentials out of read-path documents.
var profileProjection = bson.D{
	{Key: "pass_hash", Value: 0},
	{Key: "refresh_token", Value: 0},
}

// New creates a new MongoDB storage instance and sets up indexes.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	const op = "storage.mongodb.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := client.Database(database)
	s := &Storage{
		client:   client,
		database: db,
		accounts: db.Collection("users"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("%s: indexes: %w", op, err)
	}

	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("users unique indexes: %w", err)
	}

	return nil
}

// Close disconnects from MongoDB.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// SaveAccount inserts a new account and returns it with its generated id.
func (s *Storage) SaveAccount(ctx context.Context, account models.Account) (models.Account, error) {
	const op = "storage.mongodb.SaveAccount"

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := accountDoc{
		ID:         bson.NewObjectID(),
		Username:   account.Username,
		Email:      account.Email,
		FullName:   account.FullName,
		Avatar:     account.Avatar,
		CoverImage: account.CoverImage,
		PassHash:   account.PassHash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := s.accounts.InsertOne(ctx, doc)
	if err != nil {
		if isDuplicateKeyError(err) {
			return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountExists)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return doc.account(), nil
}

// AccountByLogin retrieves the account matching username or email.
func (s *Storage) AccountByLogin(ctx context.Context, username, email string) (models.Account, error) {
	const op = "storage.mongodb.AccountByLogin"

	var or bson.A
	if username != "" {
		or = append(or, bson.D{{Key: "username", Value: username}})
	}
	if email != "" {
		or = append(or, bson.D{{Key: "email", Value: email}})
	}
	if len(or) == 0 {
		return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	var doc accountDoc
	err := s.accounts.FindOne(ctx, bson.D{{Key: "$or", Value: or}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return doc.account(), nil
}

// AccountByID retrieves the full account record, credentials included.
func (s *Storage) AccountByID(ctx context.Context, id string) (models.Account, error) {
	const op = "storage.mongodb.AccountByID"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	var doc accountDoc
	err = s.accounts.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return doc.account(), nil
}

// Profile reads an account without its password digest and refresh token.
func (s *Storage) Profile(ctx context.Context, id string) (models.Profile, error) {
	const op = "storage.mongodb.Profile"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	var doc accountDoc
	opts := options.FindOne().SetProjection(profileProjection)
	err = s.accounts.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return doc.account().Profile(), nil
}

// SetRefreshToken overwrites the active refresh token. An empty token unsets it.
func (s *Storage) SetRefreshToken(ctx context.Context, id, token string) error {
	const op = "storage.mongodb.SetRefreshToken"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "refresh_token", Value: token},
			{Key: "updated_at", Value: time.Now().UTC()},
		}},
	}
	if token == "" {
		update = bson.D{
			{Key: "$unset", Value: bson.D{{Key: "refresh_token", Value: ""}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
		}
	}

	res, err := s.accounts.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	return nil
}

// RotateRefreshToken swaps presented for next in one conditional update, so of
// two concurrent rotations with the same token only one can match.
func (s *Storage) RotateRefreshToken(ctx context.Context, id, presented, next string) error {
	const op = "storage.mongodb.RotateRefreshToken"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}
	if presented == "" {
		return fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenMismatch)
	}

	res, err := s.accounts.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: oid},
			{Key: "refresh_token", Value: presented},
		},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "refresh_token", Value: next},
				{Key: "updated_at", Value: time.Now().UTC()},
			}},
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.accounts.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenMismatch)
}

func (s *Storage) UpdatePassword(ctx context.Context, id string, passHash []byte) error {
	const op = "storage.mongodb.UpdatePassword"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	res, err := s.accounts.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "pass_hash", Value: passHash},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	return nil
}

// UpdateProfile sets the non-empty fields and returns the updated projection.
func (s *Storage) UpdateProfile(ctx context.Context, id, fullName, email string) (models.Profile, error) {
	const op = "storage.mongodb.UpdateProfile"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if fullName != "" {
		set = append(set, bson.E{Key: "full_name", Value: fullName})
	}
	if email != "" {
		set = append(set, bson.E{Key: "email", Value: email})
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(profileProjection)

	var doc accountDoc
	err = s.accounts.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
		}
		if isDuplicateKeyError(err) {
			return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrAccountExists)
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return doc.account().Profile(), nil
}

func (s *Storage) DeleteAccount(ctx context.Context, id string) error {
	const op = "storage.mongodb.DeleteAccount"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	res, err := s.accounts.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	return nil
}

// isDuplicateKeyError checks if the error is a MongoDB duplicate key error (code 11000).
func isDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return mongo.IsDuplicateKeyError(err)
}
