package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const collectionName = "accounts"

// Connect dials uri and pings the primary before returning.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty mongo uri")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

type AccountStore struct {
	coll *mongo.Collection
}

func NewAccountStore(db *mongo.Database) *AccountStore {
	return &AccountStore{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique email index and the listing index.
func (s *AccountStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("accounts_email_key"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("accounts_created_at_idx"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("accounts_role_idx"),
		},
	})
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Account{}, domain.ErrMissingField("email")
	}
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (domain.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Account{}, domain.ErrMissingField("id")
	}
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *AccountStore) findOne(ctx context.Context, filter bson.M) (domain.Account, error) {
	var d accountDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Account{}, domain.ErrAccountNotFound()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return d.toDomain(), nil
}

func (s *AccountStore) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	a.Email = domain.NormalizeEmail(a.Email)
	if a.ID == "" {
		return domain.Account{}, domain.ErrMissingField("id")
	}
	if a.Email == "" {
		return domain.Account{}, domain.ErrMissingField("email")
	}
	if a.Role == "" {
		a.Role = domain.RoleFree
	}
	a.Version = 1

	if _, err := s.coll.InsertOne(ctx, toDoc(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Account{}, domain.ErrEmailInUse()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return a, nil
}

// Save replaces the document matching {_id, version} and bumps the version.
func (s *AccountStore) Save(ctx context.Context, a domain.Account) (domain.Account, error) {
	a.Email = domain.NormalizeEmail(a.Email)
	if a.ID == "" {
		return domain.Account{}, domain.ErrMissingField("id")
	}

	expected := a.Version
	a.Version = expected + 1

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": a.ID, "version": expected}, toDoc(a))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Account{}, domain.ErrEmailInUse()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": a.ID})
		if err != nil {
			return domain.Account{}, domain.ErrDBUnavailable(err)
		}
		if n == 0 {
			return domain.Account{}, domain.ErrAccountNotFound()
		}
		return domain.Account{}, domain.ErrVersionConflict()
	}
	return a, nil
}

func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	defer cur.Close(ctx)

	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}

	out := make([]domain.Account, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *AccountStore) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	if !domain.IsValidRole(string(role)) {
		return 0, domain.ErrInvalidRole(string(role))
	}
	n, err := s.coll.CountDocuments(ctx, bson.M{"role": string(role)})
	if err != nil {
		return 0, domain.ErrDBUnavailable(err)
	}
	return int(n), nil
}
