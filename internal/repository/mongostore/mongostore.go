// Package mongostore implements repository.Store on MongoDB. Users and places
// live in separate collections; multi-document writes run in a session
// transaction.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"places-backend/internal/models"
	"places-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	placesCollection = "places"
	usersCollection  = "users"
)

// Connect opens a client and verifies it with a ping
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Store implements repository.Store using MongoDB
type Store struct {
	client  *mongo.Client
	places  *mongo.Collection
	users   *mongo.Collection
	session mongo.Session
}

// New creates a store on the named database
func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client: client,
		places: db.Collection(placesCollection),
		users:  db.Collection(usersCollection),
	}
}

// Places returns the place repository
func (s *Store) Places() repository.PlaceRepository {
	return &placeRepo{s: s}
}

// Users returns the user repository
func (s *Store) Users() repository.UserRepository {
	return &userRepo{s: s}
}

// WithTx runs fn inside a session transaction. The callback is not retried
// on transient errors; the caller sees the first failure.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.session != nil {
		return fn(s)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(); err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		tx := &Store{client: s.client, places: s.places, users: s.users, session: session}
		if err := fn(tx); err != nil {
			if abortErr := session.AbortTransaction(context.WithoutCancel(sc)); abortErr != nil {
				return errors.Join(err, fmt.Errorf("failed to abort transaction: %w", abortErr))
			}
			return err
		}

		if err := session.CommitTransaction(sc); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// Migrate creates the indexes used by place lookups
func (s *Store) Migrate(ctx context.Context) error {
	creatorIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "creator", Value: 1}},
	}
	if _, err := s.places.Indexes().CreateOne(ctx, creatorIndex); err != nil {
		return fmt.Errorf("failed to create creator index: %w", err)
	}
	return nil
}

// Ping checks the server connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// bind attaches the transaction session, if any, to ctx
func (s *Store) bind(ctx context.Context) context.Context {
	if s.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, s.session)
}

type placeRepo struct {
	s *Store
}

func (r *placeRepo) Create(ctx context.Context, place *models.Place) error {
	if _, err := r.s.places.InsertOne(r.s.bind(ctx), place); err != nil {
		return fmt.Errorf("failed to create place: %w", err)
	}
	return nil
}

func (r *placeRepo) GetByID(ctx context.Context, id string) (*models.Place, error) {
	var place models.Place
	err := r.s.places.FindOne(r.s.bind(ctx), bson.M{"_id": id}).Decode(&place)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("place %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get place: %w", err)
	}
	return &place, nil
}

type placeWithCreator struct {
	models.Place `bson:",inline"`
	CreatorDocs  []models.User `bson:"creator_docs"`
}

func (r *placeRepo) GetWithCreator(ctx context.Context, id string) (*models.Place, *models.User, error) {
	ctx = r.s.bind(ctx)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         usersCollection,
			"localField":   "creator",
			"foreignField": "_id",
			"as":           "creator_docs",
		}}},
		{{Key: "$limit", Value: 1}},
	}

	cursor, err := r.s.places.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get place with creator: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []placeWithCreator
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode place with creator: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("place %s: %w", id, repository.ErrNotFound)
	}

	place := docs[0].Place
	if len(docs[0].CreatorDocs) == 0 {
		return &place, nil, nil
	}
	user := docs[0].CreatorDocs[0]
	return &place, &user, nil
}

func (r *placeRepo) Update(ctx context.Context, place *models.Place) error {
	update := bson.M{"$set": bson.M{
		"title":       place.Title,
		"description": place.Description,
		"updated_at":  place.UpdatedAt,
	}}
	result, err := r.s.places.UpdateOne(r.s.bind(ctx), bson.M{"_id": place.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update place: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("place %s: %w", place.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *placeRepo) Delete(ctx context.Context, id string) error {
	result, err := r.s.places.DeleteOne(r.s.bind(ctx), bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete place: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("place %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	doc := *user
	if doc.Places == nil {
		doc.Places = []string{}
	}
	if _, err := r.s.users.InsertOne(r.s.bind(ctx), doc); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.s.users.FindOne(r.s.bind(ctx), bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepo) List(ctx context.Context) ([]*models.User, error) {
	ctx = r.s.bind(ctx)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.s.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

type userWithPlaces struct {
	models.User `bson:",inline"`
	PlaceDocs   []models.Place `bson:"place_docs"`
}

func (r *userRepo) PlacesOf(ctx context.Context, userID string) ([]*models.Place, error) {
	ctx = r.s.bind(ctx)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": userID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         placesCollection,
			"localField":   "places",
			"foreignField": "_id",
			"as":           "place_docs",
		}}},
		{{Key: "$limit", Value: 1}},
	}

	cursor, err := r.s.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to get places of user: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userWithPlaces
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode places of user: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}

	return orderByRefs(docs[0].Places, docs[0].PlaceDocs), nil
}

func (r *userRepo) AddPlace(ctx context.Context, userID, placeID string) error {
	update := bson.M{"$addToSet": bson.M{"places": placeID}}
	result, err := r.s.users.UpdateOne(r.s.bind(ctx), bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to add place to user: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	return nil
}

func (r *userRepo) RemovePlace(ctx context.Context, userID, placeID string) error {
	update := bson.M{"$pull": bson.M{"places": placeID}}
	result, err := r.s.users.UpdateOne(r.s.bind(ctx), bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to remove place from user: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	return nil
}

// orderByRefs returns docs in the order of refs; $lookup does not preserve it
func orderByRefs(refs []string, docs []models.Place) []*models.Place {
	byID := make(map[string]models.Place, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	places := make([]*models.Place, 0, len(refs))
	for _, id := range refs {
		if p, ok := byID[id]; ok {
			places = append(places, &p)
		}
	}
	return places
}
