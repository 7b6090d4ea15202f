package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/snapreel/backend/internal/models"
)

const videoCollection = "videos"

// ConnectMongo dials MongoDB and verifies the connection.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// MongoVideoRepository stores video records as documents in MongoDB.
type MongoVideoRepository struct {
	coll *mongo.Collection
}

// NewMongoVideoRepository uses the videos collection of db.
func NewMongoVideoRepository(db *mongo.Database) *MongoVideoRepository {
	return &MongoVideoRepository{coll: db.Collection(videoCollection)}
}

// EnsureIndexes creates the feed ordering and per-user indexes.
func (r *MongoVideoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create video indexes: %w", err)
	}
	return nil
}

// Create upserts a fresh document; the server stamps timestamp via $currentDate.
func (r *MongoVideoRepository) Create(ctx context.Context, video models.Video) (models.Video, error) {
	id := bson.NewObjectID().Hex()
	fields := bson.D{
		{Key: "videoUrl", Value: video.VideoURL},
		{Key: "posterName", Value: video.PosterName},
		{Key: "userId", Value: video.UserID},
		{Key: "likes", Value: 0},
		{Key: "likedBy", Value: bson.A{}},
		{Key: "views", Value: 0},
		{Key: "isLandscape", Value: video.IsLandscape},
	}
	if video.ThumbnailURL != "" {
		fields = append(fields, bson.E{Key: "thumbnailUrl", Value: video.ThumbnailURL})
	}
	if video.Duration > 0 {
		fields = append(fields, bson.E{Key: "duration", Value: video.Duration})
	}
	if video.Width > 0 && video.Height > 0 {
		fields = append(fields,
			bson.E{Key: "width", Value: video.Width},
			bson.E{Key: "height", Value: video.Height},
			bson.E{Key: "aspectRatio", Value: video.AspectRatio},
		)
	}

	update := bson.D{
		{Key: "$setOnInsert", Value: fields},
		{Key: "$currentDate", Value: bson.D{{Key: "timestamp", Value: true}}},
	}
	if _, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update, options.UpdateOne().SetUpsert(true)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Video{}, ErrConflict
		}
		return models.Video{}, fmt.Errorf("insert video: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *MongoVideoRepository) Get(ctx context.Context, id string) (models.Video, error) {
	var v models.Video
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("find video: %w", err)
	}
	v.Timestamp = v.Timestamp.UTC()
	v.Normalize()
	return v, nil
}

func (r *MongoVideoRepository) List(ctx context.Context, pageSize int, cursor string) (models.VideoPage, error) {
	pageSize = clampPageSize(pageSize)
	after, err := decodeCursor(cursor)
	if err != nil {
		return models.VideoPage{}, err
	}

	filter := bson.D{}
	if after != nil {
		filter = keysetFilter(after)
	}
	videos, err := r.find(ctx, filter, int64(pageSize+1))
	if err != nil {
		return models.VideoPage{}, err
	}
	return buildPage(videos, pageSize), nil
}

func (r *MongoVideoRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	videos, err := r.find(ctx, bson.D{{Key: "userId", Value: userID}}, int64(clampPageSize(limit)))
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []models.Video{}
	}
	return videos, nil
}

func (r *MongoVideoRepository) find(ctx context.Context, filter bson.D, limit int64) ([]models.Video, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer cur.Close(ctx)

	var videos []models.Video
	for cur.Next(ctx) {
		var v models.Video
		if err := cur.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode video: %w", err)
		}
		v.Timestamp = v.Timestamp.UTC()
		v.Normalize()
		videos = append(videos, v)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

// keysetFilter matches documents strictly after c in (timestamp desc, _id desc) order.
func keysetFilter(c *pageCursor) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "timestamp", Value: bson.D{{Key: "$lt", Value: c.Timestamp}}}},
		bson.D{
			{Key: "timestamp", Value: c.Timestamp},
			{Key: "_id", Value: bson.D{{Key: "$lt", Value: c.ID}}},
		},
	}}}
}

func (r *MongoVideoRepository) Update(ctx context.Context, id string, update models.VideoUpdate) error {
	set := bson.D{}
	if update.PosterName != nil {
		set = append(set, bson.E{Key: "posterName", Value: *update.PosterName})
	}
	if update.ThumbnailURL != nil {
		set = append(set, bson.E{Key: "thumbnailUrl", Value: *update.ThumbnailURL})
	}
	if update.Duration != nil {
		set = append(set, bson.E{Key: "duration", Value: *update.Duration})
	}
	if len(set) == 0 {
		_, err := r.Get(ctx, id)
		return err
	}

	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoVideoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleLike runs the membership test and both writes in a single pipeline
// update; every expression in the $set stage sees the pre-update document.
func (r *MongoVideoRepository) ToggleLike(ctx context.Context, id, userID string) (models.LikeResult, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var v models.Video
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, toggleLikePipeline(userID), opts).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.LikeResult{}, ErrNotFound
		}
		return models.LikeResult{}, fmt.Errorf("toggle like: %w", err)
	}
	v.Normalize()
	return models.LikeResult{Likes: v.Likes, Liked: v.LikedByUser(userID)}, nil
}

func toggleLikePipeline(userID string) mongo.Pipeline {
	likedBy := bson.D{{Key: "$ifNull", Value: bson.A{"$likedBy", bson.A{}}}}
	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", 0}}}
	member := bson.D{{Key: "$in", Value: bson.A{userID, likedBy}}}

	removed := bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: likedBy},
		{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", userID}}}},
	}}}
	appended := bson.D{{Key: "$concatArrays", Value: bson.A{likedBy, bson.A{userID}}}}
	decremented := bson.D{{Key: "$max", Value: bson.A{0, bson.D{{Key: "$subtract", Value: bson.A{likes, 1}}}}}}
	incremented := bson.D{{Key: "$add", Value: bson.A{likes, 1}}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "likedBy", Value: bson.D{{Key: "$cond", Value: bson.A{member, removed, appended}}}},
			{Key: "likes", Value: bson.D{{Key: "$cond", Value: bson.A{member, decremented, incremented}}}},
		}}},
	}
}

func (r *MongoVideoRepository) IncrementViews(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}}})
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

var _ VideoRepository = (*MongoVideoRepository)(nil)
