package storage

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"family-album/model"
)

// MetadataDB is the gateway to the document store holding photo and album
// records.
type MetadataDB interface {
	SavePhoto(ctx context.Context, photo model.PhotoRecord) error
	GetPhoto(ctx context.Context, id string) (*model.PhotoRecord, error)
	ListPhotos(ctx context.Context, skip, limit int64) ([]model.PhotoRecord, error)
	// DeletePhoto removes the photo document. A zero-row delete is ErrNotFound.
	DeletePhoto(ctx context.Context, id string) error

	// SaveAlbum assigns the album ID and persists the record.
	SaveAlbum(ctx context.Context, album *model.AlbumRecord) error
	GetAlbum(ctx context.Context, id string) (*model.AlbumRecord, error)
	ListAlbums(ctx context.Context, skip, limit int64) ([]model.AlbumRecord, error)
	DeleteAlbum(ctx context.Context, id string) error

	// RemoveImageFromAlbums pulls the image out of every album's images
	// list and recomputes the affected cover images, atomically per album.
	RemoveImageFromAlbums(ctx context.Context, imageID string) error
	SetAlbumVideoKey(ctx context.Context, albumID, videoKey string) error
}

// MongoMetadataDB implements MetadataDB on MongoDB.
type MongoMetadataDB struct {
	client *mongo.Client
	images *mongo.Collection
	albums *mongo.Collection
	log    *zap.Logger
}

// NewMongoMetadataDB connects to MongoDB and pings it.
func NewMongoMetadataDB(ctx context.Context, uri, databaseName string, log *zap.Logger) (*MongoMetadataDB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, storeErr("metadata", errors.Wrap(err, "connect"))
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, storeErr("metadata", errors.Wrap(err, "ping"))
	}

	db := client.Database(databaseName)
	log.Info("connected to MongoDB", zap.String("database", databaseName))

	return &MongoMetadataDB{
		client: client,
		images: db.Collection("images"),
		albums: db.Collection("albums"),
		log:    log,
	}, nil
}

// Close disconnects from MongoDB.
func (db *MongoMetadataDB) Close(ctx context.Context) error {
	if db.client == nil {
		return nil
	}
	if err := db.client.Disconnect(ctx); err != nil {
		return storeErr("metadata", errors.Wrap(err, "disconnect"))
	}
	db.log.Info("disconnected from MongoDB")
	return nil
}

// listOptions sorts by creation time descending with _id as the stable
// tie-breaker.
func listOptions(skip, limit int64) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	})
	if skip > 0 {
		opts = opts.SetSkip(skip)
	}
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	return opts
}

func (db *MongoMetadataDB) SavePhoto(ctx context.Context, photo model.PhotoRecord) error {
	if _, err := db.images.InsertOne(ctx, photo); err != nil {
		return storeErr("metadata", errors.Wrapf(err, "save photo %s", photo.ID))
	}
	db.log.Debug("photo metadata saved", zap.String("image_id", photo.ID))
	return nil
}

func (db *MongoMetadataDB) GetPhoto(ctx context.Context, id string) (*model.PhotoRecord, error) {
	var photo model.PhotoRecord
	err := db.images.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&photo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storeErr("metadata", errors.Wrapf(err, "get photo %s", id))
	}
	return &photo, nil
}

func (db *MongoMetadataDB) ListPhotos(ctx context.Context, skip, limit int64) ([]model.PhotoRecord, error) {
	cursor, err := db.images.Find(ctx, bson.D{}, listOptions(skip, limit))
	if err != nil {
		return nil, storeErr("metadata", errors.Wrap(err, "list photos"))
	}
	var photos []model.PhotoRecord
	if err := cursor.All(ctx, &photos); err != nil {
		return nil, storeErr("metadata", errors.Wrap(err, "decode photos"))
	}
	return photos, nil
}

func (db *MongoMetadataDB) DeletePhoto(ctx context.Context, id string) error {
	res, err := db.images.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return storeErr("metadata", errors.Wrapf(err, "delete photo %s", id))
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *MongoMetadataDB) SaveAlbum(ctx context.Context, album *model.AlbumRecord) error {
	if album.ID == "" {
		album.ID = primitive.NewObjectID().Hex()
	}
	if _, err := db.albums.InsertOne(ctx, album); err != nil {
		return storeErr("metadata", errors.Wrapf(err, "save album %s", album.ID))
	}
	db.log.Debug("album saved",
		zap.String("album_id", album.ID),
		zap.Int("images", len(album.Images)))
	return nil
}

func (db *MongoMetadataDB) GetAlbum(ctx context.Context, id string) (*model.AlbumRecord, error) {
	var album model.AlbumRecord
	err := db.albums.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&album)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storeErr("metadata", errors.Wrapf(err, "get album %s", id))
	}
	return &album, nil
}

func (db *MongoMetadataDB) ListAlbums(ctx context.Context, skip, limit int64) ([]model.AlbumRecord, error) {
	cursor, err := db.albums.Find(ctx, bson.D{}, listOptions(skip, limit))
	if err != nil {
		return nil, storeErr("metadata", errors.Wrap(err, "list albums"))
	}
	var albums []model.AlbumRecord
	if err := cursor.All(ctx, &albums); err != nil {
		return nil, storeErr("metadata", errors.Wrap(err, "decode albums"))
	}
	return albums, nil
}

func (db *MongoMetadataDB) DeleteAlbum(ctx context.Context, id string) error {
	res, err := db.albums.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return storeErr("metadata", errors.Wrapf(err, "delete album %s", id))
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *MongoMetadataDB) RemoveImageFromAlbums(ctx context.Context, imageID string) error {
	// $pull is atomic per document, so two photos deleted concurrently from
	// the same album cannot lose each other's update.
	_, err := db.albums.UpdateMany(ctx,
		bson.D{{Key: "images.id", Value: imageID}},
		bson.D{{Key: "$pull", Value: bson.D{
			{Key: "images", Value: bson.D{{Key: "id", Value: imageID}}},
		}}},
	)
	if err != nil {
		return storeErr("metadata", errors.Wrapf(err, "pull image %s from albums", imageID))
	}

	// Recompute cover_image where it pointed at the removed photo. Done as
	// a pipeline update so it stays a single atomic step per album.
	_, err = db.albums.UpdateMany(ctx,
		bson.D{{Key: "cover_image.id", Value: imageID}},
		mongo.Pipeline{
			{{Key: "$set", Value: bson.D{
				{Key: "cover_image", Value: bson.D{
					{Key: "$cond", Value: bson.A{
						bson.D{{Key: "$gt", Value: bson.A{
							bson.D{{Key: "$size", Value: "$images"}}, 0,
						}}},
						bson.D{{Key: "$arrayElemAt", Value: bson.A{"$images", 0}}},
						nil,
					}},
				}},
			}}},
		},
	)
	if err != nil {
		return storeErr("metadata", errors.Wrapf(err, "recompute covers after removing %s", imageID))
	}
	return nil
}

func (db *MongoMetadataDB) SetAlbumVideoKey(ctx context.Context, albumID, videoKey string) error {
	res, err := db.albums.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: albumID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "video_key", Value: videoKey}}}},
	)
	if err != nil {
		return storeErr("metadata", errors.Wrapf(err, "set video key on album %s", albumID))
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
