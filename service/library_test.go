package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"family-album/storage"
)

func newLibraryUnderTest(db *fakeDB, objects *fakeObjects, index *fakeIndex, embed *fakeEmbedder) *Library {
	return NewLibrary(db, objects, index, embed, time.Hour, testLogger())
}

func TestUploadPhotoPipeline(t *testing.T) {
	db := newFakeDB()
	objects := newFakeObjects()
	index := newFakeIndex()
	embed := &fakeEmbedder{imageVector: []float32{1, 0, 0, 0}}
	lib := newLibraryUnderTest(db, objects, index, embed)

	photo, err := lib.UploadPhoto(context.Background(), "dog.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.NotEmpty(t, photo.ID)
	assert.Equal(t, photo.ID+"-dog.jpg", photo.ObjectKey)
	assert.Equal(t, "dog.jpg", photo.OriginalFilename)
	assert.False(t, photo.CreatedAt.IsZero())

	// All three stores refer to the photo by the same ID.
	assert.Contains(t, objects.blobs, photo.ObjectKey)
	assert.Contains(t, db.photos, photo.ID)
	require.Contains(t, index.points, photo.ID)
	assert.Equal(t, photo.ID, index.points[photo.ID].payload.ImageID)
	assert.Equal(t, photo.ObjectKey, index.points[photo.ID].payload.ObjectKey)
}

func TestUploadPhotoNamespacesUntrustedFilenames(t *testing.T) {
	db := newFakeDB()
	objects := newFakeObjects()
	lib := newLibraryUnderTest(db, objects, newFakeIndex(), &fakeEmbedder{imageVector: []float32{1}})

	photo, err := lib.UploadPhoto(context.Background(), "../../etc/passwd", "text/plain", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, photo.ID+"-passwd", photo.ObjectKey)
	assert.False(t, strings.Contains(photo.ObjectKey, ".."))
}

func TestUploadPhotoObjectStoreFailureAborts(t *testing.T) {
	db := newFakeDB()
	objects := newFakeObjects()
	objects.failPut = errors.New("object store down")
	lib := newLibraryUnderTest(db, objects, newFakeIndex(), &fakeEmbedder{})

	_, err := lib.UploadPhoto(context.Background(), "dog.jpg", "image/jpeg", []byte("jpeg"))
	require.Error(t, err)
	assert.Empty(t, db.photos)
}

func TestUploadPhotoMetadataFailureCleansUpBlob(t *testing.T) {
	db := newFakeDB()
	db.failSavePhoto = errors.New("metadata store down")
	objects := newFakeObjects()
	lib := newLibraryUnderTest(db, objects, newFakeIndex(), &fakeEmbedder{})

	_, err := lib.UploadPhoto(context.Background(), "dog.jpg", "image/jpeg", []byte("jpeg"))
	require.Error(t, err)
	assert.Empty(t, objects.blobs)
}

func TestUploadPhotoEmbeddingFailureIsNotFatal(t *testing.T) {
	db := newFakeDB()
	index := newFakeIndex()
	embed := &fakeEmbedder{failImage: errors.New("provider down")}
	lib := newLibraryUnderTest(db, newFakeObjects(), index, embed)

	photo, err := lib.UploadPhoto(context.Background(), "dog.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Contains(t, db.photos, photo.ID)
	assert.Empty(t, index.points)
}

func TestUploadPhotoRejectsEmptyBody(t *testing.T) {
	lib := newLibraryUnderTest(newFakeDB(), newFakeObjects(), newFakeIndex(), &fakeEmbedder{})
	_, err := lib.UploadPhoto(context.Background(), "dog.jpg", "image/jpeg", nil)
	assert.True(t, storage.IsValidation(err))
}

func TestListPhotosNewestFirstWithFreshURLs(t *testing.T) {
	db := newFakeDB()
	objects := newFakeObjects()
	lib := newLibraryUnderTest(db, objects, newFakeIndex(), &fakeEmbedder{})

	now := time.Now().UTC()
	old := seedPhoto(db, "old", "old.jpg")
	recent := seedPhoto(db, "new", "new.jpg")
	oldRec := db.photos["old"]
	oldRec.CreatedAt = now.Add(-time.Hour)
	db.photos["old"] = oldRec
	newRec := db.photos["new"]
	newRec.CreatedAt = now
	db.photos["new"] = newRec

	views, err := lib.ListPhotos(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "new", views[0].ID)
	assert.Equal(t, "old", views[1].ID)
	assert.Equal(t, "https://signed.example/"+recent.ObjectKey, views[0].URL)
	assert.Equal(t, "https://signed.example/"+old.ObjectKey, views[1].URL)
}

func TestListPhotosSkipsUnsignableEntries(t *testing.T) {
	db := newFakeDB()
	objects := newFakeObjects()
	lib := newLibraryUnderTest(db, objects, newFakeIndex(), &fakeEmbedder{})

	broken := seedPhoto(db, "broken", "broken.jpg")
	seedPhoto(db, "fine", "fine.jpg")
	objects.failSign[broken.ObjectKey] = true

	views, err := lib.ListPhotos(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "fine", views[0].ID)
}
