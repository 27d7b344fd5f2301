package ir

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunSuffix(t *testing.T) {
	now := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)

	suffix := NewRunSuffix(now)
	assert.Regexp(t, regexp.MustCompile(`^20240101-[0-9a-f]{8}$`), suffix)

	// Two suffixes from the same instant must still differ.
	assert.NotEqual(t, suffix, NewRunSuffix(now))
}

func TestKeyString(t *testing.T) {
	key := Key{Kind: KindStorage, Name: "uploads"}
	assert.Equal(t, "storage/uploads", key.String())

	parsed, err := ParseKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	for _, bad := range []string{"", "storage", "/uploads", "storage/"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, "key %q should not parse", bad)
	}
}

func TestSpecPhysicalName(t *testing.T) {
	suffixed := &Spec{BaseName: "inventory-uploads", Suffixed: true}
	assert.Equal(t, "inventory-uploads-20240101-abcd1234", suffixed.PhysicalName("20240101-abcd1234"))

	fixed := &Spec{BaseName: "Inventory"}
	assert.Equal(t, "Inventory", fixed.PhysicalName("20240101-abcd1234"))
}

func TestRecordHandles(t *testing.T) {
	rec := NewRecord(time.Now())
	require.NotEmpty(t, rec.RunSuffix)

	uploads := Key{Kind: KindStorage, Name: "uploads"}
	web := Key{Kind: KindStorage, Name: "web"}
	table := Key{Kind: KindTable, Name: "inventory"}

	rec.SetHandle(web, &Handle{Kind: KindStorage, Name: "b", Status: StatusCreated})
	rec.SetHandle(uploads, &Handle{Kind: KindStorage, Name: "a", Status: StatusCreated})
	rec.SetHandle(table, &Handle{Kind: KindTable, Name: "Inventory", Status: StatusVerified})

	assert.Nil(t, rec.Handle(Key{Kind: KindTopic, Name: "alerts"}))
	assert.Equal(t, "Inventory", rec.Handle(table).Name)

	keys := rec.KeysByKind(KindStorage)
	require.Len(t, keys, 2)
	assert.Equal(t, []Key{uploads, web}, keys)

	rec.RemoveHandle(uploads)
	assert.Len(t, rec.KeysByKind(KindStorage), 1)
}
