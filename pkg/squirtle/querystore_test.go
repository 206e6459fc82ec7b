package squirtle

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQueries = `
-- sql:CreateUpload
INSERT INTO uploads (id, basename) VALUES (:id, :basename);

-- sql:GetUpload
SELECT * FROM uploads WHERE id = :id;

-- a comment without a name
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"config/querystore.yaml": {Data: []byte("- table: uploads\n  query_file:\n    - queries/uploads.sql\n- table: broken\n")},
		"queries/uploads.sql":    {Data: []byte(testQueries)},
	}
}

func Test_QueryStoreLoadFS(t *testing.T) {
	store, err := LoadFS(testFS(), DefaultQueryStoreConfigLocation)
	require.NoError(t, err)

	require.Equal(t, 2, len(store.Configs))

	_, err = LoadFS(testFS(), "nope.yaml")
	require.Error(t, err)
}

func Test_HydrateQueryStore(t *testing.T) {
	store, err := LoadFS(testFS(), DefaultQueryStoreConfigLocation)
	require.NoError(t, err)

	_, err = store.HydrateQueryStore("lol")
	require.ErrorIs(t, err, ErrTableNotFound, "fails to load with invalid table key")

	_, err = store.HydrateQueryStore("broken")
	require.ErrorIs(t, err, ErrNoQueryFiles)

	qs, err := store.HydrateQueryStore("uploads")
	require.NoError(t, err, "should not have failed to get query mapping")

	assert.ElementsMatch(t, []string{"CreateUpload", "GetUpload"}, qs.Keys())

	query, ok := qs.GetQuery("CreateUpload")
	require.True(t, ok)
	require.True(t, strings.HasPrefix(query, "INSERT INTO"))

	assert.Panics(t, func() { qs.MustGetQuery("DropEverything") })
}
