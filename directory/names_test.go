package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/newsledger/directory"
)

func TestNames(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		f         func(*testing.T) directory.Names
	}{
		{
			"mem",
			func(_ *testing.T) directory.Names {
				return directory.NewMemNames()
			},
		},
		{
			"sql",
			func(t *testing.T) directory.Names {
				t.Helper()
				n, err := directory.NewSQLNames(ctx, openDB(t))
				require.NoError(t, err)
				return n
			},
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			n := c.f(t)
			added, err := n.Add(ctx, directory.KindCategory, "sports")
			require.NoError(t, err)
			assert.True(t, added)
			added, err = n.Add(ctx, directory.KindCategory, "arts")
			require.NoError(t, err)
			assert.True(t, added)
			added, err = n.Add(ctx, directory.KindTag, "sports")
			require.NoError(t, err)
			assert.True(t, added)

			added, err = n.Add(ctx, directory.KindCategory, "sports")
			require.NoError(t, err)
			assert.False(t, added)

			_, err = n.Add(ctx, directory.Kind("author"), "x")
			require.Error(t, err)

			assert.Equal(t, []string{"arts", "sports"}, n.List(directory.KindCategory))
			assert.Equal(t, []string{"sports"}, n.List(directory.KindTag))
			assert.True(t, n.Has(directory.KindTag, "sports"))
			assert.False(t, n.Has(directory.KindTag, "arts"))
		})
	}
}

func TestSQLNamesReload(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	n, err := directory.NewSQLNames(ctx, db)
	require.NoError(t, err)
	_, err = n.Add(ctx, directory.KindCategory, "sports")
	require.NoError(t, err)
	_, err = n.Add(ctx, directory.KindTag, "local")
	require.NoError(t, err)

	reloaded, err := directory.NewSQLNames(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"sports"}, reloaded.List(directory.KindCategory))
	assert.Equal(t, []string{"local"}, reloaded.List(directory.KindTag))

	added, err := reloaded.Add(ctx, directory.KindCategory, "sports")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = directory.NewSQLDirectory(ctx, db)
	require.NoError(t, err)
}
