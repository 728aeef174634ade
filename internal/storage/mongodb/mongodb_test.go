package mongodb

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"vidshare/internal/storage/storagetest"
)

// Runs against a live server only; set MONGO_URI, e.g. mongodb://localhost:27017.
func TestStorage(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s, err := New(ctx, uri, "vidshare_test_"+strings.ToLower(gofakeit.LetterN(8)))
		require.NoError(t, err)

		t.Cleanup(func() {
			cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cleanupCancel()
			_ = s.database.Drop(cleanupCtx)
			_ = s.Close(cleanupCtx)
		})

		return s
	})
}
