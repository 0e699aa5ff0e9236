package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/okian/maison/internal/adapters/repository/storetest"
	"github.com/okian/maison/internal/domain/teamrequest"
	. "github.com/smartystreets/goconvey/convey"
)

const databaseURLEnv = "MAISON_TEST_DATABASE_URL"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv(databaseURLEnv)
	if url == "" {
		t.Skipf("%s not set", databaseURLEnv)
	}
	ctx := context.Background()
	s, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("open postgres store: %v", err)
	}
	if _, err := s.pool.Exec(ctx,
		`TRUNCATE team_requests, group_members, brand_members, brands, groups`,
	); err != nil {
		s.Close()
		t.Fatalf("truncate tables: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) teamrequest.SeedStore {
		return openTestStore(t)
	})
}

func TestOpen(t *testing.T) {
	Convey("Given an empty database url", t, func() {
		_, err := Open(context.Background(), "  ")
		So(err, ShouldNotBeNil)
	})
}
