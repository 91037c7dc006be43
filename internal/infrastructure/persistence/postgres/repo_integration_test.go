//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/npcchatter/backend/internal/config"
	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/infrastructure/monitoring"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

func TestRepositories_Postgres(t *testing.T) {
	if os.Getenv("SKIP_DOCKER_TESTS") == "true" {
		t.Skip("Skipping Docker-dependent tests")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("npcchatter"),
		tcpostgres.WithUsername("npc"),
		tcpostgres.WithPassword("npc"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log := logger.NewNoopLogger()
	conn, err := NewDBConnection(ctx, &config.DatabaseConfig{Driver: "postgres", URL: connStr, MaxConns: 4}, log)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.AutoMigrate(ctx))

	metrics := monitoring.NewNoopMetrics()
	campaigns := NewCampaignRepository(conn.DB(), metrics, log)
	members := NewMembershipRepository(conn.DB(), metrics, log)

	owner := "user_dm"
	require.NoError(t, campaigns.CreateWithOwner(ctx, &models.Campaign{ID: "c1", Name: "Tomb", OwnerID: &owner}, "dm"))

	err = campaigns.CreateWithOwner(ctx, &models.Campaign{ID: "c1", Name: "Again"}, "dm")
	assert.Equal(t, errors.KindConflict, errors.KindOf(err))

	ok, err := members.Exists(ctx, "c1", owner)
	require.NoError(t, err)
	assert.True(t, ok)

	created, err := members.Add(ctx, &models.CampaignMember{CampaignID: "c1", UserID: "u2"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = members.Add(ctx, &models.CampaignMember{CampaignID: "c1", UserID: "u2"})
	require.NoError(t, err)
	assert.False(t, created)

	list, err := members.ListByCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
