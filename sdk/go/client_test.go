package pairwisesdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairwise/internal/app"
	"pairwise/internal/server"
	pairwisesdk "pairwise/sdk/go"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	eng, conn, err := app.Bootstrap(context.Background(), app.Options{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	handler, err := server.New(server.Config{
		Engine: eng,
		Auth:   server.AuthConfig{JWTSecret: "sdk-secret", DevLogin: true},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := newAPI(t)
	ctx := context.Background()
	c := pairwisesdk.New(srv.URL)

	_, err := c.DevLogin(ctx, "coach")
	require.NoError(t, err)
	g, err := c.CreateGroup(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "coach", g.SupervisorID)

	for _, name := range []string{"ana", "ben", "cy", "dee"} {
		p, err := c.Join(ctx, g.Token, name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name)
	}
	r, err := c.RunRound(ctx, g.Token, true, "")
	require.NoError(t, err)
	assert.Equal(t, 1, r.RoundNumber)
	assert.Equal(t, [][2]int64{{1, 4}, {2, 3}}, r.Pairs)
	assert.Len(t, r.Content, 2)

	latest, err := c.LatestRound(ctx, g.Token)
	require.NoError(t, err)
	assert.Equal(t, r.Pairs, latest.Pairs)

	require.NoError(t, c.Leave(ctx, g.Token, 4))
	fetched, err := c.GetGroup(ctx, g.Token)
	require.NoError(t, err)
	assert.Len(t, fetched.Participants, 3)

	history, err := c.History(ctx, g.Token)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	st, err := c.State(ctx, g.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, st.RoundCounter)

	text, err := c.NextContent(ctx, "sdk", "")
	require.NoError(t, err)
	assert.NotEmpty(t, text)

	page, err := c.EventsPage(ctx, g.Token, 2, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)
}

func TestClientAPIError(t *testing.T) {
	srv := newAPI(t)
	ctx := context.Background()
	c := pairwisesdk.New(srv.URL)
	_, err := c.DevLogin(ctx, "coach")
	require.NoError(t, err)
	g, err := c.CreateGroup(ctx, nil)
	require.NoError(t, err)

	_, err = c.RunRound(ctx, g.Token, false, "")
	var apiErr *pairwisesdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "not_enough_participants", apiErr.Code)
}

func TestClientSendsBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{"token":"TIGER","participants":[]}`))
	}))
	defer srv.Close()
	c := pairwisesdk.New(srv.URL + "/")
	c.BearerToken = "abc"
	g, err := c.GetGroup(context.Background(), "TIGER")
	require.NoError(t, err)
	assert.Equal(t, "TIGER", g.Token)
	assert.Equal(t, "Bearer abc", got)
}
