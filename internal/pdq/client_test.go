package pdq_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pdqctl/internal/errs"
	"pdqctl/internal/pdq"
	"pdqctl/internal/pdq/pdqtest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, srv *pdqtest.Server, opts ...pdq.Option) *pdq.Client {
	t.Helper()
	c, err := pdq.NewClient(context.Background(), srv.URL, "", opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_NilContextReturnsError(t *testing.T) {
	var nilCtx context.Context
	_, err := pdq.NewClient(nilCtx, "http://localhost:8080", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ctx is nil")
}

func TestNewClient_BaseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "trailing slash trimmed", raw: "http://localhost:8080/", want: "http://localhost:8080"},
		{name: "scheme defaulted", raw: "planner.internal:8080", want: "http://planner.internal:8080"},
		{name: "path prefix kept", raw: "https://host/pdq/api/", want: "https://host/pdq/api"},
		{name: "empty", raw: " ", wantErr: true},
		{name: "bad scheme", raw: "ftp://host", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := pdq.NewClient(context.Background(), tt.raw, "")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.BaseURL())
		})
	}
}

func TestInitSchemas(t *testing.T) {
	srv := pdqtest.NewServer(t)
	c := newClient(t, srv)

	info, err := c.InitSchemas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pdqtest.DefaultSchemas(), info.Schemas)

	s, ok := info.Find(0)
	require.True(t, ok)
	q, ok := s.Query(1)
	require.True(t, ok)
	assert.Contains(t, q.SQL, "WHERE R.a = S.a")

	reqs := srv.RequestsFor("initSchemas")
	require.Len(t, reqs, 1)
	assert.Equal(t, "/initSchemas", reqs[0].Path)
	assert.NotEmpty(t, reqs[0].RequestID)
}

func TestInitSchemas_ErrorKinds(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		srv := pdqtest.NewServer(t)
		srv.InitBody = `{"schemas": [`
		_, err := newClient(t, srv).InitSchemas(context.Background())
		require.Error(t, err)
		assert.True(t, errs.IsMalformedResponse(err), "got %v", err)
	})

	t.Run("server error", func(t *testing.T) {
		srv := pdqtest.NewServer(t)
		srv.Status["initSchemas"] = http.StatusInternalServerError
		_, err := newClient(t, srv).InitSchemas(context.Background())
		require.Error(t, err)
		assert.True(t, errs.IsHTTPStatus(err), "got %v", err)
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv := pdqtest.NewServer(t)
		srv.Status["initSchemas"] = http.StatusUnauthorized
		_, err := newClient(t, srv).InitSchemas(context.Background())
		assert.True(t, errs.IsPermissionDenied(err), "got %v", err)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := pdq.NewClient(context.Background(), url, "")
		require.NoError(t, err)
		_, err = c.InitSchemas(context.Background())
		require.Error(t, err)
		assert.True(t, errs.IsConnectionFailed(err), "got %v", err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := pdqtest.NewServer(t)
		srv.Gate = make(chan struct{})
		defer close(srv.Gate)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := newClient(t, srv).InitSchemas(ctx)
		require.Error(t, err)
		assert.True(t, errs.IsTimeout(err), "got %v", err)
	})
}

func TestDownloadPlan_PathCarriesSQLVerbatim(t *testing.T) {
	srv := pdqtest.NewServer(t)
	c := newClient(t, srv)

	body, err := c.DownloadPlan(context.Background(), 1, 2, "SELECT * FROM t")
	require.NoError(t, err)
	assert.Equal(t, srv.PlanXML, body)

	reqs := srv.RequestsFor("downloadPlan")
	require.Len(t, reqs, 1)
	assert.Equal(t, "/downloadPlan/1/2/SELECT * FROM t", reqs[0].Path)
	assert.Equal(t, "1", reqs[0].SchemaID)
	assert.Equal(t, "2", reqs[0].QueryID)
	assert.Equal(t, "SELECT * FROM t", reqs[0].SQL)
}

func TestDownloadPlan_SQLWithSlashAndQuestionMark(t *testing.T) {
	srv := pdqtest.NewServer(t)
	c := newClient(t, srv)

	_, err := c.DownloadPlan(context.Background(), 0, 1, "SELECT a/2 FROM R WHERE b = '?'")
	require.NoError(t, err)

	reqs := srv.RequestsFor("downloadPlan")
	require.Len(t, reqs, 1)
	assert.Equal(t, "SELECT a/2 FROM R WHERE b = '?'", reqs[0].SQL)
	assert.Empty(t, reqs[0].RawQuery)
}

func TestDownloadPlan_Errors(t *testing.T) {
	t.Run("empty sql rejected before any request", func(t *testing.T) {
		srv := pdqtest.NewServer(t)
		_, err := newClient(t, srv).DownloadPlan(context.Background(), 0, 0, "  ")
		assert.True(t, errs.IsInvalidInput(err))
		assert.Empty(t, srv.Requests())
	})

	t.Run("empty body means no computed plan", func(t *testing.T) {
		srv := pdqtest.NewServer(t)
		srv.PlanXML = nil
		_, err := newClient(t, srv).DownloadPlan(context.Background(), 0, 0, "SELECT a FROM R")
		assert.True(t, errs.IsNotFound(err), "got %v", err)
	})

	t.Run("not found status", func(t *testing.T) {
		srv := pdqtest.NewServer(t)
		srv.Status["downloadPlan"] = http.StatusNotFound
		_, err := newClient(t, srv).DownloadPlan(context.Background(), 0, 0, "SELECT a FROM R")
		assert.True(t, errs.IsNotFound(err), "got %v", err)
	})
}

func TestPlan_StampsIdentity(t *testing.T) {
	srv := pdqtest.NewServer(t)
	c := newClient(t, srv)

	p, err := c.Plan(context.Background(), 1, 0, "SELECT * FROM T")
	require.NoError(t, err)
	assert.Equal(t, 1, p.SchemaID)
	assert.Equal(t, 0, p.QueryID)
	assert.Equal(t, "Project(Access(R))", p.BestPlan)
	assert.JSONEq(t, `{"type":"ORIGIN","children":[]}`, string(p.GraphicalPlan))
	assert.True(t, p.Ref().Matches(1, 0))
	assert.False(t, p.Ref().Matches(1, 1))
}

func TestVerifyRunAndDocuments(t *testing.T) {
	srv := pdqtest.NewServer(t)
	c := newClient(t, srv)
	ctx := context.Background()

	ok, err := c.VerifyQuery(ctx, 0, 0, "SELECT a FROM R")
	require.NoError(t, err)
	assert.True(t, ok)

	srv.Valid = false
	ok, err = c.VerifyQuery(ctx, 0, 0, "SELEC a FROM R")
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := c.Run(ctx, 0, 0, "SELECT a FROM R")
	require.NoError(t, err)
	assert.JSONEq(t, `[["a","b"],["1","2"]]`, string(res.Results))

	csv, err := c.DownloadRun(ctx, 0, 0, "SELECT a FROM R")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(csv))

	rel, err := c.Relations(ctx, 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"3","relations":["R","S"]}`, string(rel))

	deps, err := c.Dependencies(ctx, 3)
	require.NoError(t, err)
	assert.Contains(t, string(deps), "dependencies")

	reqs := srv.RequestsFor("getRelations")
	require.Len(t, reqs, 1)
	assert.Equal(t, "id=3", reqs[0].RawQuery)
}

func TestNewClient_WithVerbose_LogsAndAuthHeader(t *testing.T) {
	srv := pdqtest.NewServer(t)
	ctx := context.Background()

	// Unauthenticated client should still log when verbose.
	{
		var buf bytes.Buffer
		c, err := pdq.NewClient(ctx, srv.URL, "", pdq.WithVerbose(true, zerolog.New(&buf)))
		require.NoError(t, err)
		_, err = c.InitSchemas(ctx)
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "pdq api request")
		assert.Contains(t, buf.String(), `"status":200`)
		reqs := srv.Requests()
		assert.Empty(t, reqs[len(reqs)-1].Authorization)
	}

	// Authenticated client should send Authorization header.
	{
		c, err := pdq.NewClient(ctx, srv.URL, "test-token")
		require.NoError(t, err)
		_, err = c.InitSchemas(ctx)
		require.NoError(t, err)

		reqs := srv.Requests()
		got := reqs[len(reqs)-1].Authorization
		assert.True(t, strings.HasPrefix(got, "Bearer "), "got %q", got)
		assert.Contains(t, got, "test-token")
	}
}
