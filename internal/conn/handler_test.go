package conn_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"testing"

	"gotest.tools/assert"

	"github.com/chunkdb/chunkdb/internal/config"
	. "github.com/chunkdb/chunkdb/internal/conn"
	"github.com/chunkdb/chunkdb/internal/store"
)

func reqEncode(t *testing.T, req any) []byte {
	t.Helper()
	v, err := json.Marshal(req)
	assert.NilError(t, err)
	return v
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	var users strings.Builder
	users.WriteString("id,name,score\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&users, "%d,user%d,%g\n", i, i, float64(i)/2)
	}
	_, err := store.Create(path.Join(dir, "users"),
		strings.NewReader(users.String()), store.Options{ChunkRows: 6, Header: true})
	assert.NilError(t, err)

	var orders strings.Builder
	orders.WriteString("id,amount\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&orders, "%d,%d\n", i, 100*i)
	}
	_, err = store.Create(path.Join(dir, "orders"),
		strings.NewReader(orders.String()), store.Options{ChunkRows: 4, Header: true})
	assert.NilError(t, err)

	cfg := config.Default()
	cfg.DataDir = dir
	s, err := NewServer(cfg)
	assert.NilError(t, err)
	return s, dir
}

func TestLoadDatasetsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	_, err := store.Create(path.Join(dir, "a"),
		strings.NewReader("id\n1\n2\n"), store.Options{ChunkRows: 4, Header: true, Name: "dup"})
	assert.NilError(t, err)
	_, err = store.Create(path.Join(dir, "b"),
		strings.NewReader("id\n1\n2\n3\n4\n5\n"), store.Options{ChunkRows: 4, Header: true, Name: "dup"})
	assert.NilError(t, err)

	cfg := config.Default()
	cfg.DataDir = dir
	s, err := NewServer(cfg)
	assert.NilError(t, err)

	// first directory wins, the shadowed one is skipped with a warning
	assert.Equal(t, len(s.DatasetNames()), 1)
	assert.Equal(t, s.Dataset("dup").TotalRows(), 2)
}

func TestListReqHandler(t *testing.T) {
	s, _ := newTestServer(t)
	res := s.ActionHandler(context.Background(), RequestActionList, nil)

	assert.Equal(t, res.Status, http.StatusOK, res.Message)
	names := res.Data.([]string)
	assert.Equal(t, len(names), 2)
}

func TestDescribeReqHandler(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("dataset not found", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{"dataset": "nope"})
		res := s.ActionHandler(context.Background(), RequestActionDescribe, raw)

		assert.Equal(t, res.Status, http.StatusNotFound, res.Message)
		assert.Equal(t, res.Message, "Dataset not found")
	})

	t.Run("simple describe", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{"dataset": "users"})
		res := s.ActionHandler(context.Background(), RequestActionDescribe, raw)

		assert.Equal(t, res.Status, http.StatusOK, res.Message)
		desc := res.Data.(store.Description)
		assert.Equal(t, desc.Rows, 20)
		assert.Equal(t, len(desc.Columns), 3)
	})
}

func TestCollectReqHandler(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("filter and select", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{
			"dataset": "users",
			"filter":  map[string]any{"column": "id", "op": "lt", "value": 5},
			"select":  []string{"name"},
		})
		res := s.ActionHandler(context.Background(), RequestActionCollect, raw)

		assert.Equal(t, res.Status, http.StatusOK, res.Message)
		records := res.Data.([]map[string]any)
		assert.Equal(t, len(records), 5)
		assert.Equal(t, records[3]["name"], "user3")
	})

	t.Run("join", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{
			"dataset": "users",
			"join":    map[string]any{"dataset": "orders", "on": "id"},
		})
		res := s.ActionHandler(context.Background(), RequestActionCollect, raw)

		assert.Equal(t, res.Status, http.StatusOK, res.Message)
		records := res.Data.([]map[string]any)
		assert.Equal(t, len(records), 10)
	})

	t.Run("unknown column is a bad request", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{
			"dataset": "users",
			"filter":  map[string]any{"column": "nope", "op": "eq", "value": 1},
		})
		res := s.ActionHandler(context.Background(), RequestActionCollect, raw)

		assert.Equal(t, res.Status, http.StatusBadRequest, res.Message)
		assert.ErrorContains(t, fmt.Errorf(res.Message), "nope")
	})

	t.Run("type mismatch is a bad request", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{
			"dataset": "users",
			"filter":  map[string]any{"column": "id", "op": "eq", "value": "ten"},
		})
		res := s.ActionHandler(context.Background(), RequestActionCollect, raw)

		assert.Equal(t, res.Status, http.StatusBadRequest, res.Message)
	})
}

func TestRenameReqHandler(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("simple rename", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{"dataset": "users", "column": "score", "to": "rating"})
		res := s.ActionHandler(context.Background(), RequestActionRename, raw)

		assert.Equal(t, res.Status, http.StatusOK, res.Message)
		assert.Assert(t, s.Dataset("users").Schema().Has("rating"))
	})

	t.Run("old name is gone", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{
			"dataset": "users",
			"filter":  map[string]any{"column": "score", "op": "gt", "value": 1},
		})
		res := s.ActionHandler(context.Background(), RequestActionCollect, raw)

		assert.Equal(t, res.Status, http.StatusBadRequest, res.Message)
	})
}

func TestComputeReqHandler(t *testing.T) {
	s, dir := newTestServer(t)

	t.Run("dot and nested names are rejected", func(t *testing.T) {
		for _, name := range []string{".", "..", "x/y"} {
			raw := reqEncode(t, map[string]any{"dataset": "users", "name": name})
			res := s.ActionHandler(context.Background(), RequestActionCompute, raw)

			assert.Equal(t, res.Status, http.StatusBadRequest, "name=%q: %s", name, res.Message)
		}

		// nothing may land outside the data directory
		_, err := os.Stat(path.Join(dir, "..", store.META_FILE))
		assert.Assert(t, os.IsNotExist(err))
		assert.Assert(t, s.Dataset("..") == nil)
	})

	t.Run("computes and registers a dataset", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{
			"dataset": "users",
			"filter":  map[string]any{"column": "id", "op": "lt", "value": 8},
			"name":    "young_users",
		})
		res := s.ActionHandler(context.Background(), RequestActionCompute, raw)

		assert.Equal(t, res.Status, http.StatusCreated, res.Message)
		d := s.Dataset("young_users")
		assert.Assert(t, d != nil)
		assert.Equal(t, d.TotalRows(), 8)
	})

	t.Run("existing name is a conflict", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{"dataset": "users", "name": "orders"})
		res := s.ActionHandler(context.Background(), RequestActionCompute, raw)

		assert.Equal(t, res.Status, http.StatusConflict, res.Message)
	})

	t.Run("missing name is a bad request", func(t *testing.T) {
		raw := reqEncode(t, map[string]any{"dataset": "users"})
		res := s.ActionHandler(context.Background(), RequestActionCompute, raw)

		assert.Equal(t, res.Status, http.StatusBadRequest, res.Message)
	})
}

func TestExportReqHandler(t *testing.T) {
	s, _ := newTestServer(t)

	raw := reqEncode(t, map[string]any{"dataset": "orders"})
	res := s.ActionHandler(context.Background(), RequestActionExport, raw)

	assert.Equal(t, res.Status, http.StatusOK, res.Message)
	lines := strings.Split(strings.TrimSpace(res.Data.(string)), "\n")
	assert.Equal(t, len(lines), 11)
	assert.Equal(t, lines[0], "id,amount")
}
