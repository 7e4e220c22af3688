package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/chunkdb/chunkdb/internal/engine"
	"github.com/chunkdb/chunkdb/internal/query"
	"github.com/chunkdb/chunkdb/internal/schema"
	"github.com/chunkdb/chunkdb/internal/store"
)

type Response struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	// don't manually set this. it comes from the client
	ReqId int `json:"__cdb_client_req_id__"`
}

func NewErrorResponse(status int, err string) Response {
	return Response{Message: err, Status: status}
}

func NewResponse(status int, message string, data any) Response {
	return Response{Data: data, Message: message, Status: status}
}

var ErrDatasetNotFound = errors.New("dataset not found")

// errorStatus maps the error taxonomy onto http statuses for the
// response envelope.
func errorStatus(err error) int {
	var unknown_column *schema.UnknownColumnError
	var duplicate *schema.DuplicateNameError
	var mismatch *query.TypeMismatchError
	var parse *store.ParseError
	switch {
	case errors.As(err, &unknown_column), errors.As(err, &duplicate),
		errors.As(err, &mismatch), errors.As(err, &parse):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrMemoryBudget):
		return http.StatusInsufficientStorage
	case errors.Is(err, store.ErrConcurrentWrite):
		return http.StatusConflict
	case errors.Is(err, ErrDatasetNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// validDatasetName accepts only names that stay a single path element
// under the data directory. "." and ".." pass path.Base unchanged, so
// they are rejected explicitly: either would escape the dataset layout.
func validDatasetName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return name == path.Base(name)
}

type JoinClause struct {
	Dataset string `json:"dataset"`
	On      string `json:"on"`
}

// PlanRequest is the wire form of a query: a base dataset plus
// optional join, filter and projection clauses. The engine decides
// actual operator placement.
type PlanRequest struct {
	Dataset string           `json:"dataset"`
	Join    *JoinClause      `json:"join"`
	Filter  *query.Predicate `json:"filter"`
	Select  []string         `json:"select"`
}

// buildPlan validates the clauses eagerly; any error here reaches the
// client before a single chunk is read.
func (s *Server) buildPlan(req PlanRequest) (query.Plan, error) {
	base := s.Dataset(req.Dataset)
	if base == nil {
		return query.Plan{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, req.Dataset)
	}

	plan := query.NewPlan(base)
	var err error

	if req.Join != nil {
		right := s.Dataset(req.Join.Dataset)
		if right == nil {
			return query.Plan{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, req.Join.Dataset)
		}
		if plan, err = plan.Join(right, req.Join.On); err != nil {
			return query.Plan{}, err
		}
	}
	if req.Filter != nil {
		if plan, err = plan.Filter(req.Filter); err != nil {
			return query.Plan{}, err
		}
	}
	if len(req.Select) > 0 {
		if plan, err = plan.Select(req.Select...); err != nil {
			return query.Plan{}, err
		}
	}
	return plan, nil
}

func (s *Server) ListReqHandler() Response {
	return NewResponse(http.StatusOK,
		fmt.Sprintf("%d datasets", len(s.DatasetNames())), s.DatasetNames())
}

type DescribeRequest struct {
	Dataset string `json:"dataset"`
}

func (s *Server) DescribeReqHandler(raw []byte) Response {
	var req DescribeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	d := s.Dataset(req.Dataset)
	if d == nil {
		return NewErrorResponse(http.StatusNotFound, "Dataset not found")
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Dataset %s", d.Name()), d.Describe())
}

type RenameRequest struct {
	Dataset string `json:"dataset"`
	Column  string `json:"column"`
	To      string `json:"to"`
}

func (s *Server) RenameReqHandler(raw []byte) Response {
	var req RenameRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	d := s.Dataset(req.Dataset)
	if d == nil {
		return NewErrorResponse(http.StatusNotFound, "Dataset not found")
	}

	if err := d.Rename(req.Column, req.To); err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Renamed column %s to %s in dataset %s", req.Column, req.To, d.Name()),
		nil)
}

func (s *Server) CollectReqHandler(ctx context.Context, raw []byte) Response {
	var req PlanRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	plan, err := s.buildPlan(req)
	if err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}

	table, err := s.engine.Collect(ctx, plan)
	if err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Collected %d rows", len(table.Rows)), table.Records())
}

type ComputeRequest struct {
	PlanRequest
	Name string `json:"name"`
}

func (s *Server) ComputeReqHandler(ctx context.Context, raw []byte) Response {
	var req ComputeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	if !validDatasetName(req.Name) {
		return NewErrorResponse(http.StatusBadRequest, "invalid dataset name")
	}
	if s.Dataset(req.Name) != nil {
		return NewErrorResponse(http.StatusConflict,
			fmt.Sprintf("dataset already exists: %s", req.Name))
	}

	plan, err := s.buildPlan(req.PlanRequest)
	if err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}

	d, err := s.engine.Compute(ctx, plan, path.Join(s.dir, req.Name), req.Name)
	if err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}

	s.Register(d)
	return NewResponse(http.StatusCreated,
		fmt.Sprintf("Computed dataset %s with %d rows", d.Name(), d.TotalRows()),
		d.Describe())
}

func (s *Server) ExportReqHandler(ctx context.Context, raw []byte) Response {
	var req PlanRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	plan, err := s.buildPlan(req)
	if err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}

	var out strings.Builder
	if err := s.engine.Export(ctx, plan, &out, ',', true); err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}
	return NewResponse(http.StatusOK, "Exported", out.String())
}
