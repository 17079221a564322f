// Package hunyuan is a job client for the Tencent Cloud Hunyuan 3D API.
//
// Calls go through the Tencent Cloud Go SDK common client, which handles
// TC3-HMAC-SHA256 signing and the JSON envelope. This package adds the
// action table per job kind, typed request builders, response decoding
// into job.Snapshot, and client-side pacing.
package hunyuan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	tchttp "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/http"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"golang.org/x/time/rate"

	"github.com/3leaps/hy3d/pkg/job"
)

// API identity.
const (
	Service = "hunyuan"
	Version = "2023-09-01"

	DefaultRegion   = "ap-singapore"
	DefaultEndpoint = "hunyuan.intl.tencentcloudapi.com"
	DefaultTimeout  = 60 * time.Second
)

// Actions names the submit and query API actions for a job kind.
type Actions struct {
	Submit string
	Query  string
}

var actionTable = map[job.Kind]Actions{
	job.KindGeneration:        {Submit: "SubmitHunyuanTo3DProJob", Query: "QueryHunyuanTo3DProJob"},
	job.KindRapidGeneration:   {Submit: "SubmitHunyuanTo3DRapidJob", Query: "QueryHunyuanTo3DRapidJob"},
	job.KindRetopology:        {Submit: "Submit3DSmartTopologyJob", Query: "Describe3DSmartTopologyJob"},
	job.KindPartDecomposition: {Submit: "SubmitHunyuan3DPartJob", Query: "QueryHunyuan3DPartJob"},
	job.KindTextureEdit:       {Submit: "SubmitHunyuanTo3DTextureEditJob", Query: "QueryHunyuanTo3DTextureEditJob"},
	job.KindUVUnwrap:          {Submit: "SubmitHunyuanTo3DUVJob", Query: "DescribeHunyuanTo3DUVJob"},
	job.KindConversion:        {Submit: "Convert3DFormat"},
}

// ActionsFor returns the action names for kind.
func ActionsFor(kind job.Kind) (Actions, error) {
	a, ok := actionTable[kind]
	if !ok {
		return Actions{}, fmt.Errorf("unknown job kind %q", kind)
	}
	return a, nil
}

// Config configures a Client.
type Config struct {
	SecretID  string
	SecretKey string

	// Region defaults to DefaultRegion.
	Region string

	// Endpoint is the API host. Default: DefaultEndpoint
	Endpoint string

	// Scheme is https unless overridden (tests use http).
	Scheme string

	// Timeout bounds a single API call. Default: 60s
	Timeout time.Duration

	// RateLimit caps API calls per second. Zero is unlimited.
	RateLimit float64
}

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Scheme == "" {
		c.Scheme = "https"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// caller sends one action and returns the raw response body.
type caller interface {
	call(ctx context.Context, action string, params map[string]any) ([]byte, error)
}

// Client issues Hunyuan 3D API calls.
//
// Client is safe for concurrent use.
type Client struct {
	caller  caller
	limiter *rate.Limiter
	region  string
}

// New creates a Client backed by the Tencent Cloud SDK.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SecretID) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, ErrMissingCredentials
	}
	cfg.applyDefaults()

	cred := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = cfg.Endpoint
	cpf.HttpProfile.ReqMethod = "POST"
	cpf.HttpProfile.Scheme = strings.ToUpper(cfg.Scheme)
	cpf.HttpProfile.ReqTimeout = int(cfg.Timeout.Seconds())

	sdk := common.NewCommonClient(cred, cfg.Region, cpf)
	return newClient(&sdkCaller{client: sdk}, cfg), nil
}

func newClient(c caller, cfg Config) *Client {
	cl := &Client{caller: c, region: cfg.Region}
	if cfg.RateLimit > 0 {
		cl.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return cl
}

// Region returns the API region the client signs for.
func (c *Client) Region() string { return c.region }

type sdkCaller struct {
	client *common.Client
}

func (s *sdkCaller) call(ctx context.Context, action string, params map[string]any) ([]byte, error) {
	req := tchttp.NewCommonRequest(Service, Version, action)
	req.SetContext(ctx)
	if err := req.SetActionParameters(params); err != nil {
		return nil, fmt.Errorf("encode %s parameters: %w", action, err)
	}
	resp := tchttp.NewCommonResponse()
	if err := s.client.Send(req, resp); err != nil {
		return nil, err
	}
	return resp.GetBody(), nil
}

// SubmitResult is the response to a submit call.
type SubmitResult struct {
	Action    string
	JobID     string
	RequestID string
	Raw       json.RawMessage
}

// Submit validates req and submits it. Conversion requests are rejected;
// use Convert.
func (c *Client) Submit(ctx context.Context, req Request) (*SubmitResult, error) {
	if req.Kind() == job.KindConversion {
		return nil, fmt.Errorf("%w: conversion is synchronous, use Convert", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	actions, err := ActionsFor(req.Kind())
	if err != nil {
		return nil, err
	}

	body, inner, err := c.do(ctx, actions.Submit, req.Params())
	if err != nil {
		return nil, err
	}

	var r struct {
		JobId     string
		RequestId string
	}
	if err := json.Unmarshal(inner, &r); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", actions.Submit, err)
	}
	if r.JobId == "" {
		return nil, &APIError{Action: actions.Submit, RequestID: r.RequestId, Err: ErrNoJobID}
	}
	return &SubmitResult{Action: actions.Submit, JobID: r.JobId, RequestID: r.RequestId, Raw: body}, nil
}

// Query fetches the current state of a job.
func (c *Client) Query(ctx context.Context, kind job.Kind, jobID string) (*job.Snapshot, error) {
	actions, err := ActionsFor(kind)
	if err != nil {
		return nil, err
	}
	if actions.Query == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotQueryable, kind)
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id is required", ErrInvalidRequest)
	}

	body, inner, err := c.do(ctx, actions.Query, map[string]any{"JobId": jobID})
	if err != nil {
		return nil, err
	}
	snap, err := decodeSnapshot(inner)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", actions.Query, err)
	}
	snap.JobID = jobID
	snap.Kind = kind
	snap.Raw = body
	return snap, nil
}

// Querier binds Query to kind, matching the engine's query signature.
func (c *Client) Querier(kind job.Kind) func(ctx context.Context, jobID string) (*job.Snapshot, error) {
	return func(ctx context.Context, jobID string) (*job.Snapshot, error) {
		return c.Query(ctx, kind, jobID)
	}
}

// ConvertResult is the response to a format conversion.
type ConvertResult struct {
	URL       string
	Format    string
	RequestID string
	Raw       json.RawMessage
}

// Snapshot presents the conversion as a completed job with one result file.
// The request id stands in for the job id.
func (r *ConvertResult) Snapshot() *job.Snapshot {
	return &job.Snapshot{
		JobID:     r.RequestID,
		Kind:      job.KindConversion,
		Status:    job.StatusDone,
		RawStatus: "DONE",
		Files:     []job.ResultFile{{URL: r.URL, Format: r.Format}},
		RequestID: r.RequestID,
		Raw:       r.Raw,
	}
}

// Convert runs a synchronous format conversion.
func (c *Client) Convert(ctx context.Context, req *ConvertRequest) (*ConvertResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	action := actionTable[job.KindConversion].Submit

	body, inner, err := c.do(ctx, action, req.Params())
	if err != nil {
		return nil, err
	}
	var r struct {
		ResultFile3D string
		RequestId    string
	}
	if err := json.Unmarshal(inner, &r); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", action, err)
	}
	if r.ResultFile3D == "" {
		return nil, &APIError{Action: action, RequestID: r.RequestId, Message: "response contains no result file"}
	}
	return &ConvertResult{URL: r.ResultFile3D, Format: strings.ToUpper(req.Format), RequestID: r.RequestId, Raw: body}, nil
}

// do paces, sends and unwraps one call. It returns the whole body and the
// inner "Response" object.
func (c *Client) do(ctx context.Context, action string, params map[string]any) ([]byte, json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}
	body, err := c.caller.call(ctx, action, params)
	if err != nil {
		return nil, nil, wrapCallError(action, err)
	}
	inner, err := unwrapEnvelope(action, body)
	if err != nil {
		return body, nil, err
	}
	return body, inner, nil
}

type envelope struct {
	Response json.RawMessage
}

type errorBody struct {
	Error *struct {
		Code    string
		Message string
	}
	RequestId string
}

func unwrapEnvelope(action string, body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", action, err)
	}
	if len(env.Response) == 0 {
		return nil, fmt.Errorf("decode %s response: %w", action, errors.New("missing Response object"))
	}
	var eb errorBody
	if err := json.Unmarshal(env.Response, &eb); err == nil && eb.Error != nil && eb.Error.Code != "" {
		return nil, &APIError{Action: action, Code: eb.Error.Code, Message: eb.Error.Message, RequestID: eb.RequestId}
	}
	return env.Response, nil
}

type queryBody struct {
	Status        string
	ErrorCode     string
	ErrorMessage  string
	ResultFile3Ds []json.RawMessage
	RequestId     string
}

type resultFileBody struct {
	Type            string
	Url             string
	FileUrl         string
	PreviewImageUrl string
}

func decodeSnapshot(inner json.RawMessage) (*job.Snapshot, error) {
	var q queryBody
	if err := json.Unmarshal(inner, &q); err != nil {
		return nil, err
	}
	snap := &job.Snapshot{
		Status:       job.ParseStatus(q.Status),
		RawStatus:    q.Status,
		ErrorCode:    q.ErrorCode,
		ErrorMessage: q.ErrorMessage,
		RequestID:    q.RequestId,
	}
	for _, raw := range q.ResultFile3Ds {
		if f, ok := decodeResultFile(raw); ok {
			snap.Files = append(snap.Files, f)
		}
	}
	return snap, nil
}

// decodeResultFile accepts an object ({Type, Url, PreviewImageUrl}) or a
// bare URL string. Entries without a URL are dropped.
func decodeResultFile(raw json.RawMessage) (job.ResultFile, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return job.ResultFile{URL: s}, s != ""
	}
	var b resultFileBody
	if err := json.Unmarshal(raw, &b); err != nil {
		return job.ResultFile{}, false
	}
	url := strings.TrimSpace(b.Url)
	if url == "" {
		url = strings.TrimSpace(b.FileUrl)
	}
	if url == "" {
		return job.ResultFile{}, false
	}
	return job.ResultFile{URL: url, Format: strings.ToUpper(b.Type), PreviewImageURL: b.PreviewImageUrl}, true
}
